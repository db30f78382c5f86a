package view

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// Tag is a tag name with its display colours.
type Tag struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	DarkColor string `json:"dark_color"`
}

func NewTag(name string) Tag {
	return Tag{
		Name:      name,
		Color:     StringToColor(name),
		DarkColor: StringToDarkColor(name),
	}
}

// StringToColor maps a string to a pastel HSL background colour.
func StringToColor(s string) string {
	hash := hashString(s)
	return hsl(hash, 70, 85)
}

// StringToDarkColor maps a string to a dark HSL background colour with the
// same hue as StringToColor.
func StringToDarkColor(s string) string {
	hash := hashString(s)
	return hsl(hash, 60, 25)
}

func hsl(hash float64, saturationBase, lightnessBase int) string {
	h := int(math.Mod(hash, 360))
	s := saturationBase + int(math.Mod(hash, 20))
	l := lightnessBase + int(math.Mod(hash, 10))
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", h, s, l)
}

// hashString returns |hash| of the rolling hash
// hash = unit + ((hash << 5) - hash) over UTF-16 code units, where the shift
// operates on the 32-bit truncation of hash and the rest stays in float64.
// Colours therefore match the ones the web client computes.
func hashString(s string) float64 {
	var hash float64
	for _, unit := range utf16.Encode([]rune(s)) {
		shifted := toInt32(hash) << 5
		hash = float64(unit) + (float64(shifted) - hash)
	}
	return math.Abs(hash)
}

func toInt32(f float64) int32 {
	return int32(uint32(int64(f)))
}
