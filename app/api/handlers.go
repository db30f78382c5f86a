package api

import (
	"cmp"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-deck/app/ai"
	"github.com/lysyi3m/rss-deck/app/deck"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/store"
	"github.com/lysyi3m/rss-deck/app/tasks"
	"github.com/lysyi3m/rss-deck/app/view"
)

const recentRunsLimit = 20

// NewHandler wires the HTTP layer. gateway serves the feed proxy endpoint;
// runs may be nil when no history is kept.
func NewHandler(d *deck.Deck, gateway feed.Gateway, generator GeneratorInterface,
	assistant AssistantInterface, scheduler tasks.TaskSchedulerInterface,
	runs RunListerInterface) *Handler {
	return &Handler{
		deck:      d,
		gateway:   gateway,
		generator: generator,
		assistant: assistant,
		scheduler: scheduler,
		runs:      runs,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	st := h.deck.Store()

	health := map[string]interface{}{
		"status":        "ok",
		"timestamp":     time.Now().In(time.Local).Format(time.RFC3339),
		"subscriptions": len(st.Subscriptions()),
		"items":         len(h.deck.Items()),
		"loading":       h.deck.Loading(),
		"ai_status":     st.ServiceStatus(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	st := h.deck.Store()

	stats := map[string]interface{}{
		"subscriptions": len(st.Subscriptions()),
		"feeds":         len(h.deck.Feeds()),
		"errors":        len(h.deck.Errors()),
		"counts":        h.deck.Counts(),
		"history":       len(st.History()),
		"tags":          len(h.deck.Tags()),
	}

	if h.runs != nil {
		runs, err := h.runs.Recent(c.Request.Context(), recentRunsLimit)
		if err != nil {
			slog.Error("Database error", "operation", "recent_runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		stats["runs"] = runs
	}

	c.JSON(http.StatusOK, stats)
}

// GetFeed fetches and parses one remote feed on behalf of the caller.
func (h *Handler) GetFeed(c *gin.Context) {
	feedURL := c.Query("url")
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Missing "url" query parameter`})
		return
	}

	parsed, err := h.gateway.Fetch(c.Request.Context(), feedURL)
	if err != nil {
		slog.Error("Feed proxy error", "url", feedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse RSS feed"})
		return
	}

	c.JSON(http.StatusOK, parsed)
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	loaded := make(map[string]feed.Feed)
	for _, f := range h.deck.Feeds() {
		loaded[f.FeedURL] = f
	}

	urls := h.deck.Store().Subscriptions()
	subscriptions := make([]map[string]interface{}, 0, len(urls))

	for _, u := range urls {
		info := map[string]interface{}{
			"url":    u,
			"loaded": false,
		}
		if f, ok := loaded[u]; ok {
			info["loaded"] = true
			info["title"] = f.Title
			info["items"] = len(f.Items)
		}
		subscriptions = append(subscriptions, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subscriptions,
		"total":         len(subscriptions),
	})
}

func (h *Handler) AddSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Feed url is required"})
		return
	}

	feedURL := strings.TrimSpace(req.URL)
	if err := feed.ValidateURL(feedURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.deck.AddSubscription(c.Request.Context(), feedURL)
	if err != nil {
		slog.Error("Failed to add subscription", "url", feedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"url":           feedURL,
		"added":         added,
		"subscriptions": h.deck.Store().Subscriptions(),
	})
}

func (h *Handler) RemoveSubscription(c *gin.Context) {
	feedURL := c.Query("url")
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Missing "url" query parameter`})
		return
	}

	removed, err := h.deck.RemoveSubscription(c.Request.Context(), feedURL)
	if err != nil {
		slog.Error("Failed to remove subscription", "url", feedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":           feedURL,
		"removed":       removed,
		"subscriptions": h.deck.Store().Subscriptions(),
	})
}

// Refresh runs an aggregation cycle, or enqueues one with ?async=true.
func (h *Handler) Refresh(c *gin.Context) {
	if isAsync(c) {
		h.enqueue(c, tasks.NewRefreshFeedsTask(h.deck))
		return
	}

	result, err := h.deck.Refresh(c.Request.Context())
	if err != nil {
		slog.Error("Refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds":  len(result.Feeds),
		"items":  len(result.Items),
		"errors": result.Errors,
	})
}

func (h *Handler) GetItems(c *gin.Context) {
	kind, err := view.ParseKind(c.Query("view"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag := c.Query("tag")

	c.JSON(http.StatusOK, gin.H{
		"view":    kind,
		"tag":     tag,
		"items":   h.deck.View(kind, tag),
		"tags":    h.deck.Tags(),
		"errors":  h.deck.Errors(),
		"loading": h.deck.Loading(),
		"counts":  h.deck.Counts(),
	})
}

func (h *Handler) ToggleFavorite(c *gin.Context) {
	link, ok := bindLink(c)
	if !ok {
		return
	}

	favorite, err := h.deck.Store().ToggleFavorite(c.Request.Context(), link)
	if err != nil {
		storeError(c, "toggle_favorite", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link, "favorite": favorite})
}

func (h *Handler) ToggleReadLater(c *gin.Context) {
	link, ok := bindLink(c)
	if !ok {
		return
	}

	readLater, err := h.deck.Store().ToggleReadLater(c.Request.Context(), link)
	if err != nil {
		storeError(c, "toggle_read_later", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link, "readLater": readLater})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	link, ok := bindLink(c)
	if !ok {
		return
	}

	st := h.deck.Store()
	if err := st.MarkAsRead(c.Request.Context(), link); err != nil {
		storeError(c, "mark_as_read", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link, "read": st.IsRead(link)})
}

func (h *Handler) SetTags(c *gin.Context) {
	var req tagsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Link is required"})
		return
	}

	st := h.deck.Store()
	if err := st.SetTags(c.Request.Context(), req.Link, req.Tags); err != nil {
		storeError(c, "set_tags", err)
		return
	}

	tags, _ := st.TagsFor(req.Link)
	c.JSON(http.StatusOK, gin.H{"link": req.Link, "tags": tags})
}

// ExportView renders a view as an RSS 2.0 document. Items carry their
// effective tags as categories.
func (h *Handler) ExportView(c *gin.Context) {
	kind, err := view.ParseKind(c.Param("view"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	tag := c.Query("tag")

	entries := h.deck.View(kind, tag)
	items := make([]feed.Item, len(entries))
	for i, entry := range entries {
		items[i] = entry.Item
		items[i].Tags = entry.Tags
	}

	title := "RSS Deck: " + string(kind)
	if tag != "" {
		title += " #" + tag
	}

	channel := feed.Channel{
		Title:       title,
		Link:        requestBase(c),
		Description: title,
		SelfLink:    requestBase(c) + c.Request.URL.RequestURI(),
	}

	rss, err := h.generator.Run(channel, items)
	if err != nil {
		slog.Error("RSS generation error", "view", string(kind), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-View", string(kind))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetTask(c *gin.Context) {
	record, ok := h.scheduler.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) GenerateTags(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	model := cmp.Or(req.Model, h.deck.Store().SelectedModel())
	tags, err := h.assistant.GenerateTags(c.Request.Context(), model, req.Title, req.Content)
	if err != nil {
		aiError(c, "generate_tags", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handler) Summarize(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phrases == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phrases array is required"})
		return
	}

	model := cmp.Or(req.Model, h.deck.Store().SelectedModel())
	summary, err := h.assistant.Summarize(c.Request.Context(), model, req.Phrases)
	if err != nil {
		aiError(c, "summarize", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetAIConfig reports whether the AI service is up and which models it
// offers, and records the answer in the store. defaultModel is what requests
// fall back to while nothing is selected.
func (h *Handler) GetAIConfig(c *gin.Context) {
	ctx := c.Request.Context()
	st := h.deck.Store()

	st.SetServiceStatus(store.StatusChecking)
	status := h.assistant.Status(ctx)

	if status.Running {
		st.SetServiceStatus(store.StatusRunning)
		if err := st.SetAvailableModels(ctx, status.Models); err != nil {
			slog.Warn("Failed to save selected model", "error", err)
		}
	} else {
		st.SetServiceStatus(store.StatusStopped)
	}

	c.JSON(http.StatusOK, gin.H{
		"running":       status.Running,
		"models":        status.Models,
		"selectedModel": st.SelectedModel(),
		"defaultModel":  h.assistant.DefaultModel(),
	})
}

func (h *Handler) PostAIConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("Invalid AI config request", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	if req.Command != "spawn" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown command"})
		return
	}

	if err := h.assistant.Spawn(c.Request.Context()); err != nil {
		slog.Error("Failed to spawn AI service", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to spawn ollama"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Spawn command issued"})
}

func (h *Handler) SetModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Model is required"})
		return
	}

	st := h.deck.Store()
	if err := st.SetSelectedModel(c.Request.Context(), req.Model); err != nil {
		storeError(c, "set_selected_model", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"selectedModel": st.SelectedModel()})
}

// Analyze tags a batch of untagged items of a view, or enqueues the batch
// with ?async=true.
func (h *Handler) Analyze(c *gin.Context) {
	kind, tag, ok := bindView(c)
	if !ok {
		return
	}

	if isAsync(c) {
		h.enqueue(c, tasks.NewAnalyzeItemsTask(h.deck, kind, tag))
		return
	}

	result, err := h.deck.Analyze(c.Request.Context(), kind, tag)
	if err != nil {
		aiError(c, "analyze", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Report(c *gin.Context) {
	kind, tag, ok := bindView(c)
	if !ok {
		return
	}

	summary, err := h.deck.Report(c.Request.Context(), kind, tag)
	if err != nil {
		aiError(c, "report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing task", "type", task.GetType(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
		return
	}

	record, _ := h.scheduler.Lookup(task.GetID())
	c.JSON(http.StatusAccepted, record)
}

func bindLink(c *gin.Context) (string, bool) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Link is required"})
		return "", false
	}
	return req.Link, true
}

// bindView reads an optional {"view", "tag"} body. An empty body selects
// the all view.
func bindView(c *gin.Context) (view.Kind, string, bool) {
	var req viewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return "", "", false
		}
	}

	kind, err := view.ParseKind(req.View)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}

	return kind, req.Tag, true
}

func isAsync(c *gin.Context) bool {
	async, _ := strconv.ParseBool(c.Query("async"))
	return async
}

func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func storeError(c *gin.Context, operation string, err error) {
	slog.Error("Storage error", "operation", operation, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
}

func aiError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, ai.ErrServiceUnavailable), errors.Is(err, deck.ErrAssistantDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.Error("AI request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
