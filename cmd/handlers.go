package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ytpulse/core"
	"ytpulse/core/alerts"
	"ytpulse/core/analytics"
	"ytpulse/core/ingest"
	"ytpulse/core/youtube"
	"ytpulse/models"
)

// App bundles everything the HTTP handlers need. Built once in main; no
// package-level state.
type App struct {
	db        *gorm.DB
	pool      *core.KeyPool
	ingestion *ingest.Service
	calc      *analytics.Calculator
	alerts    *alerts.Service
	broker    *core.EventBroker
	logger    *logrus.Logger
}

func errJSON(c *gin.Context, status int, errType, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{Message: message, Type: errType},
	})
}

// apiError maps service errors onto HTTP statuses. Exhausted keys become
// 503 so dashboard clients know to retry later.
func apiError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrAllKeysExhausted):
		errJSON(c, http.StatusServiceUnavailable, "quota_exhausted", "All API keys exhausted, try again later")
	case errors.Is(err, youtube.ErrNotFound):
		errJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		errJSON(c, http.StatusNotFound, "not_found", "record not found")
	default:
		errJSON(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return uint(id), true
}

// Channels

func (a *App) handleCreateChannel(c *gin.Context) {
	var req models.ChannelCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	importVideos := true
	if req.ImportVideos != nil {
		importVideos = *req.ImportVideos
	}
	maxVideos := req.MaxVideos
	if maxVideos <= 0 {
		maxVideos = 50
	}

	channel, err := a.ingestion.ImportChannelFromURL(c.Request.Context(), req.URL, req.IsOwnChannel, importVideos, maxVideos)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

func (a *App) handleListChannels(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var channels []models.Channel
	err := a.db.Order("created_at DESC").Offset(skip).Limit(limit).Find(&channels).Error
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (a *App) handleGetChannel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var channel models.Channel
	if err := a.db.First(&channel, id).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (a *App) handleRefreshChannel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var channel models.Channel
	if err := a.db.First(&channel, id).Error; err != nil {
		apiError(c, err)
		return
	}

	if err := a.ingestion.RefreshChannel(c.Request.Context(), &channel); err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (a *App) handleDeleteChannel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var channel models.Channel
	if err := a.db.First(&channel, id).Error; err != nil {
		apiError(c, err)
		return
	}

	if err := a.db.Delete(&channel).Error; err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) handleListChannelVideos(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var videos []models.Video
	err := a.db.
		Where("channel_id = ?", id).
		Order("published_at DESC").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (a *App) handleChannelAnalytics(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var channel models.Channel
	if err := a.db.First(&channel, id).Error; err != nil {
		apiError(c, err)
		return
	}

	summary, err := a.calc.ChannelAnalytics(&channel)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Videos

func (a *App) handleGetVideo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var video models.Video
	if err := a.db.First(&video, id).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (a *App) handleVideoHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var snapshots []models.VideoStatsSnapshot
	err := a.db.
		Where("video_id = ?", id).
		Order("captured_at DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

func (a *App) handleTrendingVideos(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	minGrowth, _ := strconv.ParseInt(c.DefaultQuery("min_growth", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	trending, err := a.calc.TrendingVideos(hours, minGrowth, limit)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, trending)
}

// Alerts

func (a *App) handleCreateAlert(c *gin.Context) {
	var req models.AlertCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.AlertType != models.AlertTypeViralVideo && req.AlertType != models.AlertTypeEngagementDrop {
		errJSON(c, http.StatusBadRequest, "invalid_request", "unknown alert_type")
		return
	}

	windowHours := req.TimeWindowHours
	if windowHours <= 0 {
		windowHours = 24
	}

	alert := models.Alert{
		Name:            req.Name,
		AlertType:       req.AlertType,
		ThresholdField:  req.ThresholdField,
		ThresholdValue:  req.ThresholdValue,
		TimeWindowHours: windowHours,
		ChannelID:       req.ChannelID,
		IsActive:        true,
	}
	if err := a.db.Create(&alert).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (a *App) handleListAlerts(c *gin.Context) {
	var list []models.Alert
	if err := a.db.Order("created_at DESC").Find(&list).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *App) handleGetAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var alert models.Alert
	if err := a.db.First(&alert, id).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (a *App) handleToggleAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var alert models.Alert
	if err := a.db.First(&alert, id).Error; err != nil {
		apiError(c, err)
		return
	}

	alert.IsActive = !alert.IsActive
	if err := a.db.Save(&alert).Error; err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (a *App) handleDeleteAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := a.db.Delete(&models.Alert{}, id).Error; err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) handleListAlertEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	unreadOnly := c.Query("unread_only") == "true"

	events, err := a.alerts.RecentEvents(limit, unreadOnly)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (a *App) handleMarkEventRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	event, err := a.alerts.MarkEventRead(id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// System

// handleKeyStatus renders the pool snapshot. Keys arrive already redacted.
func (a *App) handleKeyStatus(c *gin.Context) {
	snapshot := a.pool.Snapshot()

	out := make([]models.KeyStatusResponse, 0, len(snapshot))
	for _, ks := range snapshot {
		out = append(out, models.KeyStatusResponse{
			KeyPreview:    ks.KeyPreview,
			TotalRequests: ks.TotalRequests,
			QuotaUsed:     ks.QuotaUsed,
			LastUsedAt:    ks.LastUsedAt,
			IsDisabled:    ks.Disabled,
			DisabledUntil: ks.DisabledUntil,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// setupRoutes wires the REST surface and the live event feed.
func setupRoutes(engine *gin.Engine, app *App) {
	engine.GET("/health", app.handleHealth)
	engine.GET("/ws/events", app.handleEventStream)

	api := engine.Group("/api")
	{
		api.POST("/channels", app.handleCreateChannel)
		api.GET("/channels", app.handleListChannels)
		api.GET("/channels/:id", app.handleGetChannel)
		api.POST("/channels/:id/refresh", app.handleRefreshChannel)
		api.DELETE("/channels/:id", app.handleDeleteChannel)
		api.GET("/channels/:id/videos", app.handleListChannelVideos)
		api.GET("/channels/:id/analytics", app.handleChannelAnalytics)

		api.GET("/videos/:id", app.handleGetVideo)
		api.GET("/videos/:id/history", app.handleVideoHistory)
		api.GET("/trending/videos", app.handleTrendingVideos)

		api.POST("/alerts", app.handleCreateAlert)
		api.GET("/alerts", app.handleListAlerts)
		api.GET("/alerts/:id", app.handleGetAlert)
		api.PUT("/alerts/:id/toggle", app.handleToggleAlert)
		api.DELETE("/alerts/:id", app.handleDeleteAlert)
		api.GET("/alert-events", app.handleListAlertEvents)
		api.PUT("/alert-events/:id/read", app.handleMarkEventRead)

		api.GET("/system/api-keys", app.handleKeyStatus)
	}
}
