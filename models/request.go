package models

import "time"

// ErrorDetail carries a single API error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorResponse is the JSON envelope for every error the API returns.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ChannelCreateRequest imports a channel from any YouTube URL.
type ChannelCreateRequest struct {
	URL          string `json:"url" binding:"required"`
	IsOwnChannel bool   `json:"is_own_channel"`
	ImportVideos *bool  `json:"import_videos"` // nil defaults to true
	MaxVideos    int    `json:"max_videos"`    // 0 defaults to 50
}

// AlertCreateRequest defines a new threshold alert.
type AlertCreateRequest struct {
	Name            string  `json:"name" binding:"required"`
	AlertType       string  `json:"alert_type" binding:"required"`
	ThresholdField  string  `json:"threshold_field"`
	ThresholdValue  float64 `json:"threshold_value" binding:"required"`
	TimeWindowHours int     `json:"time_window_hours"`
	ChannelID       *uint   `json:"channel_id"`
}

// ChannelAnalytics is the computed summary for one channel.
type ChannelAnalytics struct {
	ChannelID           uint    `json:"channel_id"`
	Title               string  `json:"title"`
	TotalViews          uint64  `json:"total_views"`
	SubscriberCount     uint64  `json:"subscriber_count"`
	VideoCount          uint64  `json:"video_count"`
	AvgEngagementRate   float64 `json:"avg_engagement_rate"`
	AvgViewsPerVideo    float64 `json:"avg_views_per_video"`
	SubscriberGrowth30d *int64  `json:"subscriber_growth_30d"`
	ViewGrowth30d       *int64  `json:"view_growth_30d"`
}

// TrendingVideo pairs a video with its view growth over the requested window.
type TrendingVideo struct {
	Video          Video   `json:"video"`
	ViewGrowth     int64   `json:"view_growth"`
	WindowHours    int     `json:"window_hours"`
	EngagementRate float64 `json:"engagement_rate"`
}

// KeyStatusResponse is one row of the credential health listing.
// The key itself is redacted before it reaches this type.
type KeyStatusResponse struct {
	KeyPreview    string     `json:"key_preview"`
	TotalRequests uint64     `json:"total_requests"`
	QuotaUsed     uint64     `json:"quota_used_estimate"`
	LastUsedAt    *time.Time `json:"last_used_at"`
	IsDisabled    bool       `json:"is_disabled"`
	DisabledUntil *time.Time `json:"disabled_until"`
}
