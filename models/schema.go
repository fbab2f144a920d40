package models

import (
	"time"

	"gorm.io/gorm"
)

// Channel is a tracked YouTube channel with its most recent statistics.
type Channel struct {
	gorm.Model
	YoutubeChannelID string `gorm:"uniqueIndex;not null" json:"youtube_channel_id"`

	// Snippet data
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `json:"description"`
	CustomURL    string     `json:"custom_url"`
	PublishedAt  *time.Time `json:"published_at"`
	Country      string     `json:"country"`
	ThumbnailURL string     `json:"thumbnail_url"`

	// Latest statistics
	ViewCount             uint64 `gorm:"default:0" json:"view_count"`
	SubscriberCount       uint64 `gorm:"default:0" json:"subscriber_count"`
	HiddenSubscriberCount bool   `gorm:"default:false" json:"hidden_subscriber_count"`
	VideoCount            uint64 `gorm:"default:0" json:"video_count"`

	UploadsPlaylistID string `json:"uploads_playlist_id"`

	IsOwnChannel bool       `gorm:"default:false" json:"is_own_channel"`
	LastSyncAt   *time.Time `json:"last_sync_at"`

	Videos         []Video                `gorm:"foreignKey:ChannelID" json:"videos,omitempty"`
	StatsSnapshots []ChannelStatsSnapshot `gorm:"foreignKey:ChannelID" json:"stats_snapshots,omitempty"`
}

// Video is a tracked YouTube video with its most recent statistics.
type Video struct {
	gorm.Model
	YoutubeVideoID string `gorm:"uniqueIndex;not null" json:"youtube_video_id"`
	ChannelID      uint   `gorm:"index:idx_video_channel_published;not null" json:"channel_id"`

	Title        string    `gorm:"not null" json:"title"`
	Description  string    `json:"description"`
	PublishedAt  time.Time `gorm:"index:idx_video_channel_published" json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url"`

	// ISO 8601 duration, e.g. "PT4M13S"
	Duration string `json:"duration"`

	ViewCount    uint64 `gorm:"default:0" json:"view_count"`
	LikeCount    uint64 `gorm:"default:0" json:"like_count"`
	CommentCount uint64 `gorm:"default:0" json:"comment_count"`

	LastSyncAt *time.Time `json:"last_sync_at"`

	Channel        Channel              `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
	StatsSnapshots []VideoStatsSnapshot `gorm:"foreignKey:VideoID" json:"stats_snapshots,omitempty"`
}

// VideoStatsSnapshot is an append-only point-in-time capture of video counters.
type VideoStatsSnapshot struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	VideoID uint `gorm:"index:idx_snapshot_video_captured;not null" json:"video_id"`

	ViewCount    uint64 `gorm:"default:0" json:"view_count"`
	LikeCount    uint64 `gorm:"default:0" json:"like_count"`
	CommentCount uint64 `gorm:"default:0" json:"comment_count"`

	CapturedAt time.Time `gorm:"index:idx_snapshot_video_captured" json:"captured_at"`
}

// ChannelStatsSnapshot is an append-only point-in-time capture of channel counters.
type ChannelStatsSnapshot struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ChannelID uint `gorm:"index:idx_snapshot_channel_captured;not null" json:"channel_id"`

	ViewCount       uint64 `gorm:"default:0" json:"view_count"`
	SubscriberCount uint64 `gorm:"default:0" json:"subscriber_count"`
	VideoCount      uint64 `gorm:"default:0" json:"video_count"`

	CapturedAt time.Time `gorm:"index:idx_snapshot_channel_captured" json:"captured_at"`
}

// Alert types understood by the alert sweep.
const (
	AlertTypeViralVideo     = "viral_video"
	AlertTypeEngagementDrop = "engagement_drop"
)

// Alert is a threshold rule evaluated by the periodic sweep.
type Alert struct {
	gorm.Model
	Name      string `gorm:"not null" json:"name"`
	AlertType string `gorm:"not null" json:"alert_type"` // viral_video or engagement_drop

	// Conditions
	ChannelID       *uint   `json:"channel_id"` // nil means all channels
	ThresholdField  string  `json:"threshold_field"`
	ThresholdValue  float64 `gorm:"not null" json:"threshold_value"`
	TimeWindowHours int     `gorm:"default:24" json:"time_window_hours"`

	// State
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	TriggerCount    uint       `gorm:"default:0" json:"trigger_count"`
}

// AlertEvent records a single firing of an Alert.
type AlertEvent struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	AlertID uint `gorm:"index;not null" json:"alert_id"`

	VideoID   *uint `json:"video_id"`
	ChannelID *uint `json:"channel_id"`

	Message     string  `gorm:"not null" json:"message"`
	MetricValue float64 `json:"metric_value"`

	TriggeredAt time.Time `gorm:"index" json:"triggered_at"`
	IsRead      bool      `gorm:"default:false" json:"is_read"`
}

// AutoMigrate creates or updates the full schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Channel{},
		&Video{},
		&VideoStatsSnapshot{},
		&ChannelStatsSnapshot{},
		&Alert{},
		&AlertEvent{},
	)
}
