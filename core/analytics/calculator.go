package analytics

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"ytpulse/models"
)

// Calculator derives metrics from stored counters and snapshots.
type Calculator struct {
	db *gorm.DB
}

func NewCalculator(db *gorm.DB) *Calculator {
	return &Calculator{db: db}
}

// EngagementRate is (likes + comments) / views, or 0 for unviewed videos.
func EngagementRate(video *models.Video) float64 {
	if video.ViewCount == 0 {
		return 0
	}
	return float64(video.LikeCount+video.CommentCount) / float64(video.ViewCount)
}

// ViewsPerDay averages a video's views over full days since publication,
// with a one-day floor for videos published today.
func ViewsPerDay(video *models.Video) float64 {
	days := int(time.Since(video.PublishedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return float64(video.ViewCount) / float64(days)
}

// VideoGrowth returns the view delta since the newest snapshot at or before
// the cutoff, or nil when no snapshot that old exists yet.
func (c *Calculator) VideoGrowth(video *models.Video, since time.Time) (*int64, error) {
	var snapshot models.VideoStatsSnapshot
	err := c.db.
		Where("video_id = ? AND captured_at <= ?", video.ID, since).
		Order("captured_at DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	growth := int64(video.ViewCount) - int64(snapshot.ViewCount)
	return &growth, nil
}

// TrendingVideos ranks videos by view growth over the window, dropping those
// below minGrowth or without old-enough snapshots.
func (c *Calculator) TrendingVideos(windowHours int, minGrowth int64, limit int) ([]models.TrendingVideo, error) {
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	var videos []models.Video
	if err := c.db.Find(&videos).Error; err != nil {
		return nil, err
	}

	trending := make([]models.TrendingVideo, 0)
	for i := range videos {
		growth, err := c.VideoGrowth(&videos[i], since)
		if err != nil {
			return nil, err
		}
		if growth == nil || *growth < minGrowth {
			continue
		}
		trending = append(trending, models.TrendingVideo{
			Video:          videos[i],
			ViewGrowth:     *growth,
			WindowHours:    windowHours,
			EngagementRate: EngagementRate(&videos[i]),
		})
	}

	sort.Slice(trending, func(i, j int) bool {
		return trending[i].ViewGrowth > trending[j].ViewGrowth
	})

	if limit > 0 && len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}

// ChannelAnalytics summarizes a channel: per-video averages plus 30-day
// growth derived from channel snapshots.
func (c *Calculator) ChannelAnalytics(channel *models.Channel) (*models.ChannelAnalytics, error) {
	var videos []models.Video
	if err := c.db.Where("channel_id = ?", channel.ID).Find(&videos).Error; err != nil {
		return nil, err
	}

	out := &models.ChannelAnalytics{
		ChannelID:       channel.ID,
		Title:           channel.Title,
		TotalViews:      channel.ViewCount,
		SubscriberCount: channel.SubscriberCount,
		VideoCount:      channel.VideoCount,
	}

	if len(videos) > 0 {
		var engagementSum, viewSum float64
		for i := range videos {
			engagementSum += EngagementRate(&videos[i])
			viewSum += float64(videos[i].ViewCount)
		}
		out.AvgEngagementRate = engagementSum / float64(len(videos))
		out.AvgViewsPerVideo = viewSum / float64(len(videos))
	}

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	var snapshot models.ChannelStatsSnapshot
	err := c.db.
		Where("channel_id = ? AND captured_at <= ?", channel.ID, cutoff).
		Order("captured_at DESC").
		First(&snapshot).Error
	if err == nil {
		subGrowth := int64(channel.SubscriberCount) - int64(snapshot.SubscriberCount)
		viewGrowth := int64(channel.ViewCount) - int64(snapshot.ViewCount)
		out.SubscriberGrowth30d = &subGrowth
		out.ViewGrowth30d = &viewGrowth
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return out, nil
}
