package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ytpulse/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func TestEngagementRate(t *testing.T) {
	video := &models.Video{ViewCount: 1000, LikeCount: 80, CommentCount: 20}
	assert.InDelta(t, 0.1, EngagementRate(video), 1e-9)

	// No views, no division.
	assert.Zero(t, EngagementRate(&models.Video{LikeCount: 5}))
}

func TestViewsPerDay(t *testing.T) {
	video := &models.Video{
		ViewCount:   1000,
		PublishedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
	}
	assert.InDelta(t, 100, ViewsPerDay(video), 1)

	// Published today: one-day floor instead of a divide-by-zero blowup.
	today := &models.Video{ViewCount: 500, PublishedAt: time.Now().UTC()}
	assert.InDelta(t, 500, ViewsPerDay(today), 1e-9)
}

func TestVideoGrowth(t *testing.T) {
	db := openTestDB(t)
	calc := NewCalculator(db)

	video := models.Video{YoutubeVideoID: "vid1", ChannelID: 1, ViewCount: 1500}
	require.NoError(t, db.Create(&video).Error)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.VideoStatsSnapshot{
		VideoID:    video.ID,
		ViewCount:  1000,
		CapturedAt: now.Add(-30 * time.Hour),
	}).Error)
	// Newer than the cutoff, must be ignored.
	require.NoError(t, db.Create(&models.VideoStatsSnapshot{
		VideoID:    video.ID,
		ViewCount:  1400,
		CapturedAt: now.Add(-1 * time.Hour),
	}).Error)

	growth, err := calc.VideoGrowth(&video, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, growth)
	assert.Equal(t, int64(500), *growth)
}

func TestVideoGrowthNoSnapshot(t *testing.T) {
	db := openTestDB(t)
	calc := NewCalculator(db)

	video := models.Video{YoutubeVideoID: "vid1", ChannelID: 1, ViewCount: 1500}
	require.NoError(t, db.Create(&video).Error)

	growth, err := calc.VideoGrowth(&video, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, growth)
}

func TestTrendingVideos(t *testing.T) {
	db := openTestDB(t)
	calc := NewCalculator(db)

	now := time.Now().UTC()
	old := now.Add(-30 * time.Hour)

	seed := []struct {
		id        string
		then, cur uint64
	}{
		{"slow", 100, 150},    // +50, below min growth
		{"steady", 100, 600},  // +500
		{"viral", 100, 10100}, // +10000
	}
	for _, s := range seed {
		video := models.Video{YoutubeVideoID: s.id, ChannelID: 1, ViewCount: s.cur}
		require.NoError(t, db.Create(&video).Error)
		require.NoError(t, db.Create(&models.VideoStatsSnapshot{
			VideoID:    video.ID,
			ViewCount:  s.then,
			CapturedAt: old,
		}).Error)
	}
	// A video with no old snapshot never trends.
	require.NoError(t, db.Create(&models.Video{YoutubeVideoID: "fresh", ChannelID: 1, ViewCount: 9999}).Error)

	trending, err := calc.TrendingVideos(24, 100, 10)
	require.NoError(t, err)

	require.Len(t, trending, 2)
	assert.Equal(t, "viral", trending[0].Video.YoutubeVideoID)
	assert.Equal(t, int64(10000), trending[0].ViewGrowth)
	assert.Equal(t, "steady", trending[1].Video.YoutubeVideoID)

	// Limit applies after sorting.
	top, err := calc.TrendingVideos(24, 0, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "viral", top[0].Video.YoutubeVideoID)
}

func TestChannelAnalytics(t *testing.T) {
	db := openTestDB(t)
	calc := NewCalculator(db)

	channel := models.Channel{
		YoutubeChannelID: "UCtest",
		Title:            "Test",
		ViewCount:        10000,
		SubscriberCount:  1200,
		VideoCount:       2,
	}
	require.NoError(t, db.Create(&channel).Error)

	require.NoError(t, db.Create(&models.Video{
		YoutubeVideoID: "vid1", ChannelID: channel.ID,
		ViewCount: 1000, LikeCount: 100,
	}).Error)
	require.NoError(t, db.Create(&models.Video{
		YoutubeVideoID: "vid2", ChannelID: channel.ID,
		ViewCount: 3000, LikeCount: 0,
	}).Error)

	require.NoError(t, db.Create(&models.ChannelStatsSnapshot{
		ChannelID:       channel.ID,
		ViewCount:       8000,
		SubscriberCount: 1000,
		CapturedAt:      time.Now().UTC().Add(-31 * 24 * time.Hour),
	}).Error)

	summary, err := calc.ChannelAnalytics(&channel)
	require.NoError(t, err)

	assert.Equal(t, channel.ID, summary.ChannelID)
	assert.InDelta(t, 0.05, summary.AvgEngagementRate, 1e-9)
	assert.InDelta(t, 2000, summary.AvgViewsPerVideo, 1e-9)
	require.NotNil(t, summary.SubscriberGrowth30d)
	assert.Equal(t, int64(200), *summary.SubscriberGrowth30d)
	require.NotNil(t, summary.ViewGrowth30d)
	assert.Equal(t, int64(2000), *summary.ViewGrowth30d)
}
