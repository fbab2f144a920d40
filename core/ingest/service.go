package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ytpulse/core"
	"ytpulse/core/youtube"
	"ytpulse/models"
)

// DataAPI is the slice of the YouTube client the ingestion service needs.
type DataAPI interface {
	GetChannelByURL(ctx context.Context, url string) (*youtube.Channel, error)
	GetChannelByID(ctx context.Context, channelID string) (*youtube.Channel, error)
	GetVideoByID(ctx context.Context, videoID string) (*youtube.Video, error)
	GetChannelVideos(ctx context.Context, uploadsPlaylistID string, maxResults int) ([]youtube.Video, error)
}

// Service imports and refreshes channels and videos, writing a stats
// snapshot on every sync so the analytics layer has a time series to diff.
type Service struct {
	db     *gorm.DB
	yt     DataAPI
	logger *logrus.Logger
}

func NewService(db *gorm.DB, yt DataAPI, logger *logrus.Logger) *Service {
	return &Service{db: db, yt: yt, logger: logger}
}

// ImportChannelFromURL fetches a channel from any supported YouTube URL and
// upserts it, optionally importing its recent uploads.
func (s *Service) ImportChannelFromURL(ctx context.Context, url string, isOwnChannel, importVideos bool, maxVideos int) (*models.Channel, error) {
	s.logger.Infof("Importing channel from URL: %s", url)

	data, err := s.yt.GetChannelByURL(ctx, url)
	if err != nil {
		return nil, err
	}

	channel, err := s.upsertChannel(data, isOwnChannel)
	if err != nil {
		return nil, err
	}

	if err := s.createChannelSnapshot(channel); err != nil {
		return nil, err
	}

	if importVideos && channel.UploadsPlaylistID != "" {
		if _, err := s.ImportChannelVideos(ctx, channel, maxVideos); err != nil {
			// The channel itself imported fine; report and move on.
			s.logger.Errorf("Error importing videos for channel %s: %v", channel.YoutubeChannelID, err)
		}
	}

	s.logger.Infof("Imported channel: %s", channel.Title)
	return channel, nil
}

// ImportChannelVideos pulls up to maxVideos from the channel's uploads
// playlist and upserts each one. Returns the number imported.
func (s *Service) ImportChannelVideos(ctx context.Context, channel *models.Channel, maxVideos int) (int, error) {
	if channel.UploadsPlaylistID == "" {
		s.logger.Warnf("Channel %s has no uploads playlist", channel.YoutubeChannelID)
		return 0, nil
	}
	if maxVideos <= 0 {
		maxVideos = 50
	}

	videos, err := s.yt.GetChannelVideos(ctx, channel.UploadsPlaylistID, maxVideos)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i := range videos {
		if _, err := s.upsertVideo(channel.ID, &videos[i]); err != nil {
			s.logger.Errorf("Error importing video %s: %v", videos[i].ID, err)
			continue
		}
		imported++
	}

	s.logger.Infof("Imported %d videos for channel %s", imported, channel.Title)
	return imported, nil
}

// RefreshAllChannels re-syncs every tracked channel. An exhausted key pool
// aborts the whole cycle ("try again later"); any other per-channel failure
// is logged and the sweep moves on.
func (s *Service) RefreshAllChannels(ctx context.Context) error {
	var channels []models.Channel
	if err := s.db.Find(&channels).Error; err != nil {
		return err
	}

	for i := range channels {
		if err := s.RefreshChannel(ctx, &channels[i]); err != nil {
			if errors.Is(err, core.ErrAllKeysExhausted) {
				s.logger.Warn("All API keys exhausted, skipping rest of refresh cycle")
				return err
			}
			s.logger.Errorf("Error refreshing channel %s: %v", channels[i].YoutubeChannelID, err)
		}
	}
	return nil
}

// RefreshChannel re-fetches a channel's current counters and appends a
// snapshot.
func (s *Service) RefreshChannel(ctx context.Context, channel *models.Channel) error {
	data, err := s.yt.GetChannelByID(ctx, channel.YoutubeChannelID)
	if err != nil {
		return err
	}

	applyChannelData(channel, data)
	if err := s.db.Save(channel).Error; err != nil {
		return err
	}
	return s.createChannelSnapshot(channel)
}

// RefreshVideo re-fetches a video's current counters and appends a snapshot.
func (s *Service) RefreshVideo(ctx context.Context, video *models.Video) error {
	data, err := s.yt.GetVideoByID(ctx, video.YoutubeVideoID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	video.ViewCount = uint64(data.Statistics.ViewCount)
	video.LikeCount = uint64(data.Statistics.LikeCount)
	video.CommentCount = uint64(data.Statistics.CommentCount)
	video.LastSyncAt = &now

	if err := s.db.Save(video).Error; err != nil {
		return err
	}
	return s.createVideoSnapshot(video)
}

func (s *Service) upsertChannel(data *youtube.Channel, isOwnChannel bool) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.Where("youtube_channel_id = ?", data.ID).First(&channel).Error

	switch {
	case err == nil:
		s.logger.Infof("Channel %s already exists, updating", data.ID)
		applyChannelData(&channel, data)
	case errors.Is(err, gorm.ErrRecordNotFound):
		channel = models.Channel{
			YoutubeChannelID: data.ID,
			IsOwnChannel:     isOwnChannel,
			PublishedAt:      parseTimestamp(data.Snippet.PublishedAt),
		}
		applyChannelData(&channel, data)
	default:
		return nil, err
	}

	if err := s.db.Save(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (s *Service) upsertVideo(channelID uint, data *youtube.Video) (*models.Video, error) {
	now := time.Now().UTC()

	var video models.Video
	err := s.db.Where("youtube_video_id = ?", data.ID).First(&video).Error

	switch {
	case err == nil:
		// Keep identity fields, refresh everything mutable.
	case errors.Is(err, gorm.ErrRecordNotFound):
		video = models.Video{
			YoutubeVideoID: data.ID,
			ChannelID:      channelID,
		}
		if ts := parseTimestamp(data.Snippet.PublishedAt); ts != nil {
			video.PublishedAt = *ts
		}
	default:
		return nil, err
	}

	video.Title = data.Snippet.Title
	video.Description = data.Snippet.Description
	video.ThumbnailURL = data.Snippet.Thumbnails.Default.URL
	video.Duration = data.ContentDetails.Duration
	video.ViewCount = uint64(data.Statistics.ViewCount)
	video.LikeCount = uint64(data.Statistics.LikeCount)
	video.CommentCount = uint64(data.Statistics.CommentCount)
	video.LastSyncAt = &now

	if err := s.db.Save(&video).Error; err != nil {
		return nil, err
	}

	if err := s.createVideoSnapshot(&video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (s *Service) createChannelSnapshot(channel *models.Channel) error {
	return s.db.Create(&models.ChannelStatsSnapshot{
		ChannelID:       channel.ID,
		ViewCount:       channel.ViewCount,
		SubscriberCount: channel.SubscriberCount,
		VideoCount:      channel.VideoCount,
		CapturedAt:      time.Now().UTC(),
	}).Error
}

func (s *Service) createVideoSnapshot(video *models.Video) error {
	return s.db.Create(&models.VideoStatsSnapshot{
		VideoID:      video.ID,
		ViewCount:    video.ViewCount,
		LikeCount:    video.LikeCount,
		CommentCount: video.CommentCount,
		CapturedAt:   time.Now().UTC(),
	}).Error
}

func applyChannelData(channel *models.Channel, data *youtube.Channel) {
	now := time.Now().UTC()

	channel.Title = data.Snippet.Title
	channel.Description = data.Snippet.Description
	channel.CustomURL = data.Snippet.CustomURL
	channel.Country = data.Snippet.Country
	channel.ThumbnailURL = data.Snippet.Thumbnails.Default.URL
	channel.ViewCount = uint64(data.Statistics.ViewCount)
	channel.SubscriberCount = uint64(data.Statistics.SubscriberCount)
	channel.HiddenSubscriberCount = data.Statistics.HiddenSubscriberCount
	channel.VideoCount = uint64(data.Statistics.VideoCount)
	if uploads := data.ContentDetails.RelatedPlaylists.Uploads; uploads != "" {
		channel.UploadsPlaylistID = uploads
	}
	channel.LastSyncAt = &now
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
