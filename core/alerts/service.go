package alerts

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ytpulse/core/analytics"
	"ytpulse/models"
)

// Notifier receives every alert event as it is created. Used to push events
// to live dashboard clients; a nil notifier is fine.
type Notifier interface {
	Publish(event models.AlertEvent)
}

// Service evaluates active alert rules against stored stats.
type Service struct {
	db       *gorm.DB
	calc     *analytics.Calculator
	logger   *logrus.Logger
	notifier Notifier
}

func NewService(db *gorm.DB, calc *analytics.Calculator, notifier Notifier, logger *logrus.Logger) *Service {
	return &Service{db: db, calc: calc, notifier: notifier, logger: logger}
}

// CheckAll evaluates every active alert. A failing rule is logged and the
// sweep continues with the rest.
func (s *Service) CheckAll() error {
	var alerts []models.Alert
	if err := s.db.Where("is_active = ?", true).Find(&alerts).Error; err != nil {
		return err
	}

	s.logger.Infof("Checking %d active alerts", len(alerts))

	for i := range alerts {
		if err := s.check(&alerts[i]); err != nil {
			s.logger.Errorf("Error checking alert %d: %v", alerts[i].ID, err)
		}
	}
	return nil
}

func (s *Service) check(alert *models.Alert) error {
	switch alert.AlertType {
	case models.AlertTypeViralVideo:
		return s.checkViralVideo(alert)
	case models.AlertTypeEngagementDrop:
		return s.checkEngagementDrop(alert)
	default:
		s.logger.Warnf("Alert %d has unknown type %q, skipping", alert.ID, alert.AlertType)
		return nil
	}
}

// checkViralVideo fires when a video gains more than the threshold's worth
// of views inside the alert window.
func (s *Service) checkViralVideo(alert *models.Alert) error {
	since := time.Now().UTC().Add(-time.Duration(alert.TimeWindowHours) * time.Hour)

	query := s.db.Model(&models.Video{})
	if alert.ChannelID != nil {
		query = query.Where("channel_id = ?", *alert.ChannelID)
	}

	var videos []models.Video
	if err := query.Find(&videos).Error; err != nil {
		return err
	}

	for i := range videos {
		video := &videos[i]

		growth, err := s.calc.VideoGrowth(video, since)
		if err != nil {
			return err
		}
		if growth == nil || float64(*growth) < alert.ThresholdValue {
			continue
		}

		fired, err := s.firedRecently(alert.ID, &video.ID, nil, since)
		if err != nil {
			return err
		}
		if fired {
			continue
		}

		msg := fmt.Sprintf("Video %q gained %d views in %dh", video.Title, *growth, alert.TimeWindowHours)
		if err := s.trigger(alert, &video.ID, &video.ChannelID, msg, float64(*growth)); err != nil {
			return err
		}
	}
	return nil
}

// checkEngagementDrop fires when the mean engagement rate of a channel's
// last-7-day uploads falls below the threshold.
func (s *Service) checkEngagementDrop(alert *models.Alert) error {
	if alert.ChannelID == nil {
		s.logger.Warnf("Alert %d has no channel_id, skipping", alert.ID)
		return nil
	}

	var channel models.Channel
	err := s.db.First(&channel, *alert.ChannelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	var recent []models.Video
	err = s.db.
		Where("channel_id = ? AND published_at >= ?", channel.ID, weekAgo).
		Find(&recent).Error
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	var sum float64
	for i := range recent {
		sum += analytics.EngagementRate(&recent[i])
	}
	avg := sum / float64(len(recent))

	if avg >= alert.ThresholdValue {
		return nil
	}

	since := time.Now().UTC().Add(-time.Duration(alert.TimeWindowHours) * time.Hour)
	fired, err := s.firedRecently(alert.ID, nil, &channel.ID, since)
	if err != nil || fired {
		return err
	}

	msg := fmt.Sprintf("Channel %q engagement dropped to %.4f (threshold: %.4f)",
		channel.Title, avg, alert.ThresholdValue)
	return s.trigger(alert, nil, &channel.ID, msg, avg)
}

// firedRecently reports whether this alert already produced an event for the
// same video or channel inside the dedup window.
func (s *Service) firedRecently(alertID uint, videoID, channelID *uint, since time.Time) (bool, error) {
	query := s.db.Model(&models.AlertEvent{}).
		Where("alert_id = ? AND triggered_at >= ?", alertID, since)
	if videoID != nil {
		query = query.Where("video_id = ?", *videoID)
	}
	if channelID != nil {
		query = query.Where("channel_id = ?", *channelID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) trigger(alert *models.Alert, videoID, channelID *uint, message string, metricValue float64) error {
	event := models.AlertEvent{
		AlertID:     alert.ID,
		VideoID:     videoID,
		ChannelID:   channelID,
		Message:     message,
		MetricValue: metricValue,
		TriggeredAt: time.Now().UTC(),
	}
	if err := s.db.Create(&event).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	alert.LastTriggeredAt = &now
	alert.TriggerCount++
	if err := s.db.Save(alert).Error; err != nil {
		return err
	}

	s.logger.Infof("Alert triggered: %s", message)
	if s.notifier != nil {
		s.notifier.Publish(event)
	}
	return nil
}

// RecentEvents returns the newest events, optionally unread only.
func (s *Service) RecentEvents(limit int, unreadOnly bool) ([]models.AlertEvent, error) {
	query := s.db.Order("triggered_at DESC").Limit(limit)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var events []models.AlertEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkEventRead flags one event as read.
func (s *Service) MarkEventRead(eventID uint) (*models.AlertEvent, error) {
	var event models.AlertEvent
	if err := s.db.First(&event, eventID).Error; err != nil {
		return nil, err
	}
	event.IsRead = true
	if err := s.db.Save(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}
