package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"ticket-admin/config"
	"ticket-admin/utils"
)

// FeedService fans each validation decision out to the operator dashboards:
// a capped Redis list per event for the recent-scans view, a Redis pub/sub
// channel, and a PubNub push to the event channel. All of it is fire and
// forget; the verdict is already final when PublishScan runs.
type FeedService struct {
	Redis   *redis.Client
	PubNub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
	size    int64
	ttl     time.Duration
	logger  *slog.Logger
}

func NewFeedService(redisClient *redis.Client, pn *pubnub.PubNub, cfg *config.Config, logger *slog.Logger) *FeedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedService{
		Redis:   redisClient,
		PubNub:  pn,
		breaker: utils.NewCircuitBreaker("scan-feed"),
		size:    int64(cfg.FeedSize),
		ttl:     cfg.FeedTTL,
		logger:  logger,
	}
}

// ScanSummary is the feed wire format: enough for a dashboard row, nothing
// the ledger doesn't already hold.
type ScanSummary struct {
	EventID     string `json:"event_id"`
	PurchaseID  string `json:"purchase_id,omitempty"`
	TicketID    string `json:"ticket_id,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	ValidatedBy string `json:"validated_by"`
	ScannedAt   string `json:"scanned_at"`
}

func (s *FeedService) PublishScan(ctx context.Context, summary ScanSummary) {
	if summary.ScannedAt == "" {
		summary.ScannedAt = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.Error("feed: marshal scan summary", "error", err)
		return
	}

	if s.Redis != nil {
		feedKey := fmt.Sprintf("checkins:feed:%s", summary.EventID)
		_, err = s.breaker.Execute(ctx, func() (any, error) {
			if err := s.Redis.LPush(ctx, feedKey, data).Err(); err != nil {
				return nil, err
			}
			if err := s.Redis.LTrim(ctx, feedKey, 0, s.size-1).Err(); err != nil {
				return nil, err
			}
			if err := s.Redis.Expire(ctx, feedKey, s.ttl).Err(); err != nil {
				return nil, err
			}
			return nil, s.Redis.Publish(ctx, "checkins:feed", data).Err()
		})
		if err != nil {
			s.logger.Warn("feed: redis publish skipped", "error", err, "event_id", summary.EventID)
		}
	}

	if s.PubNub != nil {
		channel := fmt.Sprintf("event-%s", summary.EventID)
		_, _, err := s.PubNub.Publish().
			Channel(channel).
			Message(summary).
			Execute()
		if err != nil {
			s.logger.Warn("feed: pubnub publish skipped", "error", err, "event_id", summary.EventID)
		}
	}
}

// RecentScans returns the newest feed entries for an event, newest first.
func (s *FeedService) RecentScans(ctx context.Context, eventID string, limit int64) ([]ScanSummary, error) {
	if s.Redis == nil {
		return nil, nil
	}
	if limit <= 0 || limit > s.size {
		limit = s.size
	}

	feedKey := fmt.Sprintf("checkins:feed:%s", eventID)
	raw, err := s.Redis.LRange(ctx, feedKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("feed: recent scans: %w", err)
	}

	scans := make([]ScanSummary, 0, len(raw))
	for _, item := range raw {
		var summary ScanSummary
		if err := json.Unmarshal([]byte(item), &summary); err != nil {
			s.logger.Warn("feed: skipping malformed feed entry", "error", err)
			continue
		}
		scans = append(scans, summary)
	}
	return scans, nil
}
