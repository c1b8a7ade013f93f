package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/persistence"
)

const slaKeyPrefix = "ticket:"
const slaKeySuffix = ":sla"

// SLAKey builds the Redis key carrying a ticket's response timer.
func SLAKey(ticketID string) string {
	return slaKeyPrefix + ticketID + slaKeySuffix
}

// TicketIDFromSLAKey extracts the ticket ID from an expired-key event.
func TicketIDFromSLAKey(key string) (string, bool) {
	if !strings.HasPrefix(key, slaKeyPrefix) || !strings.HasSuffix(key, slaKeySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, slaKeyPrefix), slaKeySuffix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// SLAService manages response-time timers as Redis keys with a TTL. When a
// key expires, the SLA monitor worker receives the keyspace notification and
// escalates the ticket. The key value is the current assignee.
type SLAService struct {
	redis  *persistence.Redis
	window time.Duration
	logger *zap.Logger
}

// NewSLAService builds the service.
func NewSLAService(redis *persistence.Redis, window time.Duration, logger *zap.Logger) *SLAService {
	return &SLAService{redis: redis, window: window, logger: logger}
}

// Start arms (or re-arms) the timer for a ticket held by userID.
func (s *SLAService) Start(ctx context.Context, ticketID, userID string) error {
	if s == nil || s.redis == nil || s.redis.Client == nil {
		return nil
	}
	key := SLAKey(ticketID)
	if err := s.redis.Client.Set(ctx, key, userID, s.window).Err(); err != nil {
		s.logger.Error("failed to set sla timer", zap.String("ticket_id", ticketID), zap.Error(err))
		return fmt.Errorf("set sla timer: %w", err)
	}
	s.logger.Info("sla timer started",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", userID),
		zap.Duration("window", s.window))
	return nil
}

// Stop clears the timer, typically on completion.
func (s *SLAService) Stop(ctx context.Context, ticketID string) error {
	if s == nil || s.redis == nil || s.redis.Client == nil {
		return nil
	}
	if err := s.redis.Client.Del(ctx, SLAKey(ticketID)).Err(); err != nil {
		s.logger.Error("failed to clear sla timer", zap.String("ticket_id", ticketID), zap.Error(err))
		return fmt.Errorf("clear sla timer: %w", err)
	}
	return nil
}
