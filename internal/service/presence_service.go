package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"djbooking/internal/domain"
	"djbooking/internal/metrics"
	"djbooking/internal/models"

	"github.com/rs/zerolog"
)

// PresenceService answers "is this user around" from heartbeats.
type PresenceService struct {
	repo   domain.PresenceRepository
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewPresenceService(repo domain.PresenceRepository, ttl time.Duration, logger *zerolog.Logger) *PresenceService {
	if ttl <= 0 {
		ttl = models.DefaultPresenceTTL * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PresenceService{repo: repo, ttl: ttl, logger: logger}
}

func (s *PresenceService) Heartbeat(ctx context.Context, username string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}
	if err := s.repo.Touch(ctx, username, s.ttl); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to record heartbeat")
		return err
	}
	return nil
}

func (s *PresenceService) Leave(ctx context.Context, username string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}
	return s.repo.Remove(ctx, username)
}

func (s *PresenceService) IsOnline(ctx context.Context, username string) (bool, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return false, err
	}
	return s.repo.IsOnline(ctx, username)
}

func (s *PresenceService) Online(ctx context.Context) ([]string, error) {
	users, err := s.repo.Online(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetOnlineUsers(len(users))
	return users, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(username), "@")))
	if username == "" {
		return "", fmt.Errorf("%w: username is required", ErrValidation)
	}
	return username, nil
}
