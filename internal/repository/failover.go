package repository

import (
	"context"
	"sync/atomic"
	"time"

	"djbooking/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryProbeInterval = time.Minute

// FailoverPresenceRepository serves from primary until it errors, then from fallback,
// probing primary again once per recoveryProbeInterval.
// Presence recorded in the fallback during an outage is not copied back; it expires with its TTL.
type FailoverPresenceRepository struct {
	primary   domain.PresenceRepository
	fallback  domain.PresenceRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary call
}

func NewFailoverPresenceRepository(primary, fallback domain.PresenceRepository, logger *zerolog.Logger) *FailoverPresenceRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverPresenceRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Degraded reports whether calls currently go to the fallback.
func (r *FailoverPresenceRepository) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverPresenceRepository) shouldProbe() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryProbeInterval
}

func withFailover[T any](r *FailoverPresenceRepository, op string, call func(domain.PresenceRepository) (T, error)) (T, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		v, err := call(r.primary)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Str("op", op).Msg("primary presence repository recovered")
			}
			return v, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Str("op", op).Msg("primary presence repository failed, falling back to memory")
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}
	return call(r.fallback)
}

func (r *FailoverPresenceRepository) Touch(ctx context.Context, username string, ttl time.Duration) error {
	_, err := withFailover(r, "touch", func(repo domain.PresenceRepository) (struct{}, error) {
		return struct{}{}, repo.Touch(ctx, username, ttl)
	})
	return err
}

func (r *FailoverPresenceRepository) Remove(ctx context.Context, username string) error {
	_, err := withFailover(r, "remove", func(repo domain.PresenceRepository) (struct{}, error) {
		return struct{}{}, repo.Remove(ctx, username)
	})
	return err
}

func (r *FailoverPresenceRepository) IsOnline(ctx context.Context, username string) (bool, error) {
	return withFailover(r, "is_online", func(repo domain.PresenceRepository) (bool, error) {
		return repo.IsOnline(ctx, username)
	})
}

func (r *FailoverPresenceRepository) Online(ctx context.Context) ([]string, error) {
	return withFailover(r, "online", func(repo domain.PresenceRepository) ([]string, error) {
		return repo.Online(ctx)
	})
}
