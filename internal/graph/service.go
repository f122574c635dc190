// Package graph creates and removes follow relationships. The follower and
// following counters are kept by the counters reactor, not here.
package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

type Service struct {
	users   repositories.UserRepository
	follows repositories.FollowRepository
	logger  *slog.Logger
}

func NewService(users repositories.UserRepository, follows repositories.FollowRepository, logger *slog.Logger) *Service {
	return &Service{users: users, follows: follows, logger: logger}
}

// Follow records that sender follows receiver.
func (s *Service) Follow(ctx context.Context, sender, receiver string) (*models.Follow, error) {
	if sender == receiver {
		return nil, models.NewValidationError("cannot follow yourself")
	}
	if err := s.requireUser(ctx, receiver); err != nil {
		return nil, err
	}
	_, err := s.follows.GetFollow(ctx, sender, receiver)
	switch {
	case err == nil:
		return nil, models.NewConflictError("already followed")
	case !errors.Is(err, store.ErrNotFound):
		return nil, models.NewStoreError(err)
	}

	follow := &models.Follow{SenderHandle: sender, ReceiverHandle: receiver}
	if err := s.follows.CreateFollow(ctx, follow); err != nil {
		return nil, models.NewStoreError(err)
	}
	s.logger.InfoContext(ctx, "follow created",
		slog.String("sender", sender),
		slog.String("receiver", receiver))
	return follow, nil
}

// Unfollow removes the follow of sender on receiver.
func (s *Service) Unfollow(ctx context.Context, sender, receiver string) error {
	if err := s.requireUser(ctx, receiver); err != nil {
		return err
	}
	follow, err := s.follows.GetFollow(ctx, sender, receiver)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewConflictError("not followed")
	}
	if err != nil {
		return models.NewStoreError(err)
	}
	if err := s.follows.DeleteFollow(ctx, follow.FollowID); err != nil {
		// lost a race with a concurrent unfollow
		if errors.Is(err, store.ErrNotFound) {
			return models.NewConflictError("not followed")
		}
		return models.NewStoreError(err)
	}
	s.logger.InfoContext(ctx, "follow removed",
		slog.String("sender", sender),
		slog.String("receiver", receiver))
	return nil
}

// Followers lists the follows received by handle, newest first.
func (s *Service) Followers(ctx context.Context, handle string) ([]models.Follow, error) {
	if err := s.requireUser(ctx, handle); err != nil {
		return nil, err
	}
	follows, err := s.follows.GetFollowers(ctx, handle)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	return follows, nil
}

// Following lists the follows sent by handle, newest first.
func (s *Service) Following(ctx context.Context, handle string) ([]models.Follow, error) {
	if err := s.requireUser(ctx, handle); err != nil {
		return nil, err
	}
	follows, err := s.follows.GetFollowing(ctx, handle)
	if err != nil {
		return nil, models.NewStoreError(err)
	}
	return follows, nil
}

func (s *Service) requireUser(ctx context.Context, handle string) error {
	exists, err := s.users.HandleExists(ctx, handle)
	if err != nil {
		return models.NewStoreError(err)
	}
	if !exists {
		return models.NewNotFoundError("user", handle)
	}
	return nil
}
