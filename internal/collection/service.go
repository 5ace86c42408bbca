// Package collection manages collection tokens and resolves a token to the
// shared, read-only view of its owner's records.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
)

// Service implements token management and anonymous collection access.
type Service struct {
	tokens  store.CollectionTokenStore
	records store.RecordStore
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a collection service.
func NewService(tokens store.CollectionTokenStore, records store.RecordStore, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		records: records,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "collection")
	return s
}

var errTokenExists = domainerrors.Conflict("a collection token already exists for this user")

// CreateToken issues userID's collection token. A user that already has
// one gets a conflict; revoke it first to rotate.
// The store's unique constraint still settles two concurrent creates.
func (s *Service) CreateToken(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	existing, err := s.tokens.FindByUser(ctx, userID)
	switch {
	case err == nil && existing != nil:
		return nil, errTokenExists
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, internal("finding token", err)
	}

	tok, err := s.tokens.Create(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errTokenExists
		}
		return nil, internal("creating token", err)
	}

	s.logger.InfoContext(ctx, "collection token created", "user_id", userID)
	return tok, nil
}

// UserToken returns userID's current token.
func (s *Service) UserToken(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	tok, err := s.tokens.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("no collection token for this user")
		}
		return nil, internal("finding token", err)
	}
	return tok, nil
}

// DeleteToken revokes token on behalf of userID. A token owned by someone
// else is left intact.
func (s *Service) DeleteToken(ctx context.Context, userID int64, token string) error {
	err := s.tokens.Revoke(ctx, token, userID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound("collection token not found")
	case errors.Is(err, store.ErrNotOwner):
		s.logger.WarnContext(ctx, "token revoke denied", "user_id", userID)
		return domainerrors.Forbidden("collection token belongs to another user")
	default:
		return internal("revoking token", err)
	}

	s.logger.InfoContext(ctx, "collection token revoked", "user_id", userID)
	return nil
}

// RevokeAll removes every token held by userID. It succeeds when there are
// none.
func (s *Service) RevokeAll(ctx context.Context, userID int64) error {
	if err := s.tokens.DeleteAllByUser(ctx, userID); err != nil {
		return internal("revoking tokens", err)
	}
	return nil
}

// OwnerOf resolves token to its owner's user id.
func (s *Service) OwnerOf(ctx context.Context, token string) (int64, error) {
	tok, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		return 0, internal("finding token", err)
	}
	if tok == nil {
		return 0, domainerrors.NotFound("collection not found")
	}
	return tok.UserID, nil
}

// GetCollection returns the records shared through token. Only the token
// decides whose records are read; the caller needs no account.
func (s *Service) GetCollection(ctx context.Context, token string, filter models.RecordFilter) ([]models.Record, error) {
	owner, err := s.OwnerOf(ctx, token)
	if err != nil {
		return nil, err
	}

	recs, err := s.records.FindAllByUser(ctx, owner, filter)
	if err != nil {
		return nil, internal("listing collection", err)
	}
	return recs, nil
}

func internal(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domainerrors.Internal("internal error", fmt.Errorf("%s: %w", op, err))
}
