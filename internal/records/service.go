// Package records implements record use cases on top of a RecordStore:
// input validation, ownership checks, and translation of store errors into
// domain errors.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/validation"
)

// MaxBatchSize caps CreateMany so a batch fits in one statement on every
// backend.
const MaxBatchSize = 1000

// Service implements the record use cases for an authenticated user.
type Service struct {
	records   store.RecordStore
	validator *validation.Validator
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a record service.
func NewService(records store.RecordStore, opts ...Option) *Service {
	s := &Service{
		records:   records,
		validator: validation.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "records")
	return s
}

// Create validates input and stores it for userID.
func (s *Service) Create(ctx context.Context, userID int64, input models.RecordInput) (*models.Record, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	rec, err := s.records.Create(ctx, userID, input)
	if err != nil {
		return nil, translate("creating record", err)
	}

	s.logger.InfoContext(ctx, "record created", "user_id", userID, "record_id", rec.ID, "tags", len(rec.Tags))
	return rec, nil
}

// CreateMany validates every input, then stores them all or none. Errors
// for individual inputs are reported under "records[i]".
func (s *Service) CreateMany(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error) {
	if len(inputs) > MaxBatchSize {
		return nil, domainerrors.Validation(fmt.Sprintf("at most %d records per batch", MaxBatchSize))
	}

	invalid := make(map[string]any)
	for i, in := range inputs {
		err := s.validator.Validate(in)
		if err == nil {
			continue
		}
		var de *domainerrors.Error
		if !errors.As(err, &de) {
			return nil, err
		}
		invalid[fmt.Sprintf("records[%d]", i)] = de.Details
	}
	if len(invalid) > 0 {
		return nil, domainerrors.ValidationWithDetails("validation failed", invalid)
	}

	recs, err := s.records.CreateMany(ctx, userID, inputs)
	if err != nil {
		return nil, translate("creating records", err)
	}

	s.logger.InfoContext(ctx, "records created", "user_id", userID, "count", len(recs))
	return recs, nil
}

// Get returns a record owned by userID.
func (s *Service) Get(ctx context.Context, userID, id int64) (*models.Record, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, translate("finding record", err)
	}
	if rec == nil {
		return nil, domainerrors.NotFoundf("record %d not found", id)
	}
	if rec.UserID != userID {
		return nil, domainerrors.Forbidden("record belongs to another user")
	}
	return rec, nil
}

// List returns userID's records narrowed by filter.
func (s *Service) List(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.Record, error) {
	recs, err := s.records.FindAllByUser(ctx, userID, filter)
	if err != nil {
		return nil, translate("listing records", err)
	}
	return recs, nil
}

// Random returns one of userID's matching records, or nil when none match.
func (s *Service) Random(ctx context.Context, userID int64, filter models.RecordFilter) (*models.Record, error) {
	rec, err := s.records.RandomByUser(ctx, userID, filter)
	if err != nil {
		return nil, translate("picking random record", err)
	}
	return rec, nil
}

// Delete removes a record owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if err := s.records.Delete(ctx, id); err != nil {
		return translate("deleting record", err)
	}

	s.logger.InfoContext(ctx, "record deleted", "user_id", userID, "record_id", id)
	return nil
}

// translate maps store errors to domain errors. Anything unrecognized is an
// internal error whose cause is kept for logging.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound("record not found")
	case errors.Is(err, store.ErrConflict):
		return domainerrors.Conflict("a tag was created concurrently, retry the request").WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domainerrors.Internal("internal error", fmt.Errorf("%s: %w", op, err))
	}
}
