package eras

import (
	"context"
	"fmt"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
)

// MaxClusters caps the k a caller may ask for.
const MaxClusters = 12

// Service detects eras in a user's collection.
type Service struct {
	records store.RecordStore
	cfg     Config
}

// NewService creates an era service using cfg for anything a request does
// not override.
func NewService(records store.RecordStore, cfg Config) *Service {
	return &Service{records: records, cfg: cfg.withDefaults()}
}

// ForUser groups userID's records matching filter into k eras. k <= 0 uses
// the configured default.
func (s *Service) ForUser(ctx context.Context, userID int64, filter models.RecordFilter, k int) (*Result, error) {
	if k > MaxClusters {
		return nil, domainerrors.Validation(fmt.Sprintf("k must be at most %d", MaxClusters))
	}

	recs, err := s.records.FindAllByUser(ctx, userID, filter)
	if err != nil {
		return nil, domainerrors.Internal("internal error", fmt.Errorf("loading records: %w", err))
	}

	cfg := s.cfg
	if k > 0 {
		cfg.NumClusters = k
	}

	res := Detect(recs, cfg)
	return &res, nil
}
