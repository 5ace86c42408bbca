// Package memstore is an in-memory implementation of the store contracts,
// used by service and handler tests.
package memstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

// Store holds every entity in maps guarded by one mutex. Multi-step writes
// run in a memTx whose undo log restores the maps on failure.
type Store struct {
	mu       sync.Mutex
	resolver *tags.Resolver

	nextRecordID int64
	nextTagID    int64
	nextTokenID  int64
	nextUserID   int64

	records   map[int64]models.Record // Tags left nil; see links
	links     map[int64][]int64       // record ID -> tag IDs in order
	tags      map[int64]models.Tag
	tagBySlug map[string]int64
	tokens    map[int64]models.CollectionToken
	users     map[int64]models.User
}

// New creates an empty store. A nil resolver gets the default one.
func New(resolver *tags.Resolver) *Store {
	if resolver == nil {
		resolver = tags.NewResolver()
	}
	return &Store{
		resolver:  resolver,
		records:   make(map[int64]models.Record),
		links:     make(map[int64][]int64),
		tags:      make(map[int64]models.Tag),
		tagBySlug: make(map[string]int64),
		tokens:    make(map[int64]models.CollectionToken),
		users:     make(map[int64]models.User),
	}
}

// Stores returns the store behind every interface.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Records: (*RecordRepository)(s),
		Tags:    (*TagRepository)(s),
		Tokens:  (*TokenRepository)(s),
		Users:   (*UserRepository)(s),
		Ping:    func(context.Context) error { return nil },
	}
}

type memTx struct {
	s    *Store
	undo []func()
	done bool
}

func (s *Store) begin() *memTx {
	s.mu.Lock()
	return &memTx{s: s}
}

func (tx *memTx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *memTx) rollback() {
	if tx.done {
		return
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.done = true
	tx.s.mu.Unlock()
}

func (tx *memTx) commit() {
	tx.done = true
	tx.s.mu.Unlock()
}

// tagQuerier implements tags.Querier inside a memTx.
type tagQuerier struct {
	tx *memTx
}

func (q tagQuerier) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, ok := q.tx.s.tagBySlug[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	tag := q.tx.s.tags[id]
	return &tag, nil
}

func (q tagQuerier) InsertTag(ctx context.Context, tag models.Tag) (*models.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := q.tx.s
	if _, ok := s.tagBySlug[tag.Slug]; ok {
		return nil, store.ErrConflict
	}
	s.nextTagID++
	tag.ID = s.nextTagID
	s.tags[tag.ID] = tag
	s.tagBySlug[tag.Slug] = tag.ID
	q.tx.onRollback(func() {
		delete(s.tags, tag.ID)
		delete(s.tagBySlug, tag.Slug)
	})
	return &tag, nil
}

// RecordRepository implements store.RecordStore.
type RecordRepository Store

var _ store.RecordStore = (*RecordRepository)(nil)

func (r *RecordRepository) store() *Store { return (*Store)(r) }

func (r *RecordRepository) Create(ctx context.Context, userID int64, input models.RecordInput) (*models.Record, error) {
	recs, err := r.create(ctx, userID, []models.RecordInput{input})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

func (r *RecordRepository) CreateMany(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error) {
	if len(inputs) == 0 {
		return []models.Record{}, nil
	}
	return r.create(ctx, userID, inputs)
}

func (r *RecordRepository) create(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error) {
	recs := make([]models.Record, len(inputs))
	for i, in := range inputs {
		rec, err := in.ToRecord(userID)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs[i] = rec
	}

	s := r.store()
	tx := s.begin()
	defer tx.rollback()

	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("inserting record: unknown user %d", userID)
	}

	for i := range recs {
		s.nextRecordID++
		recs[i].ID = s.nextRecordID
		row := recs[i]
		row.Tags = nil
		s.records[row.ID] = row
		tx.onRollback(func() { delete(s.records, row.ID) })
	}

	for i, in := range inputs {
		if len(in.Tags) == 0 {
			continue
		}
		resolved, err := s.resolver.ResolveAll(ctx, tagQuerier{tx}, in.Tags)
		if err != nil {
			return nil, fmt.Errorf("resolving tags: %w", err)
		}
		s.setLinks(tx, recs[i].ID, tags.IDs(resolved))
		recs[i].Tags = resolved
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.commit()
	return recs, nil
}

func (s *Store) setLinks(tx *memTx, recordID int64, tagIDs []int64) {
	prev, had := s.links[recordID]
	s.links[recordID] = tagIDs
	tx.onRollback(func() {
		if had {
			s.links[recordID] = prev
		} else {
			delete(s.links, recordID)
		}
	})
}

// hydrate copies a stored row and attaches its tags. Callers hold s.mu.
func (s *Store) hydrate(row models.Record) models.Record {
	row.Tags = make([]models.Tag, 0, len(s.links[row.ID]))
	for _, id := range s.links[row.ID] {
		row.Tags = append(row.Tags, s.tags[id])
	}
	return row
}

func (r *RecordRepository) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	rec := s.hydrate(row)
	return &rec, nil
}

func (r *RecordRepository) FindAllByUser(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.Record, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching(userID, filter), nil
}

func (r *RecordRepository) RandomByUser(ctx context.Context, userID int64, filter models.RecordFilter) (*models.Record, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.matching(userID, filter)
	if len(recs) == 0 {
		return nil, nil
	}
	rec := recs[rand.IntN(len(recs))]
	return &rec, nil
}

// matching applies the same AND semantics as store.RecordPredicates.
func (s *Store) matching(userID int64, filter models.RecordFilter) []models.Record {
	recs := []models.Record{}
	for _, row := range s.records {
		if row.UserID != userID {
			continue
		}
		if filter.Owned != nil && row.Owned != *filter.Owned {
			continue
		}
		if filter.Wanted != nil && row.Wanted != *filter.Wanted {
			continue
		}
		recs = append(recs, s.hydrate(row))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs
}

func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.links, id)
	delete(s.records, id)
	return nil
}

// TagRepository implements store.TagStore.
type TagRepository Store

var _ store.TagStore = (*TagRepository)(nil)

func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	s := (*Store)(r)
	tx := s.begin()
	defer tx.rollback()

	tag, err := s.resolver.FindOrCreate(ctx, tagQuerier{tx}, name)
	if err != nil {
		return nil, err
	}
	tx.commit()
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// TokenRepository implements store.CollectionTokenStore.
type TokenRepository Store

var _ store.CollectionTokenStore = (*TokenRepository)(nil)

func (r *TokenRepository) Create(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.UserID == userID {
			return nil, store.ErrConflict
		}
	}

	tok := models.NewCollectionToken(userID, time.Now())
	s.nextTokenID++
	tok.ID = s.nextTokenID
	s.tokens[tok.ID] = tok
	return &tok, nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.CollectionToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TokenRepository) FindByUser(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.UserID == userID {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *TokenRepository) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (r *TokenRepository) DeleteAllByUser(ctx context.Context, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (r *TokenRepository) Revoke(ctx context.Context, token string, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.Token != token {
			continue
		}
		if t.UserID != userID {
			return store.ErrNotOwner
		}
		delete(s.tokens, id)
		return nil
	}
	return store.ErrNotFound
}

// UserRepository implements store.UserStore.
type UserRepository Store

var _ store.UserStore = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user models.User) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, store.ErrConflict
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}
