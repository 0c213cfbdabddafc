package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/wellhost/wellhost-server-go/internal/database"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/sse"
)

// memAccountRepo keeps external_accounts semantics in memory: one active row
// per (user, platform) and version-conditional token updates.
type memAccountRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.ExternalAccount
	upsertErr error
	upserts   int
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{rows: make(map[string]*model.ExternalAccount)}
}

func (r *memAccountRepo) add(account model.ExternalAccount) *model.ExternalAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.IsActive = true
	stored := account
	r.rows[account.ID] = &stored
	return &account
}

func (r *memAccountRepo) activeRows() []model.ExternalAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExternalAccount
	for _, row := range r.rows {
		if row.IsActive {
			out = append(out, *row)
		}
	}
	return out
}

func (r *memAccountRepo) FindActive(ctx context.Context, userID string, platform model.Platform) (*model.ExternalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID && row.Platform == platform && row.IsActive {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, id string) (*model.ExternalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (r *memAccountRepo) ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ExternalAccount
	for _, row := range r.rows {
		if row.UserID == userID && row.IsActive {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAccountRepo) Upsert(ctx context.Context, params model.UpsertExternalAccountParams) (*model.ExternalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}

	metadata, err := params.MetadataJSON()
	if err != nil {
		return nil, err
	}

	var row *model.ExternalAccount
	for _, existing := range r.rows {
		if existing.UserID == params.UserID && existing.Platform == params.Platform && existing.IsActive {
			row = existing
			row.TokenVersion++
		}
	}
	if row == nil {
		row = &model.ExternalAccount{
			ID:        uuid.NewString(),
			UserID:    params.UserID,
			Platform:  params.Platform,
			IsActive:  true,
			CreatedAt: time.Now(),
		}
		r.rows[row.ID] = row
	}

	now := time.Now()
	row.ExternalAccountID = params.ExternalAccountID
	row.AccessToken = params.AccessToken
	row.RefreshToken = params.RefreshToken
	row.TokenExpiresAt = params.TokenExpiresAt
	row.Scopes = params.Scopes
	row.Metadata = metadata
	row.LastSyncedAt = &now
	row.UpdatedAt = now

	copied := *row
	return &copied, nil
}

func (r *memAccountRepo) UpdateTokens(ctx context.Context, params model.UpdateTokensParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[params.ID]
	if !ok || !row.IsActive || row.TokenVersion != params.ExpectedVersion {
		return false, nil
	}
	row.AccessToken = params.AccessToken
	row.RefreshToken = params.RefreshToken
	row.TokenExpiresAt = params.TokenExpiresAt
	row.TokenVersion++
	return true, nil
}

func (r *memAccountRepo) Deactivate(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID && row.Platform == platform && row.IsActive {
			row.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memAccountRepo) CountByState(ctx context.Context) ([]model.AccountStateCount, error) {
	return nil, errors.New("not implemented")
}

type mockPropertyRepo struct {
	mock.Mock
}

func (m *mockPropertyRepo) FindByID(ctx context.Context, id string) (*model.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *mockPropertyRepo) FindByChannexID(ctx context.Context, channexPropertyID string) (*model.Property, error) {
	args := m.Called(ctx, channexPropertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *mockPropertyRepo) ListByUser(ctx context.Context, userID string) ([]model.Property, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Property), args.Error(1)
}

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) Upsert(ctx context.Context, params model.UpsertReservationParams) (*model.Reservation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockReservationRepo) List(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockReservationRepo) Count(ctx context.Context, filter model.ReservationFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

type mockInventoryRepo struct {
	mock.Mock
}

func (m *mockInventoryRepo) Create(ctx context.Context, params model.CreateInventoryChangeParams) (*model.InventoryChange, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventoryChange), args.Error(1)
}

func (m *mockInventoryRepo) WithTx(tx *sqlx.Tx) repository.InventoryRepository {
	return m
}

// fakeTxRunner runs fn without a real transaction and records whether it
// would have committed.
type fakeTxRunner struct {
	calls      int
	rolledBack bool
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	f.calls++
	err := fn(nil)
	f.rolledBack = err != nil
	return err
}

type memPageCache struct {
	mu          sync.Mutex
	pages       map[string]map[string]any
	generations map[string]int64
	invalidated []string
}

func newMemPageCache() *memPageCache {
	return &memPageCache{
		pages:       make(map[string]map[string]any),
		generations: make(map[string]int64),
	}
}

func (c *memPageCache) Generation(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key], nil
}

func (c *memPageCache) Get(ctx context.Context, key, field string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.pages[key][field]
	if !ok {
		return false, nil
	}
	page, ok := dest.(*model.ReservationPage)
	if !ok {
		return false, errors.New("unexpected cache destination")
	}
	*page = value.(model.ReservationPage)
	return true, nil
}

func (c *memPageCache) Set(ctx context.Context, key, field string, generation int64, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != generation {
		return nil
	}
	if c.pages[key] == nil {
		c.pages[key] = make(map[string]any)
	}
	c.pages[key][field] = value
	return nil
}

func (c *memPageCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, key)
	c.generations[key]++
	c.invalidated = append(c.invalidated, key)
	return nil
}

type publishedEvent struct {
	UserID string
	Event  sse.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, userID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Event: event})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event.Type)
	}
	return out
}

type memClaimStore struct {
	mu       sync.Mutex
	claims   map[string]bool
	released []string
	err      error
}

func newMemClaimStore() *memClaimStore {
	return &memClaimStore{claims: make(map[string]bool)}
}

func (s *memClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *memClaimStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	s.released = append(s.released, key)
	return nil
}
