// Package supastore is the hosted Row Store: PostgREST over supabase-go for
// table calls and the realtime websocket for change events.
package supastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// Config selects the project and the key requests are made with.
type Config struct {
	URL         string
	AnonKey     string
	AccessToken string // signed-in user's token; row level security applies to it
}

// Store implements rowstore.Client against a Supabase project.
type Store struct {
	cfg      Config
	mu       sync.RWMutex
	client   *supabase.Client
	realtime *Realtime
	logger   *zap.Logger
}

// New creates a store. When cfg.AccessToken is set every request carries it
// instead of the anon key.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase url and anon key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	rt, err := NewRealtime(RealtimeURL(cfg.URL, cfg.AnonKey), realtimeToken(cfg), logger)
	if err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, client: client, realtime: rt, logger: logger}, nil
}

func newClient(cfg Config) (*supabase.Client, error) {
	var opts *supabase.ClientOptions
	if cfg.AccessToken != "" {
		opts = &supabase.ClientOptions{
			Headers: map[string]string{"Authorization": "Bearer " + cfg.AccessToken},
		}
	}
	client, err := supabase.NewClient(cfg.URL, cfg.AnonKey, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to create supabase client: %w", err)
	}
	return client, nil
}

func realtimeToken(cfg Config) string {
	if cfg.AccessToken != "" {
		return cfg.AccessToken
	}
	return cfg.AnonKey
}

// SetAccessToken switches later requests and joins to token. An empty
// token goes back to the anon key.
func (s *Store) SetAccessToken(token string) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	cfg.AccessToken = token
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.client = client
	s.mu.Unlock()
	s.realtime.SetToken(realtimeToken(cfg))
	return nil
}

func (s *Store) rest() *supabase.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Client exposes the underlying supabase client, e.g. for token verification.
func (s *Store) Client() *supabase.Client { return s.rest() }

// Close drops the realtime connection.
func (s *Store) Close() error { return s.realtime.Close() }

func (s *Store) Select(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.rest().From(table).Select("*", "", false)
	for _, col := range filter.Columns() {
		q = q.Eq(col, rowstore.ValueString(filter[col]))
	}
	body, _, err := q.Execute()
	if err != nil {
		return nil, classify(table, err)
	}
	return decodeRows(table, body)
}

func (s *Store) Insert(ctx context.Context, table string, row rowstore.Row) (rowstore.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := s.rest().From(table).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return nil, classify(table, err)
	}
	return firstRow(table, body)
}

func (s *Store) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) (rowstore.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.rest().From(table).Update(patch, "representation", "")
	for _, col := range filter.Columns() {
		q = q.Eq(col, rowstore.ValueString(filter[col]))
	}
	body, _, err := q.Execute()
	if err != nil {
		return nil, classify(table, err)
	}
	return firstRow(table, body)
}

func (s *Store) Delete(ctx context.Context, table string, filter rowstore.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("refusing unfiltered delete on %s", table)
	}
	q := s.rest().From(table).Delete("minimal", "")
	for _, col := range filter.Columns() {
		q = q.Eq(col, rowstore.ValueString(filter[col]))
	}
	if _, _, err := q.Execute(); err != nil {
		return classify(table, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, table string, filter rowstore.Filter, onEvent func(rowstore.Event)) (rowstore.Unsubscribe, error) {
	return s.realtime.Subscribe(ctx, table, filter, onEvent)
}

func decodeRows(table string, body []byte) ([]rowstore.Row, error) {
	var rows []rowstore.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

func firstRow(table string, body []byte) (rowstore.Row, error) {
	rows, err := decodeRows(table, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}
	return rows[0], nil
}

// classify maps PostgREST error bodies onto the rowstore sentinels.
func classify(table string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "23505"), strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%s: %w: %v", table, rowstore.ErrDuplicate, err)
	case strings.Contains(msg, "PGRST116"):
		return fmt.Errorf("%s: %w: %v", table, rowstore.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", table, err)
}
