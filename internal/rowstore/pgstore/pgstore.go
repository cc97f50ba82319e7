// Package pgstore is the self-hosted Row Store: gorm over Postgres for table
// calls, and a pg_notify trigger read with a lib/pq listener for change
// events.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotifyChannel is the LISTEN channel the change trigger publishes on.
const NotifyChannel = "linkup_changes"

type subscription struct {
	table   string
	filter  rowstore.Filter
	onEvent func(rowstore.Event)
}

// Store implements rowstore.Client over a gorm connection.
type Store struct {
	db     *gorm.DB
	dsn    string
	logger *zap.Logger

	mu       sync.Mutex
	listener *listener
	subs     map[int]subscription
	nextSub  int
}

// New creates a store on db. dsn is used to open the separate LISTEN
// connection and may be empty when Subscribe is never called.
func New(db *gorm.DB, dsn string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		dsn:    dsn,
		logger: logger,
		subs:   make(map[int]subscription),
	}
}

// Models are the tables the store migrates.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Connection{},
		&models.Job{},
		&models.JobApplication{},
		&models.Notification{},
	}
}

// Migrate creates the tables, their constraints and the change trigger.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(notifyFunction).Error; err != nil {
		return fmt.Errorf("create notify function: %w", err)
	}
	for _, t := range models.Types {
		table := clause.Table{Name: t.Table()}
		if err := db.Exec("DROP TRIGGER IF EXISTS linkup_changes ON ?", table).Error; err != nil {
			return fmt.Errorf("drop trigger on %s: %w", t, err)
		}
		if err := db.Exec("CREATE TRIGGER linkup_changes AFTER INSERT OR UPDATE OR DELETE ON ? FOR EACH ROW EXECUTE FUNCTION linkup_notify_change()", table).Error; err != nil {
			return fmt.Errorf("create trigger on %s: %w", t, err)
		}
	}
	s.logger.Info("row store schema migrated", zap.Int("tables", len(models.Types)))
	return nil
}

const notifyFunction = `
CREATE OR REPLACE FUNCTION linkup_notify_change() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
    'type', TG_OP,
    'table', TG_TABLE_NAME,
    'record', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
    'old_record', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END,
    'commit_timestamp', now()
  )::text);
  RETURN COALESCE(NEW, OLD);
END;
$$ LANGUAGE plpgsql;`

func (s *Store) Select(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	var rows []map[string]interface{}
	q := s.db.WithContext(ctx).Table(table)
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, classify(table, err)
	}
	out := make([]rowstore.Row, len(rows))
	for i, r := range rows {
		out[i] = rowstore.Row(r)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row rowstore.Row) (rowstore.Row, error) {
	values := map[string]interface{}(row.Clone())
	if isZeroTime(values["created_at"]) {
		delete(values, "created_at")
	}
	if err := s.db.WithContext(ctx).Table(table).Create(values).Error; err != nil {
		return nil, classify(table, err)
	}
	if row.ID() == "" {
		return row.Clone(), nil
	}
	// re-read so column defaults come back
	rows, err := s.Select(ctx, table, rowstore.Eq("id", row.ID()))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) (rowstore.Row, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("refusing unfiltered update on %s", table)
	}
	res := s.db.WithContext(ctx).Table(table).
		Where(map[string]interface{}(filter)).
		Updates(map[string]interface{}(patch))
	if res.Error != nil {
		return nil, classify(table, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}

	// the patch may have changed filtered columns
	lookup := filter
	if id, ok := filter["id"]; ok {
		lookup = rowstore.Eq("id", id)
	}
	for col, v := range patch {
		if _, ok := lookup[col]; ok {
			lookup = lookup.And(col, v)
		}
	}
	rows, err := s.Select(ctx, table, lookup)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) Delete(ctx context.Context, table string, filter rowstore.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing unfiltered delete on %s", table)
	}
	conds := make([]string, 0, len(filter))
	args := []interface{}{clause.Table{Name: table}}
	for _, col := range filter.Columns() {
		conds = append(conds, "? = ?")
		args = append(args, clause.Column{Name: col}, filter[col])
	}
	sql := "DELETE FROM ? WHERE " + strings.Join(conds, " AND ")
	if err := s.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return classify(table, err)
	}
	return nil
}

func classify(table string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "23505"):
		return fmt.Errorf("%s: %w: %v", table, rowstore.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", table, rowstore.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", table, err)
}
