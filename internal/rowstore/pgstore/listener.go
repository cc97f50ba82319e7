package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// notification is the JSON the change trigger publishes.
type notification struct {
	Type            string       `json:"type"`
	Table           string       `json:"table"`
	Record          rowstore.Row `json:"record"`
	OldRecord       rowstore.Row `json:"old_record"`
	CommitTimestamp time.Time    `json:"commit_timestamp"`
}

func (n notification) event() rowstore.Event {
	return rowstore.Event{
		Kind:       rowstore.EventKind(n.Type),
		Table:      n.Table,
		Record:     n.Record,
		OldRecord:  n.OldRecord,
		CommitTime: n.CommitTimestamp,
	}
}

type listener struct {
	pq   *pq.Listener
	stop chan struct{}
}

// Subscribe registers onEvent for changes to table matching filter. The
// first subscription opens the LISTEN connection; the last one to leave
// closes it.
func (s *Store) Subscribe(ctx context.Context, table string, filter rowstore.Filter, onEvent func(rowstore.Event)) (rowstore.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		l, err := s.listen()
		if err != nil {
			return nil, err
		}
		s.listener = l
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = subscription{table: table, filter: filter, onEvent: onEvent}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		if len(s.subs) == 0 && s.listener != nil {
			s.listener.close()
			s.listener = nil
		}
	}, nil
}

// Close stops the LISTEN connection and drops every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[int]subscription)
	if s.listener != nil {
		s.listener.close()
		s.listener = nil
	}
	return nil
}

func (s *Store) listen() (*listener, error) {
	if s.dsn == "" {
		return nil, fmt.Errorf("no postgres dsn for change notifications")
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("change listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	}
	pl := pq.NewListener(s.dsn, minReconnect, maxReconnect, report)
	if err := pl.Listen(NotifyChannel); err != nil {
		pl.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	l := &listener{pq: pl, stop: make(chan struct{})}
	go s.dispatchLoop(l)
	return l, nil
}

func (l *listener) close() {
	close(l.stop)
	l.pq.Close()
}

func (s *Store) dispatchLoop(l *listener) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case n, ok := <-l.pq.Notify:
			if !ok {
				return
			}
			// nil after a reconnect; notifications sent meanwhile are lost
			if n == nil {
				s.logger.Info("change listener reconnected")
				continue
			}
			s.deliver(n.Extra)
		case <-ticker.C:
			go func() {
				if err := l.pq.Ping(); err != nil {
					s.logger.Warn("change listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (s *Store) deliver(payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		s.logger.Warn("undecodable change notification", zap.Error(err))
		return
	}
	ev := n.event()

	s.mu.Lock()
	var targets []func(rowstore.Event)
	for _, sub := range s.subs {
		if sub.table == ev.Table && sub.filter.Matches(ev.Payload()) {
			targets = append(targets, sub.onEvent)
		}
	}
	s.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}

func isZeroTime(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || strings.HasPrefix(x, "0001-01-01")
	case time.Time:
		return x.IsZero()
	}
	return false
}
