package supastore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = 25 * time.Second
	writeTimeout      = 10 * time.Second
	joinTimeout       = 10 * time.Second
)

// RealtimeURL derives the realtime websocket endpoint from a project URL.
func RealtimeURL(projectURL, apiKey string) string {
	u := strings.TrimSuffix(projectURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"
}

// message is a Phoenix channel frame.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changePayload struct {
	Data struct {
		Type            string       `json:"type"`
		Table           string       `json:"table"`
		Record          rowstore.Row `json:"record"`
		OldRecord       rowstore.Row `json:"old_record"`
		CommitTimestamp string       `json:"commit_timestamp"`
	} `json:"data"`
}

type channel struct {
	table   string
	filter  rowstore.Filter
	onEvent func(rowstore.Event)
}

// Realtime multiplexes change subscriptions over one websocket. The
// connection is dialed on the first Subscribe and closed when the last
// subscription leaves. Reconnecting after a drop is left to the service;
// subscriptions on a dropped connection simply stop receiving.
type Realtime struct {
	endpoint string
	token    string
	dialer   *websocket.Dialer
	logger   *zap.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	stop     chan struct{}
	channels map[string]channel
	replies  map[string]chan replyPayload
	ref      int
	topic    int
}

// NewRealtime creates a client for endpoint. token is sent with every join.
func NewRealtime(endpoint, token string, logger *zap.Logger) (*Realtime, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Realtime{
		endpoint: endpoint,
		token:    token,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		channels: make(map[string]channel),
		replies:  make(map[string]chan replyPayload),
	}, nil
}

// SetToken changes the token sent with later joins.
func (r *Realtime) SetToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// Subscribe joins a postgres_changes channel for table. The service filters
// on a single column, so the whole filter is checked again locally.
func (r *Realtime) Subscribe(ctx context.Context, table string, filter rowstore.Filter, onEvent func(rowstore.Event)) (rowstore.Unsubscribe, error) {
	cols := filter.Columns()

	r.mu.Lock()
	if err := r.dialLocked(ctx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.topic++
	topic := "realtime:linkup-" + strconv.Itoa(r.topic)
	r.channels[topic] = channel{table: table, filter: filter, onEvent: onEvent}
	token := r.token
	r.mu.Unlock()

	join := joinPayload{AccessToken: token}
	cf := changeFilter{Event: "*", Schema: "public", Table: table}
	if len(cols) > 0 {
		cf.Filter = cols[0] + "=eq." + rowstore.ValueString(filter[cols[0]])
	}
	join.Config.PostgresChanges = []changeFilter{cf}

	reply, err := r.request(ctx, topic, "phx_join", join)
	if err == nil && reply.Status != "ok" {
		err = fmt.Errorf("join %s rejected: %s", table, string(reply.Response))
	}
	if err != nil {
		r.mu.Lock()
		delete(r.channels, topic)
		r.mu.Unlock()
		r.closeIfIdle()
		return nil, err
	}
	r.logger.Debug("realtime channel joined", zap.String("topic", topic), zap.String("table", table))

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.channels, topic)
			r.mu.Unlock()
			if err := r.send(message{Topic: topic, Event: "phx_leave", Payload: json.RawMessage("{}"), Ref: r.nextRef()}); err != nil {
				r.logger.Debug("realtime leave failed", zap.String("topic", topic), zap.Error(err))
			}
			r.closeIfIdle()
		})
	}, nil
}

// Close drops the connection and every channel on it.
func (r *Realtime) Close() error {
	r.mu.Lock()
	r.channels = make(map[string]channel)
	conn, stop := r.detachLocked()
	r.mu.Unlock()
	return shutdown(conn, stop)
}

func (r *Realtime) closeIfIdle() {
	r.mu.Lock()
	if len(r.channels) > 0 {
		r.mu.Unlock()
		return
	}
	conn, stop := r.detachLocked()
	r.mu.Unlock()
	_ = shutdown(conn, stop)
}

func (r *Realtime) detachLocked() (*websocket.Conn, chan struct{}) {
	conn, stop := r.conn, r.stop
	r.conn, r.stop = nil, nil
	return conn, stop
}

func shutdown(conn *websocket.Conn, stop chan struct{}) error {
	if conn == nil {
		return nil
	}
	close(stop)
	return conn.Close()
}

func (r *Realtime) dialLocked(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}
	conn, _, err := r.dialer.DialContext(ctx, r.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	r.conn = conn
	r.stop = make(chan struct{})
	go r.readLoop(conn, r.stop)
	go r.heartbeat(r.stop)
	return nil
}

func (r *Realtime) nextRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ref++
	return strconv.Itoa(r.ref)
}

func (r *Realtime) send(m message) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("realtime connection closed")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}

func (r *Realtime) request(ctx context.Context, topic, event string, payload any) (replyPayload, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return replyPayload{}, err
	}
	ref := r.nextRef()
	wait := make(chan replyPayload, 1)
	r.mu.Lock()
	r.replies[ref] = wait
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.replies, ref)
		r.mu.Unlock()
	}()

	if err := r.send(message{Topic: topic, Event: event, Payload: raw, Ref: ref}); err != nil {
		return replyPayload{}, err
	}

	timer := time.NewTimer(joinTimeout)
	defer timer.Stop()
	select {
	case reply := <-wait:
		return reply, nil
	case <-timer.C:
		return replyPayload{}, fmt.Errorf("%s %s: no reply", event, topic)
	case <-ctx.Done():
		return replyPayload{}, ctx.Err()
	}
}

func (r *Realtime) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.send(message{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage("{}"), Ref: r.nextRef()}); err != nil {
				r.logger.Warn("realtime heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (r *Realtime) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			r.mu.Lock()
			current := r.conn == conn
			if current {
				r.detachLocked()
			}
			r.mu.Unlock()
			if current {
				// dropped by the peer; the next Subscribe dials again
				r.logger.Warn("realtime connection lost", zap.Error(err))
				_ = shutdown(conn, stop)
			}
			return
		}
		r.dispatch(m)
	}
}

func (r *Realtime) dispatch(m message) {
	switch m.Event {
	case "phx_reply":
		var reply replyPayload
		if err := json.Unmarshal(m.Payload, &reply); err != nil {
			return
		}
		r.mu.Lock()
		wait, ok := r.replies[m.Ref]
		r.mu.Unlock()
		if ok {
			select {
			case wait <- reply:
			default:
			}
		}

	case "postgres_changes":
		r.mu.Lock()
		ch, ok := r.channels[m.Topic]
		r.mu.Unlock()
		if !ok {
			return
		}
		var p changePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			r.logger.Warn("undecodable change payload", zap.String("topic", m.Topic), zap.Error(err))
			return
		}
		ev := rowstore.Event{
			Kind:      rowstore.EventKind(p.Data.Type),
			Table:     p.Data.Table,
			Record:    p.Data.Record,
			OldRecord: p.Data.OldRecord,
		}
		if ts, err := time.Parse(time.RFC3339Nano, p.Data.CommitTimestamp); err == nil {
			ev.CommitTime = ts
		}
		// delete payloads may carry only the primary key
		if ev.Kind != rowstore.EventDelete && !ch.filter.Matches(ev.Record) {
			return
		}
		ch.onEvent(ev)

	case "phx_error", "phx_close":
		r.logger.Warn("realtime channel closed by server", zap.String("topic", m.Topic), zap.String("event", m.Event))
	}
}
