package rowstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatches(t *testing.T) {
	row := Row{"id": "n1", "user_id": "u1", "is_read": false, "likes": float64(3)}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil filter", nil, true},
		{"match", Eq("user_id", "u1"), true},
		{"mismatch", Eq("user_id", "u2"), false},
		{"missing column", Eq("post_id", "p1"), false},
		{"bool", Eq("is_read", false), true},
		{"number across types", Eq("likes", 3), true},
		{"conjunction", Eq("user_id", "u1").And("is_read", true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(row))
		})
	}
}

func TestFilterString(t *testing.T) {
	f := Eq("user_id", "u1").And("is_read", false)
	assert.Equal(t, "is_read=eq.false&user_id=eq.u1", f.String())
}

func TestEventPayload(t *testing.T) {
	ins := Event{Kind: EventInsert, Record: Row{"id": "a"}}
	del := Event{Kind: EventDelete, OldRecord: Row{"id": "b"}, CommitTime: time.Now()}
	assert.Equal(t, "a", ins.Payload().ID())
	assert.Equal(t, "b", del.Payload().ID())
}
