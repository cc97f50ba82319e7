package coordinator

import "github.com/anonto42/linkup/backend/internal/models"

// Outcome discriminates a mutation Result.
type Outcome int

const (
	Confirmed Outcome = iota + 1
	RemoteWriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case RemoteWriteFailed:
		return "remote_write_failed"
	}
	return "unknown"
}

// Result is what a mutation resolves to. Expected remote failures are
// reported here rather than returned as an error.
type Result struct {
	Outcome Outcome
	Value   models.Entity // server value on success; nil for a confirmed delete
	Err     error         // *syncerr.Error when Outcome is RemoteWriteFailed
}

// OK reports whether the remote write succeeded.
func (r Result) OK() bool { return r.Outcome == Confirmed }
