package callstate

import (
	"context"
	"encoding/json"
	"time"
)

// StaleAfter is how long a connected call's snapshot stays loadable. A tab or
// process that died mid-call must not resurrect an hour-old ghost call.
const StaleAfter = time.Hour

// Store persists the two softphone slots: the current call snapshot and the
// pending call request. Implementations never surface storage errors to the
// session manager; a failed write is logged and dropped, a failed or
// malformed read behaves as "nothing stored".
//
// The session manager is the sole writer. Values are JSON with StartTime as
// RFC 3339.
type Store interface {
	// SaveCurrentCall writes the current-call slot; nil clears it.
	SaveCurrentCall(ctx context.Context, userID string, call *Call)

	// LoadCurrentCall returns the stored snapshot, or nil when the slot is
	// empty, unparseable (the slot is cleared), or stale per StaleAfter.
	LoadCurrentCall(ctx context.Context, userID string) *Call

	// SavePendingRequest writes the pending-call slot; nil clears it.
	SavePendingRequest(ctx context.Context, userID string, req *PendingRequest)

	// LoadPendingRequest returns the queued request, or nil when absent or
	// unparseable (the slot is cleared). Pending requests do not expire.
	LoadPendingRequest(ctx context.Context, userID string) *PendingRequest

	// ClearPendingRequest removes the pending-call slot.
	ClearPendingRequest(ctx context.Context, userID string)
}

// decodeCall unmarshals a stored snapshot and applies the staleness rule.
// Shared by every Store implementation so expiry behaves identically.
// The second return is false when the slot should be cleared.
func decodeCall(data []byte, now time.Time) (*Call, bool) {
	var c Call
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false
	}
	if c.StartTime != nil && now.Sub(*c.StartTime) >= StaleAfter {
		return nil, false
	}
	return &c, true
}

func decodePending(data []byte) (*PendingRequest, bool) {
	var r PendingRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}
	return &r, true
}
