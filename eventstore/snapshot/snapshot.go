// Package snapshot caches aggregate state at a known version so stream loads
// replay only the tail. Snapshots are an optimization: losing one only costs
// a longer replay.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/servicecrm/backend/eventstore"
)

type Snapshot struct {
	Kind     eventstore.Kind `json:"kind"`
	StreamID string          `json:"stream_id"`
	Version  int64           `json:"version"`
	State    json.RawMessage `json:"state"`
	TakenAt  time.Time       `json:"taken_at"`
}

// Store persists snapshots keyed by (kind, stream id).
type Store interface {
	// Load returns (nil, nil) when no snapshot exists.
	Load(ctx context.Context, kind eventstore.Kind, id string) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
