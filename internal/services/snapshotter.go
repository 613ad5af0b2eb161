package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/eventstore/snapshot"
)

// SnapshotterConfig controls when a stream earns a fresh snapshot.
type SnapshotterConfig struct {
	// Threshold is how many events a stream may grow past its snapshot
	// before the next run refreshes it.
	Threshold int64
	Schedule  string
}

// Snapshotter walks the stream heads on a cron schedule and refreshes the
// snapshot of every stream that has grown past the threshold. Snapshots are
// an optimization; any failure is logged and retried on the next run.
type Snapshotter struct {
	store     eventstore.Store
	snapshots snapshot.Store
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       SnapshotterConfig
}

func NewSnapshotter(store eventstore.Store, snapshots snapshot.Store, logger *zap.Logger, cfg SnapshotterConfig) *Snapshotter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 50
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Snapshotter{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(),
	}

	_, _ = s.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Run(ctx); err != nil {
			s.logger.Error("snapshot run failed", zap.Error(err))
		}
	})

	return s
}

func (s *Snapshotter) Start() {
	s.cron.Start()
}

func (s *Snapshotter) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run snapshots every stream whose head is at least Threshold events past its
// stored snapshot. One bad stream does not stop the sweep.
func (s *Snapshotter) Run(ctx context.Context) error {
	heads, err := s.store.Heads(ctx)
	if err != nil {
		return err
	}

	var refreshed int
	for _, head := range heads {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := s.snapshots.Load(ctx, head.Kind, head.StreamID)
		if err != nil {
			s.logger.Warn("snapshot load failed",
				zap.String("kind", string(head.Kind)), zap.String("stream_id", head.StreamID), zap.Error(err))
			continue
		}
		var base int64
		if snap != nil {
			base = snap.Version
		}
		if head.Seq-base < s.cfg.Threshold {
			continue
		}

		if err := s.refresh(ctx, head.Kind, head.StreamID); err != nil {
			s.logger.Warn("snapshot refresh failed",
				zap.String("kind", string(head.Kind)), zap.String("stream_id", head.StreamID), zap.Error(err))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.logger.Info("snapshots refreshed", zap.Int("count", refreshed))
	}
	return nil
}

func (s *Snapshotter) refresh(ctx context.Context, kind eventstore.Kind, id string) error {
	records, err := s.store.Load(ctx, kind, id)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	var version int64
	var state []byte
	switch kind {
	case eventstore.KindCustomer:
		version, state, err = replayCustomer(records)
	case eventstore.KindProduct:
		version, state, err = replayProduct(records)
	default:
		return domain.NewError(domain.ErrCodeInternal, "unknown stream kind "+string(kind))
	}
	if err != nil {
		return err
	}

	return s.snapshots.Save(ctx, snapshot.Snapshot{
		Kind:     kind,
		StreamID: id,
		Version:  version,
		State:    state,
		TakenAt:  time.Now().UTC(),
	})
}

func replayCustomer(records []eventstore.Record) (int64, []byte, error) {
	var state domain.CustomerState
	for _, rec := range records {
		event, err := domain.DecodeCustomerEvent(rec.Name, rec.Payload)
		if err != nil {
			return 0, nil, err
		}
		if err := state.Apply(event); err != nil {
			return 0, nil, err
		}
	}
	payload, err := json.Marshal(state)
	return state.Version, payload, err
}

func replayProduct(records []eventstore.Record) (int64, []byte, error) {
	var state domain.ProductState
	for _, rec := range records {
		event, err := domain.DecodeProductEvent(rec.Name, rec.Payload)
		if err != nil {
			return 0, nil, err
		}
		if err := state.Apply(event); err != nil {
			return 0, nil, err
		}
	}
	payload, err := json.Marshal(state)
	return state.Version, payload, err
}
