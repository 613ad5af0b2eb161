package usecase

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/eventstore"
	"github.com/servicecrm/backend/eventstore/snapshot"
)

// Session is the unit of work for one command. Aggregates loaded through it
// are cached, so reactions triggered against the same aggregate observe the
// state produced by earlier steps of the same operation. Commit appends every
// pending event of every tracked aggregate in one atomic batch; until then
// nothing is persisted.
type Session struct {
	store     eventstore.Store
	snapshots snapshot.Store
	logger    *zap.Logger

	customers map[domain.CustomerID]*trackedCustomer
	products  map[domain.ProductID]*trackedProduct
	order     []recorded
}

type trackedCustomer struct {
	agg  *domain.Customer
	base int64
}

type trackedProduct struct {
	agg  *domain.Product
	base int64
}

// recorded is one emitted event in session-global emission order. The
// flattened order is what the projection fold consumes, so cross-aggregate
// causality survives the per-stream grouping of the append.
type recorded struct {
	kind     eventstore.Kind
	streamID string
	event    domain.Event
	encode   func() (string, []byte, error)
}

func NewSession(store eventstore.Store, snapshots snapshot.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
		customers: make(map[domain.CustomerID]*trackedCustomer),
		products:  make(map[domain.ProductID]*trackedProduct),
	}
}

// GetCustomer returns the cached aggregate or replays it from the store.
// An empty stream is a NOT_FOUND.
func (s *Session) GetCustomer(ctx context.Context, id domain.CustomerID) (*domain.Customer, error) {
	if tracked, ok := s.customers[id]; ok {
		return tracked.agg, nil
	}

	agg, err := s.replayCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.trackCustomer(agg)
	return agg, nil
}

// GetProduct returns the cached aggregate or replays it from the store.
func (s *Session) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	if tracked, ok := s.products[id]; ok {
		return tracked.agg, nil
	}

	agg, err := s.replayProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.trackProduct(agg)
	return agg, nil
}

// AddCustomer tracks a freshly created aggregate. Its already-pending events
// (the creation event at minimum) join the session's emission order.
func (s *Session) AddCustomer(agg *domain.Customer) {
	s.trackCustomer(agg)
}

// AddProduct tracks a freshly created aggregate.
func (s *Session) AddProduct(agg *domain.Product) {
	s.trackProduct(agg)
}

func (s *Session) trackCustomer(agg *domain.Customer) {
	id := agg.ID
	pending := agg.Pending()
	s.customers[id] = &trackedCustomer{agg: agg, base: agg.Version - int64(len(pending))}
	for _, event := range pending {
		s.record(eventstore.KindCustomer, id.String(), event)
	}
	agg.Observe(func(event domain.CustomerEvent) error {
		s.record(eventstore.KindCustomer, id.String(), event)
		return nil
	})
}

func (s *Session) trackProduct(agg *domain.Product) {
	id := agg.ID
	pending := agg.Pending()
	s.products[id] = &trackedProduct{agg: agg, base: agg.Version - int64(len(pending))}
	for _, event := range pending {
		s.record(eventstore.KindProduct, id.String(), event)
	}
	agg.Observe(func(event domain.ProductEvent) error {
		s.record(eventstore.KindProduct, id.String(), event)
		return nil
	})
}

func (s *Session) record(kind eventstore.Kind, streamID string, event domain.Event) {
	rec := recorded{kind: kind, streamID: streamID, event: event}
	switch e := event.(type) {
	case domain.CustomerEvent:
		rec.encode = func() (string, []byte, error) { return domain.EncodeCustomerEvent(e) }
	case domain.ProductEvent:
		rec.encode = func() (string, []byte, error) { return domain.EncodeProductEvent(e) }
	}
	s.order = append(s.order, rec)
}

// Dirty reports whether any tracked aggregate holds uncommitted events.
func (s *Session) Dirty() bool { return len(s.order) > 0 }

// Commit groups the emitted events by stream, stamps sequence numbers from
// each stream's loaded base version, and hands the batch to the store. A
// version conflict or fold failure leaves every aggregate's pending events
// intact so the caller can reload and retry.
func (s *Session) Commit(ctx context.Context) error {
	if len(s.order) == 0 {
		return nil
	}

	batch, err := s.buildBatch()
	if err != nil {
		return err
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return err
	}

	for _, tracked := range s.customers {
		tracked.agg.ClearPending()
		tracked.base = tracked.agg.Version
	}
	for _, tracked := range s.products {
		tracked.agg.ClearPending()
		tracked.base = tracked.agg.Version
	}
	s.order = nil
	return nil
}

func (s *Session) buildBatch() (eventstore.Batch, error) {
	type streamKey struct {
		kind eventstore.Kind
		id   string
	}

	seqs := make(map[streamKey]int64)
	appends := make(map[streamKey]*eventstore.StreamAppend)
	var keys []streamKey

	var batch eventstore.Batch
	for _, rec := range s.order {
		key := streamKey{kind: rec.kind, id: rec.streamID}
		stream, ok := appends[key]
		if !ok {
			base := s.baseVersion(rec.kind, rec.streamID)
			stream = &eventstore.StreamAppend{Kind: rec.kind, StreamID: rec.streamID, Expected: base}
			appends[key] = stream
			seqs[key] = base
			keys = append(keys, key)
		}

		name, payload, err := rec.encode()
		if err != nil {
			return eventstore.Batch{}, err
		}
		seqs[key]++
		row := eventstore.Record{
			Kind:       rec.kind,
			StreamID:   rec.streamID,
			Seq:        seqs[key],
			Name:       name,
			Payload:    payload,
			Actor:      string(rec.event.Actor()),
			OccurredAt: rec.event.OccurredAt(),
		}
		stream.Records = append(stream.Records, row)
		batch.Records = append(batch.Records, row)
	}

	for _, key := range keys {
		batch.Streams = append(batch.Streams, *appends[key])
	}
	return batch, nil
}

func (s *Session) baseVersion(kind eventstore.Kind, streamID string) int64 {
	switch kind {
	case eventstore.KindCustomer:
		if tracked, ok := s.customers[domain.CustomerID(streamID)]; ok {
			return tracked.base
		}
	case eventstore.KindProduct:
		if tracked, ok := s.products[domain.ProductID(streamID)]; ok {
			return tracked.base
		}
	}
	return 0
}

func (s *Session) replayCustomer(ctx context.Context, id domain.CustomerID) (*domain.Customer, error) {
	state, fromSeq, ok, err := s.customerSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.store.LoadFrom(ctx, eventstore.KindCustomer, id.String(), fromSeq)
	if err != nil {
		return nil, err
	}
	if !ok && len(records) == 0 {
		return nil, domain.ErrCustomerNotFound
	}

	events := make([]domain.CustomerEvent, 0, len(records))
	for _, rec := range records {
		event, err := domain.DecodeCustomerEvent(rec.Name, rec.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if ok {
		return domain.RehydrateCustomer(state, events)
	}
	created, rest, err := splitCreated[*domain.CustomerCreated](events)
	if err != nil {
		return nil, err
	}
	return domain.ReconstructCustomer(created, rest)
}

func (s *Session) replayProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	state, fromSeq, ok, err := s.productSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.store.LoadFrom(ctx, eventstore.KindProduct, id.String(), fromSeq)
	if err != nil {
		return nil, err
	}
	if !ok && len(records) == 0 {
		return nil, domain.ErrProductNotFound
	}

	events := make([]domain.ProductEvent, 0, len(records))
	for _, rec := range records {
		event, err := domain.DecodeProductEvent(rec.Name, rec.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if ok {
		return domain.RehydrateProduct(state, events)
	}
	created, rest, err := splitCreated[*domain.ProductCreated](events)
	if err != nil {
		return nil, err
	}
	return domain.ReconstructProduct(created, rest)
}

func (s *Session) customerSnapshot(ctx context.Context, id domain.CustomerID) (domain.CustomerState, int64, bool, error) {
	var state domain.CustomerState
	if s.snapshots == nil {
		return state, 0, false, nil
	}
	snap, err := s.snapshots.Load(ctx, eventstore.KindCustomer, id.String())
	if err != nil || snap == nil {
		return state, 0, false, err
	}
	if err := json.Unmarshal(snap.State, &state); err != nil {
		s.logger.Warn("customer snapshot unreadable, replaying full stream",
			zap.String("customer_id", id.String()), zap.Error(err))
		return domain.CustomerState{}, 0, false, nil
	}
	return state, snap.Version, true, nil
}

func (s *Session) productSnapshot(ctx context.Context, id domain.ProductID) (domain.ProductState, int64, bool, error) {
	var state domain.ProductState
	if s.snapshots == nil {
		return state, 0, false, nil
	}
	snap, err := s.snapshots.Load(ctx, eventstore.KindProduct, id.String())
	if err != nil || snap == nil {
		return state, 0, false, err
	}
	if err := json.Unmarshal(snap.State, &state); err != nil {
		s.logger.Warn("product snapshot unreadable, replaying full stream",
			zap.String("product_id", id.String()), zap.Error(err))
		return domain.ProductState{}, 0, false, nil
	}
	return state, snap.Version, true, nil
}

func splitCreated[C domain.Event, E domain.Event](events []E) (C, []E, error) {
	var created C
	if len(events) == 0 {
		return created, nil, domain.WrapError(domain.ErrCodeInternal, "empty event stream", domain.ErrUnknownEvent)
	}
	first, ok := any(events[0]).(C)
	if !ok {
		return created, nil, domain.WrapError(domain.ErrCodeInternal, "stream does not start with a creation event", domain.ErrUnknownEvent)
	}
	return first, events[1:], nil
}
