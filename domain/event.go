package domain

import "time"

// Event is the contract every persisted domain fact satisfies.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	Actor() AppUserID
}

// EventMeta carries the audit fields shared by all events.
type EventMeta struct {
	At time.Time `json:"at"`
	By AppUserID `json:"by"`
}

func NewEventMeta(by AppUserID) EventMeta {
	return EventMeta{At: time.Now().UTC(), By: by}
}

func (m EventMeta) OccurredAt() time.Time { return m.At }
func (m EventMeta) Actor() AppUserID      { return m.By }
