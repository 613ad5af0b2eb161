package domain

import (
	"encoding/json"
	"sort"
)

// IDSet is an unordered identifier set. It marshals as a sorted JSON array so
// snapshots and event payloads stay deterministic.
type IDSet[T ~string] map[T]struct{}

func NewIDSet[T ~string](ids ...T) IDSet[T] {
	s := make(IDSet[T], len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s IDSet[T]) Has(id T) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet[T]) Add(id T) {
	s[id] = struct{}{}
}

func (s IDSet[T]) Remove(id T) {
	delete(s, id)
}

// Values returns the members in sorted order.
func (s IDSet[T]) Values() []T {
	out := make([]T, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s IDSet[T]) Clone() IDSet[T] {
	out := make(IDSet[T], len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s IDSet[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *IDSet[T]) UnmarshalJSON(data []byte) error {
	var ids []T
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
