package domain

import (
	"encoding/json"
	"slices"
)

// UserSet is an unordered set of user identities.
// It encodes as a sorted JSON array so snapshots are stable.
type UserSet map[UserID]struct{}

func NewUserSet(ids ...UserID) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserSet) Has(id UserID) bool {
	_, ok := s[id]
	return ok
}

// Add reports whether the set changed.
func (s UserSet) Add(id UserID) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove reports whether the set changed.
func (s UserSet) Remove(id UserID) bool {
	if !s.Has(id) {
		return false
	}
	delete(s, id)
	return true
}

func (s UserSet) Len() int { return len(s) }

func (s UserSet) Sorted() []UserID {
	out := make([]UserID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Strings is the storage-friendly form of Sorted.
func (s UserSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, id := range s.Sorted() {
		out = append(out, string(id))
	}
	return out
}

func (s UserSet) Clone() UserSet {
	out := make(UserSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *UserSet) UnmarshalJSON(b []byte) error {
	var ids []UserID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}
