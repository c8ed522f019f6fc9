package transcript

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
)

var ErrConflictingBounds = errors.New("before and after bounds are mutually exclusive")

// Persister serialises the full record set to durable storage.
type Persister interface {
	Save(ctx context.Context, records []MessageRecord) error
	Load(ctx context.Context) ([]MessageRecord, error)
}

// Store is the ordered set of every message observed in the channel. Records
// are never removed while the process runs; deletions become tombstones.
type Store struct {
	mu        sync.RWMutex
	records   map[Snowflake]*MessageRecord
	order     []Snowflake
	persister Persister
}

// NewStore creates an empty store. persister may be nil for memory-only mode.
func NewStore(persister Persister) *Store {
	return &Store{
		records:   make(map[Snowflake]*MessageRecord),
		persister: persister,
	}
}

// Upsert inserts a new record or merges mutable fields into the known one.
// It reports whether the record was newly inserted.
func (s *Store) Upsert(rec MessageRecord) bool {
	if rec.ID == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(rec)
}

// UpsertAll applies a batch under a single lock and returns the number of inserts.
func (s *Store) UpsertAll(recs []MessageRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range recs {
		if rec.ID == 0 {
			continue
		}
		if s.upsertLocked(rec) {
			inserted++
		}
	}
	return inserted
}

func (s *Store) upsertLocked(rec MessageRecord) bool {
	existing, ok := s.records[rec.ID]
	if !ok {
		c := rec.Clone()
		s.records[rec.ID] = &c
		s.insertOrderLocked(rec.ID)
		return true
	}

	in := rec.Clone()
	existing.Body = in.Body
	existing.Attachments = in.Attachments
	existing.Reactions = in.Reactions
	if in.EditedAt != nil {
		existing.EditedAt = in.EditedAt
	}
	if in.ParentID != nil {
		existing.ParentID = in.ParentID
	}
	if existing.CreatedAt.IsZero() {
		existing.CreatedAt = in.CreatedAt
	}
	if in.ChannelID != "" {
		existing.ChannelID = in.ChannelID
	}
	if in.AuthorID != "" {
		existing.AuthorID = in.AuthorID
		existing.AuthorDisplayName = in.AuthorDisplayName
		existing.AuthorAvatarRef = in.AuthorAvatarRef
	}
	if in.AuthorRoleName != "" || in.AuthorRoleColor != "" {
		existing.AuthorRoleName = in.AuthorRoleName
		existing.AuthorRoleColor = in.AuthorRoleColor
	}
	if in.Tombstoned {
		existing.Tombstoned = true
	}
	return false
}

func (s *Store) insertOrderLocked(id Snowflake) {
	i := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= id })
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = id
}

// Tombstone flags a record as deleted. An unknown id is materialised from
// snapshot when one is given; otherwise the event is dropped. It reports
// whether the store changed.
func (s *Store) Tombstone(id Snowflake, snapshot *MessageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok {
		if existing.Tombstoned {
			return false
		}
		existing.Tombstoned = true
		return true
	}
	if snapshot == nil {
		return false
	}
	c := snapshot.Clone()
	c.ID = id
	c.Tombstoned = true
	s.records[id] = &c
	s.insertOrderLocked(id)
	return true
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id Snowflake) (MessageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return MessageRecord{}, false
	}
	return rec.Clone(), true
}

// Update applies fn to the stored record in place.
func (s *Store) Update(id Snowflake, fn func(*MessageRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	fn(rec)
	rec.ID = id
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Extremes returns the smallest and largest known ids.
func (s *Store) Extremes() (min, max Snowflake, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return 0, 0, false
	}
	return s.order[0], s.order[len(s.order)-1], true
}

// HasOlderThan reports whether any record precedes id.
func (s *Store) HasOlderThan(id Snowflake) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order) > 0 && s.order[0] < id
}

// Range returns up to limit records in ascending id order. With before set
// it returns the records immediately below it, with after set the records
// immediately above it, and with neither the newest records. A bound that is
// not in the store is ignored.
func (s *Store) Range(before, after *Snowflake, limit int) ([]MessageRecord, error) {
	if before != nil && after != nil {
		return nil, ErrConflictingBounds
	}
	if limit <= 0 {
		return []MessageRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := 0, len(s.order)
	fromTop := true
	switch {
	case before != nil && s.records[*before] != nil:
		hi = sort.Search(len(s.order), func(i int) bool { return s.order[i] >= *before })
	case after != nil && s.records[*after] != nil:
		lo = sort.Search(len(s.order), func(i int) bool { return s.order[i] > *after })
		fromTop = false
	}

	if hi-lo > limit {
		if fromTop {
			lo = hi - limit
		} else {
			hi = lo + limit
		}
	}

	out := make([]MessageRecord, 0, hi-lo)
	for _, id := range s.order[lo:hi] {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// All returns every record in ascending order.
func (s *Store) All() []MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MessageRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// FilterByContent lazily yields records whose body contains substr,
// case-insensitively, in ascending order. Tombstoned records are skipped
// unless includeTombstoned is set.
func (s *Store) FilterByContent(substr string, includeTombstoned bool) iter.Seq[MessageRecord] {
	needle := strings.ToLower(substr)
	return func(yield func(MessageRecord) bool) {
		s.mu.RLock()
		ids := append([]Snowflake(nil), s.order...)
		s.mu.RUnlock()

		for _, id := range ids {
			rec, ok := s.Get(id)
			if !ok {
				continue
			}
			if rec.Tombstoned && !includeTombstoned {
				continue
			}
			if !strings.Contains(strings.ToLower(rec.Body), needle) {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Save writes the full record set through the configured persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.All()); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Load merges persisted records into the store and returns how many were read.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.persister == nil {
		return 0, nil
	}
	recs, err := s.persister.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load transcript: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if rec.ID == 0 {
			continue
		}
		s.upsertLocked(rec)
	}
	return len(recs), nil
}
