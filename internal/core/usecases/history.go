package usecases

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/ports"
)

// HistoryKey is the single storage key the serialized query history lives
// under.
const HistoryKey = "geopin:history"

// HistoryService maintains the bounded, deduplicated, most-recent-first
// record of past location searches. Every mutation persists the whole list
// and only commits it in memory once the write succeeded.
type HistoryService struct {
	store     ports.KeyValueStore
	publisher ports.EventPublisher

	mu        sync.Mutex
	entries   []domain.QueryHistoryEntry
	watchers  map[int]chan []domain.QueryHistoryEntry
	nextWatch int
}

// NewHistoryService creates an empty history. publisher may be nil. Call
// Load to restore the persisted entries.
func NewHistoryService(store ports.KeyValueStore, publisher ports.EventPublisher) *HistoryService {
	return &HistoryService{
		store:     store,
		publisher: publisher,
		watchers:  make(map[int]chan []domain.QueryHistoryEntry),
	}
}

// Load restores the last persisted history. A missing blob is a clean empty
// start; a corrupt or unreadable one also leaves the service empty and
// usable, with the returned error saying why, so the caller can log it.
func (s *HistoryService) Load(ctx context.Context) error {
	data, err := s.store.Get(ctx, HistoryKey)
	if err != nil {
		return fmt.Errorf("read history blob: %w", err)
	}
	if data == nil {
		return nil
	}

	var entries []domain.QueryHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode history blob: %w", err)
	}
	if len(entries) > domain.HistoryCapacity {
		entries = entries[:domain.HistoryCapacity]
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Record inserts a search at the front. A search for the same query within
// the dedup epsilon of an existing entry replaces it instead of duplicating
// it; inserting past capacity evicts the oldest entry.
func (s *HistoryService) Record(ctx context.Context, query string, lat, lon float64) (domain.QueryHistoryEntry, error) {
	id, err := newEntryID()
	if err != nil {
		return domain.QueryHistoryEntry{}, fmt.Errorf("generate id: %w", err)
	}
	entry := domain.QueryHistoryEntry{
		ID:         id,
		Query:      query,
		Lat:        lat,
		Lon:        lon,
		RecordedAt: time.Now(),
	}

	s.mu.Lock()
	next := make([]domain.QueryHistoryEntry, 0, len(s.entries)+1)
	next = append(next, entry)
	for _, e := range s.entries {
		if e.SameTarget(query, lat, lon) {
			continue
		}
		next = append(next, e)
	}
	if len(next) > domain.HistoryCapacity {
		next = next[:domain.HistoryCapacity]
	}
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return domain.QueryHistoryEntry{}, err
	}
	s.mu.Unlock()

	s.publish(ctx, next)
	return entry, nil
}

// Remove deletes a single entry by identity; an absent id is a no-op.
func (s *HistoryService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	next := make([]domain.QueryHistoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	if len(next) == len(s.entries) {
		s.mu.Unlock()
		return nil
	}
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(ctx, next)
	return nil
}

// Clear empties the history and removes the persisted blob.
func (s *HistoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.store.Delete(ctx, HistoryKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete history blob: %w", err)
	}
	s.entries = nil
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(ctx, nil)
	return nil
}

// Entries returns the history, most recent first.
func (s *HistoryService) Entries() []domain.QueryHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QueryHistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Watch returns a channel that receives the current entries immediately and
// the full list after every mutation until ctx ends. Slow consumers lose the
// oldest buffered update, never the newest.
func (s *HistoryService) Watch(ctx context.Context) <-chan []domain.QueryHistoryEntry {
	ch := make(chan []domain.QueryHistoryEntry, 8)

	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	ch <- s.entries
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if c, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(c)
		}
		s.mu.Unlock()
	}()
	return ch
}

// commitLocked persists next and, on success, makes it the live list.
func (s *HistoryService) commitLocked(ctx context.Context, next []domain.QueryHistoryEntry) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.store.Set(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	s.entries = next
	s.notifyLocked()
	return nil
}

func (s *HistoryService) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- s.entries:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.entries:
			default:
			}
		}
	}
}

func (s *HistoryService) publish(ctx context.Context, entries []domain.QueryHistoryEntry) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.PublishHistory(ctx, entries)
}

func newEntryID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
