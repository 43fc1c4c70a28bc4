// Package chest holds the treasure collection in memory and keeps it in sync
// with a single durable storage slot.
package chest

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/kalambet/crowtreasure/internal/storage"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

// SlotKey is the storage slot holding the serialized collection.
const SlotKey = "crows_treasures_data"

// Slots is the durable storage the collection is written through to.
// UpdateSlot must run fn and the write as one unit with respect to other
// writers of the same slot.
type Slots interface {
	GetSlot(key string) (string, error)
	PutSlot(key, value string) error
	UpdateSlot(key string, fn func(current string, found bool) (string, error)) error
}

// Store is the ordered treasure collection, newest first.
type Store struct {
	mu    sync.RWMutex
	slots Slots
	items []treasure.Treasure
}

// Load reads the collection from slots. An absent or unreadable slot yields
// an empty collection; the problem is logged and never returned.
func Load(slots Slots) *Store {
	s := &Store{slots: slots}
	if err := s.Refresh(); err != nil {
		log.Warn().Err(err).Str("slot", SlotKey).Msg("reading treasure slot, starting empty")
	}
	return s
}

// Refresh replaces the in-memory collection with what the slot holds now,
// picking up changes made by other processes. On error the collection is
// left as it was.
func (s *Store) Refresh() error {
	raw, err := s.slots.GetSlot(SlotKey)
	var items []treasure.Treasure
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return err
	default:
		if items, err = decode(raw); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Insert prepends t to the stored collection. The slot is re-read first, so
// treasures written by other processes since Load are kept.
func (s *Store) Insert(t treasure.Treasure) error {
	return s.update(func(items []treasure.Treasure) []treasure.Treasure {
		out := make([]treasure.Treasure, 0, len(items)+1)
		out = append(out, t)
		for _, it := range items {
			if it.ID != t.ID {
				out = append(out, it)
			}
		}
		return out
	})
}

// Remove drops the treasure with the given id from the stored collection.
// Removing an unknown id leaves the collection unchanged but still writes.
func (s *Store) Remove(id string) error {
	return s.update(func(items []treasure.Treasure) []treasure.Treasure {
		kept := items[:0:0]
		for _, t := range items {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		return kept
	})
}

// update applies op to the current slot contents and writes the result in a
// single slot transaction. The in-memory collection becomes the written one.
func (s *Store) update(op func([]treasure.Treasure) []treasure.Treasure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []treasure.Treasure
	err := s.slots.UpdateSlot(SlotKey, func(current string, found bool) (string, error) {
		var items []treasure.Treasure
		if found {
			decoded, err := decode(current)
			if err != nil {
				log.Warn().Err(err).Str("slot", SlotKey).Msg("overwriting unreadable treasure slot")
			}
			items = decoded
		}
		next = op(items)
		return encode(next)
	})
	if err != nil {
		return fmt.Errorf("writing treasure slot: %w", err)
	}
	s.items = next
	return nil
}

// Persist writes the full collection to the slot, replacing what was there.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	raw, err := encode(s.items)
	if err != nil {
		return err
	}
	if err := s.slots.PutSlot(SlotKey, raw); err != nil {
		return fmt.Errorf("writing treasure slot: %w", err)
	}
	return nil
}

func encode(items []treasure.Treasure) (string, error) {
	if items == nil {
		items = []treasure.Treasure{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encoding treasures: %w", err)
	}
	return string(b), nil
}

// All returns a copy of the collection, newest first.
func (s *Store) All() []treasure.Treasure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasure.Treasure, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the treasure with the given id.
func (s *Store) Get(id string) (treasure.Treasure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return treasure.Treasure{}, false
}

// Pick returns a treasure chosen uniformly at random. ok is false when the
// collection is empty.
func (s *Store) Pick(rng *rand.Rand) (treasure.Treasure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return treasure.Treasure{}, false
	}
	var i int
	if rng == nil {
		i = rand.IntN(len(s.items))
	} else {
		i = rng.IntN(len(s.items))
	}
	return s.items[i], true
}

// WriteJSON writes the collection as an indented JSON array.
func (s *Store) WriteJSON(w io.Writer) error {
	items := s.All()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// stored mirrors treasure.Treasure with loosely typed fields so that older
// payloads (millisecond timestamps, unknown type tags) still load.
type stored struct {
	ID             string          `json:"id"`
	Content        string          `json:"content"`
	Emotion        string          `json:"emotion"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	CrowCommentary string          `json:"crowCommentary"`
	Color          string          `json:"color"`
	CreatedAt      json.RawMessage `json:"createdAt"`
}

func decode(raw string) ([]treasure.Treasure, error) {
	var entries []stored
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decoding treasure slot: %w", err)
	}

	out := make([]treasure.Treasure, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		tr := treasure.ValidateType(e.Type)
		if tr.Coerced {
			log.Debug().Str("id", e.ID).Str("raw_type", tr.Raw).Msg("coerced stored treasure type")
		}
		color := e.Color
		if color == "" {
			color = treasure.DefaultColor
		}
		out = append(out, treasure.Treasure{
			ID:             e.ID,
			Content:        e.Content,
			Emotion:        e.Emotion,
			Name:           e.Name,
			Type:           tr.Type,
			Description:    e.Description,
			CrowCommentary: e.CrowCommentary,
			Color:          color,
			CreatedAt:      parseCreatedAt(e.CreatedAt),
		})
	}
	return out, nil
}

// parseCreatedAt accepts RFC 3339 strings and Unix millisecond numbers.
func parseCreatedAt(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}
	}
	if strings.HasPrefix(s, `"`) {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err == nil {
			return t
		}
		return time.Time{}
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
