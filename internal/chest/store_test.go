package chest

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/crowtreasure/internal/storage"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

type memSlots struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	writes int
}

func newMemSlots() *memSlots { return &memSlots{data: map[string]string{}} }

func (m *memSlots) GetSlot(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memSlots) PutSlot(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.writes++
	return nil
}

func (m *memSlots) UpdateSlot(key string, fn func(string, bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	cur, ok := m.data[key]
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}
	m.data[key] = next
	m.writes++
	return nil
}

func sample(id string, ty treasure.Type, minute int) treasure.Treasure {
	return treasure.Treasure{
		ID:             id,
		Content:        "thought " + id,
		Emotion:        "平静",
		Name:           "静默之钥",
		Type:           ty,
		Description:    "desc " + id,
		CrowCommentary: "comment " + id,
		Color:          "#112233",
		CreatedAt:      time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC),
	}
}

func TestRoundTrip_NewestFirst(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := Load(db)
	t1, t2, t3 := sample("1", treasure.Coin, 1), sample("2", treasure.Gem, 2), sample("3", treasure.Key, 3)
	require.NoError(t, s.Insert(t1))
	require.NoError(t, s.Insert(t2))
	require.NoError(t, s.Insert(t3))

	reloaded := Load(db)
	assert.Equal(t, []treasure.Treasure{t3, t2, t1}, reloaded.All())
}

func TestLoad_AbsentSlot(t *testing.T) {
	s := Load(newMemSlots())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.All())
}

func TestLoad_CorruptSlot(t *testing.T) {
	slots := newMemSlots()
	slots.data[SlotKey] = "{not json"
	assert.Equal(t, 0, Load(slots).Len())

	slots.data[SlotKey] = `{"id":"x"}`
	assert.Equal(t, 0, Load(slots).Len())
}

func TestLoad_ReadError(t *testing.T) {
	slots := newMemSlots()
	slots.getErr = errors.New("disk gone")
	assert.Equal(t, 0, Load(slots).Len())
}

func TestLoad_CoercesStoredFields(t *testing.T) {
	slots := newMemSlots()
	slots.data[SlotKey] = `[
		{"id":"a","content":"c","name":"n","type":"DRAGON","description":"d","crowCommentary":"k","color":"","createdAt":1767225600000},
		{"id":"","content":"skipped"},
		{"id":"b","type":"SCROLL","color":"#fff","createdAt":"2026-01-01T00:00:00Z"}
	]`

	items := Load(slots).All()
	require.Len(t, items, 2)
	assert.Equal(t, treasure.Artifact, items[0].Type)
	assert.Equal(t, treasure.DefaultColor, items[0].Color)
	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), items[0].CreatedAt)
	assert.Equal(t, treasure.Scroll, items[1].Type)
	assert.True(t, items[1].CreatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRemove_Nonexistent(t *testing.T) {
	slots := newMemSlots()
	s := Load(slots)
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))
	require.NoError(t, s.Insert(sample("2", treasure.Gem, 2)))
	before := s.All()

	require.NoError(t, s.Remove("missing"))
	assert.Equal(t, before, s.All())
	assert.Equal(t, 3, slots.writes, "remove persists even when nothing matched")
}

func TestRemove_WritesThrough(t *testing.T) {
	slots := newMemSlots()
	s := Load(slots)
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))
	require.NoError(t, s.Insert(sample("2", treasure.Gem, 2)))

	require.NoError(t, s.Remove("1"))

	got := Load(slots).All()
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestPersist_EmptyCollection(t *testing.T) {
	slots := newMemSlots()
	require.NoError(t, Load(slots).Persist())
	assert.Equal(t, "[]", slots.data[SlotKey])
}

func TestGet(t *testing.T) {
	s := Load(newMemSlots())
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))

	got, ok := s.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "1", got.ID)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestAll_ReturnsCopy(t *testing.T) {
	s := Load(newMemSlots())
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))

	items := s.All()
	items[0].Name = "changed"

	got, _ := s.Get("1")
	assert.Equal(t, "静默之钥", got.Name)
}

func TestPick(t *testing.T) {
	s := Load(newMemSlots())
	_, ok := s.Pick(nil)
	assert.False(t, ok)

	for i := range 4 {
		require.NoError(t, s.Insert(sample(string(rune('a'+i)), treasure.Coin, i)))
	}

	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for range 200 {
		got, ok := s.Pick(rng)
		require.True(t, ok)
		seen[got.ID] = true
	}
	assert.Len(t, seen, 4)
}

func TestInsert_KeepsOtherWritersTreasures(t *testing.T) {
	dir := t.TempDir()
	cliDB, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { cliDB.Close() })
	serverDB, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })

	cli := Load(cliDB)
	server := Load(serverDB)

	require.NoError(t, cli.Insert(sample("cli", treasure.Coin, 1)))
	require.NoError(t, server.Insert(sample("server", treasure.Gem, 2)))

	ids := func(items []treasure.Treasure) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}
	assert.Equal(t, []string{"server", "cli"}, ids(Load(cliDB).All()))
	assert.Equal(t, []string{"server", "cli"}, ids(server.All()), "the writer sees the merged collection")

	require.NoError(t, cli.Remove("server"))
	assert.Equal(t, []string{"cli"}, ids(Load(serverDB).All()))
}

func TestInsert_SameIDReplaces(t *testing.T) {
	slots := newMemSlots()
	s := Load(slots)
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))

	again := sample("1", treasure.Gem, 2)
	require.NoError(t, s.Insert(again))

	require.Equal(t, 1, s.Len())
	got, _ := s.Get("1")
	assert.Equal(t, treasure.Gem, got.Type)
}

func TestInsert_WriteErrorLeavesCollection(t *testing.T) {
	slots := newMemSlots()
	s := Load(slots)
	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))

	slots.getErr = errors.New("disk gone")
	assert.Error(t, s.Insert(sample("2", treasure.Gem, 2)))
	assert.Equal(t, 1, s.Len())
}

func TestInsert_OverwritesCorruptSlot(t *testing.T) {
	slots := newMemSlots()
	slots.data[SlotKey] = "{not json"
	s := Load(slots)

	require.NoError(t, s.Insert(sample("1", treasure.Coin, 1)))
	assert.Equal(t, 1, Load(slots).Len())
}

func TestRefresh(t *testing.T) {
	slots := newMemSlots()
	mine := Load(slots)
	other := Load(slots)

	require.NoError(t, other.Insert(sample("1", treasure.Coin, 1)))
	assert.Equal(t, 0, mine.Len())

	require.NoError(t, mine.Refresh())
	assert.Equal(t, 1, mine.Len())

	slots.getErr = errors.New("disk gone")
	assert.Error(t, mine.Refresh())
	assert.Equal(t, 1, mine.Len(), "a failed refresh keeps the current collection")
}
