package api

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/crowtreasure/internal/chest"
	"github.com/kalambet/crowtreasure/internal/storage"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

// --- mocks ---

type mockGenerator struct {
	mu    sync.Mutex
	calls int
}

func (m *mockGenerator) Generate(_ context.Context, thought, emotion string) treasure.Draft {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return treasure.Draft{
		Content:        thought,
		Emotion:        emotion,
		Name:           "潮汐之钥",
		Type:           treasure.Gem,
		Description:    "d",
		CrowCommentary: "c",
		Color:          "#3b82f6",
	}
}

func (m *mockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newMCPDepsOn(db)
}

func newMCPDepsOn(db *storage.Store) MCPDeps {
	var mu sync.Mutex
	n := 0
	return MCPDeps{
		Store:     chest.Load(db),
		Generator: &mockGenerator{},
		Now:       func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("t-%d", n)
		},
		Rand: rand.New(rand.NewPCG(1, 1)),
	}.withDefaults()
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func record(t *testing.T, deps MCPDeps, thought string) treasure.Treasure {
	t.Helper()
	result, err := mcpRecordThought(deps)(context.Background(), makeCallToolRequest("record_thought", map[string]interface{}{
		"thought": thought,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(t, result))

	var got treasure.Treasure
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &got))
	return got
}

func listAll(t *testing.T, deps MCPDeps) []treasure.Treasure {
	t.Helper()
	result, err := mcpListTreasures(deps)(context.Background(), makeCallToolRequest("list_treasures", nil))
	require.NoError(t, err)
	var items []treasure.Treasure
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &items))
	return items
}

// --- tests ---

func TestMCPTool_RecordThought(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpRecordThought(deps)(context.Background(), makeCallToolRequest("record_thought", map[string]interface{}{
		"thought": "I feel the tide pulling",
		"emotion": "焦虑",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(t, result))

	var got treasure.Treasure
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &got))
	assert.Equal(t, treasure.Gem, got.Type)
	assert.Equal(t, "I feel the tide pulling", got.Content)
	assert.Equal(t, "焦虑", got.Emotion)
	assert.Equal(t, "t-1", got.ID)

	all := deps.Store.All()
	require.Len(t, all, 1)
	assert.Equal(t, got.ID, all[0].ID)
}

func TestMCPTool_RecordThought_Validation(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpRecordThought(deps)

	cases := []map[string]interface{}{
		{},
		{"thought": "   "},
		{"thought": "ok", "emotion": "bored"},
	}
	for _, args := range cases {
		result, err := handler(context.Background(), makeCallToolRequest("record_thought", args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "args %v: expected tool error", args)
	}
	assert.Zero(t, deps.Store.Len())
	assert.Zero(t, deps.Generator.(*mockGenerator).Calls(), "generator must not run on invalid input")
}

func TestMCPTool_DrawTreasure(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpDrawTreasure(deps)

	result, err := handler(context.Background(), makeCallToolRequest("draw_treasure", nil))
	require.NoError(t, err)
	require.True(t, result.IsError, "expected error on empty chest")

	want := record(t, deps, "one")
	result, err = handler(context.Background(), makeCallToolRequest("draw_treasure", nil))
	require.NoError(t, err)
	assert.Contains(t, toolText(t, result), want.ID)
}

func TestMCPTool_ListTreasures(t *testing.T) {
	deps := newTestMCPDeps(t)
	for i := range 3 {
		record(t, deps, fmt.Sprintf("thought %d", i))
	}

	result, err := mcpListTreasures(deps)(context.Background(), makeCallToolRequest("list_treasures", map[string]interface{}{
		"limit": 2,
	}))
	require.NoError(t, err)

	var items []treasure.Treasure
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "thought 2", items[0].Content, "newest first")
}

func TestMCPTool_SeesOtherProcessWrites(t *testing.T) {
	dir := t.TempDir()
	serverDB, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })
	cliDB, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { cliDB.Close() })

	server := newMCPDepsOn(serverDB)
	cli := chest.Load(cliDB)

	record(t, server, "from the server")
	require.NoError(t, cli.Insert(treasure.Treasure{ID: "cli-1", Name: "外来之物", Type: treasure.Feather, Content: "from the cli"}))

	items := listAll(t, server)
	require.Len(t, items, 2)
	assert.Equal(t, "cli-1", items[0].ID)

	result, err := mcpDeleteTreasure(server)(context.Background(), makeCallToolRequest("delete_treasure", map[string]interface{}{
		"id":      "cli-1",
		"confirm": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(t, result))

	require.NoError(t, cli.Refresh())
	require.Len(t, cli.All(), 1)
	assert.Equal(t, "from the server", cli.All()[0].Content)
}

func TestMCPTool_DeleteTreasure(t *testing.T) {
	deps := newTestMCPDeps(t)
	tr := record(t, deps, "to forget")
	handler := mcpDeleteTreasure(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("delete_treasure", map[string]interface{}{
		"id": tr.ID,
	}))
	require.True(t, result.IsError, "deletion without confirm must be refused")
	require.Equal(t, 1, deps.Store.Len(), "treasure removed without confirmation")

	result, _ = handler(context.Background(), makeCallToolRequest("delete_treasure", map[string]interface{}{
		"id":      "missing",
		"confirm": true,
	}))
	assert.True(t, result.IsError, "expected error for unknown id")

	result, _ = handler(context.Background(), makeCallToolRequest("delete_treasure", map[string]interface{}{
		"id":      tr.ID,
		"confirm": true,
	}))
	require.False(t, result.IsError, "unexpected tool error: %s", toolText(t, result))
	assert.Zero(t, deps.Store.Len())
}

func TestMCPResource_Chest(t *testing.T) {
	deps := newTestMCPDeps(t)
	record(t, deps, "a")
	record(t, deps, "b")

	contents, err := mcpResourceChest(deps)(context.Background(), makeReadResourceRequest(chestURI))
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents, got %T", contents[0])
	assert.Equal(t, chestURI, tc.URI)
	assert.Equal(t, "application/json", tc.MIMEType)

	var items []treasure.Treasure
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Content)
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	record(t, deps, "seed")

	recordHandler := mcpRecordThought(deps)
	drawHandler := mcpDrawTreasure(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			req := makeCallToolRequest("record_thought", map[string]interface{}{
				"thought": fmt.Sprintf("concurrent %d", i),
			})
			if _, err := recordHandler(context.Background(), req); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := drawHandler(context.Background(), makeCallToolRequest("draw_treasure", nil)); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err, "concurrent call failed")
	}
	assert.Equal(t, 6, deps.Store.Len())
}

func TestNewMCPServer_Registers(t *testing.T) {
	deps := newTestMCPDeps(t)
	assert.NotNil(t, NewMCPServer(deps))
}
