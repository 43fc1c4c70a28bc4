package api

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/kalambet/crowtreasure/internal/chest"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

const chestURI = "treasure://chest"

// MCPGenerator produces treasure fields for a thought. It must not fail.
type MCPGenerator interface {
	Generate(ctx context.Context, thought, emotion string) treasure.Draft
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *chest.Store
	Generator MCPGenerator
	Version   string

	// Optional; default to time.Now, uuid.NewString and a package-level source.
	Now   func() time.Time
	NewID func() string
	Rand  *rand.Rand
}

func (d MCPDeps) withDefaults() MCPDeps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	if d.Rand != nil {
		d.Rand = lockedRand(d.Rand)
	}
	return d
}

// NewMCPServer creates an MCP server exposing the treasure chest.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	deps = deps.withDefaults()

	s := server.NewMCPServer(
		"crowtreasure",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("crowtreasure keeps thoughts as treasures forged by the crow. Record a thought to receive a treasure; draw to revisit one at random."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("record_thought",
			mcp.WithDescription("Give a thought to the crow. It is forged into a treasure and stored in the chest."),
			mcp.WithString("thought", mcp.Description("The thought to record"), mcp.Required()),
			mcp.WithString("emotion", mcp.Description("Optional emotion label"), mcp.Enum(treasure.Emotions...)),
		),
		mcpRecordThought(deps),
	)

	s.AddTool(
		mcp.NewTool("draw_treasure",
			mcp.WithDescription("Draw one treasure from the chest uniformly at random."),
		),
		mcpDrawTreasure(deps),
	)

	s.AddTool(
		mcp.NewTool("list_treasures",
			mcp.WithDescription("List stored treasures, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListTreasures(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_treasure",
			mcp.WithDescription("Let the wind carry a treasure away. This cannot be undone."),
			mcp.WithString("id", mcp.Description("Treasure id"), mcp.Required()),
			mcp.WithBoolean("confirm", mcp.Description("Must be true to acknowledge the deletion is permanent"), mcp.Required()),
		),
		mcpDeleteTreasure(deps),
	)

	s.AddResource(
		mcp.NewResource(
			chestURI,
			"Treasure Chest",
			mcp.WithResourceDescription("Every stored treasure as a JSON array, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceChest(deps),
	)

	return s
}

func mcpRecordThought(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		thought, err := req.RequireString("thought")
		if err != nil || strings.TrimSpace(thought) == "" {
			return mcpError("thought is required"), nil
		}
		emotion := req.GetString("emotion", "")
		if emotion != "" && !treasure.IsEmotion(emotion) {
			return mcpError(fmt.Sprintf("unknown emotion %q; expected one of %s", emotion, strings.Join(treasure.Emotions, ", "))), nil
		}

		draft := deps.Generator.Generate(ctx, thought, emotion)
		t := draft.Mint(deps.NewID(), deps.Now().UTC())
		if err := deps.Store.Insert(t); err != nil {
			return mcpError(fmt.Sprintf("failed to save treasure: %v", err)), nil
		}
		return mcpJSON(t)
	}
}

func mcpDrawTreasure(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		refresh(deps.Store)
		t, ok := deps.Store.Pick(deps.Rand)
		if !ok {
			return mcpError("the chest is empty"), nil
		}
		return mcpJSON(t)
	}
}

func mcpListTreasures(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		refresh(deps.Store)
		items := deps.Store.All()
		if len(items) > limit {
			items = items[:limit]
		}
		return mcpJSON(items)
	}
}

func mcpDeleteTreasure(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if !req.GetBool("confirm", false) {
			return mcpError("deletion is permanent; call again with confirm=true"), nil
		}
		refresh(deps.Store)
		if _, ok := deps.Store.Get(id); !ok {
			return mcpError(fmt.Sprintf("no treasure with id %s", id)), nil
		}
		if err := deps.Store.Remove(id); err != nil {
			return mcpError(fmt.Sprintf("failed to delete: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Treasure %s was carried away by the wind", id)), nil
	}
}

func mcpResourceChest(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		refresh(deps.Store)
		b, err := json.Marshal(deps.Store.All())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal treasures: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// refresh picks up treasures other processes wrote since the server started.
func refresh(store *chest.Store) {
	if err := store.Refresh(); err != nil {
		log.Warn().Err(err).Msg("refreshing treasure chest")
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// lockedRand guards a caller-supplied source, since tool calls may run
// concurrently and *rand.Rand is not safe for concurrent use.
func lockedRand(r *rand.Rand) *rand.Rand {
	return rand.New(&lockedSource{src: r})
}

type lockedSource struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}
