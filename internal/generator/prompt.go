package generator

import (
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/kalambet/crowtreasure/internal/proxy"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

const systemInstruction = `You are the mystical "Keeper of the Crow's Treasure" (乌鸦宝藏的守护者).
Your task is to transform a user's abstract thought and emotion into a physical, magical "Treasure".

Rules:
1. **Language**: All output fields (name, description, crowCommentary) MUST be in **Simplified Chinese (简体中文)**.
2. Analyze the user's thought and selected emotion (if provided).
3. Assign it one of the following types: COIN, GEM, SWORD, SCROLL, FEATHER, KEY, POTION, ARTIFACT.
3.1 The "type" field MUST be exactly one of:
"COIN","GEM","SWORD","SCROLL","FEATHER","KEY","POTION","ARTIFACT"
No other words.
4. Generate a mystical name for the treasure (e.g., "静默的琥珀硬币", "悔恨的生锈短剑").
4.1 Name must be SHORT and EASY: 4~8 Chinese characters, max 10.
4.2 Name format should be one of:
- 「X之Y」(e.g., "静默之钥", "微光之羽")
- 「X的Y」(e.g., "薄雾的硬币")
Avoid stacked adjectives like "古老的、破碎的、被诅咒的..."
4.3 Do NOT include punctuation, quotes, or long phrases in the name.
5. Write a short, poetic, and philosophical description (1-2 sentences) that connects the item to the user's thought.
6. **Crow's Commentary**:
   - You are a **neutral witness** (中立的见证者), an observer of time and fate.
   - **Do NOT** judge the emotion or thought.
   - **Do NOT** use bird sounds like "Ga", "Caw", "嘎" or mimic a bird's speech pattern.
   - **Tone**: Mysterious, cool, aloof, detached, poetic, timeless.
7. Assign a color theme (hex code) that matches the mood.
8. Return the response in strict JSON format ONLY (no markdown fence).`

var outputSchema = sync.OnceValue(func() string {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	b, err := r.Reflect(&treasure.GenerationResponse{}).MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
})

// SystemInstruction returns the fixed instruction, followed by the JSON schema
// of the expected object when it can be produced.
func SystemInstruction() string {
	schema := outputSchema()
	if schema == "" {
		return systemInstruction
	}
	return systemInstruction + "\n\nThe JSON object must match this schema:\n" + schema
}

// BuildPrompt returns the system and user messages for a thought.
func BuildPrompt(thought, emotion string) []proxy.Message {
	var sb strings.Builder
	sb.WriteString(`User Thought: "` + thought + `"`)
	if emotion != "" {
		sb.WriteString("\n" + `User Emotion: "` + emotion + `"`)
	}

	return []proxy.Message{
		{Role: "system", Content: SystemInstruction()},
		{Role: "user", Content: sb.String()},
	}
}
