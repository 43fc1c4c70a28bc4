package treasure

import "time"

// Type is the kind of object a thought is forged into.
type Type string

const (
	Coin     Type = "COIN"
	Gem      Type = "GEM"
	Sword    Type = "SWORD"
	Scroll   Type = "SCROLL"
	Feather  Type = "FEATHER"
	Key      Type = "KEY"
	Potion   Type = "POTION"
	Artifact Type = "ARTIFACT"
)

// DefaultType is used for any type tag outside the closed set.
const DefaultType = Artifact

// DefaultColor is the neutral colour theme used when generation yields none.
const DefaultColor = "#94a3b8"

var allTypes = []Type{Coin, Gem, Sword, Scroll, Feather, Key, Potion, Artifact}

// Types returns the closed set of valid type tags in canonical order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is one of the eight known tags.
func (t Type) Valid() bool {
	for _, v := range allTypes {
		if t == v {
			return true
		}
	}
	return false
}

var labels = map[Type]string{
	Coin:     "硬币",
	Gem:      "宝石",
	Sword:    "短剑",
	Scroll:   "卷轴",
	Feather:  "羽毛",
	Key:      "钥匙",
	Potion:   "药水",
	Artifact: "神器",
}

// Label returns the display name of the type. Unknown tags return the tag itself.
func (t Type) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// Emotions is the fixed set of emotion labels a user may attach to a thought.
var Emotions = []string{"平静", "快乐", "悲伤", "愤怒", "焦虑", "期待", "迷茫", "感激"}

// IsEmotion reports whether s belongs to Emotions.
func IsEmotion(s string) bool {
	for _, e := range Emotions {
		if e == s {
			return true
		}
	}
	return false
}

// Treasure is a stored collectible. It is never modified after creation.
type Treasure struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Emotion        string    `json:"emotion,omitempty"`
	Name           string    `json:"name"`
	Type           Type      `json:"type"`
	Description    string    `json:"description"`
	CrowCommentary string    `json:"crowCommentary"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Draft holds every Treasure field except identity and creation time.
type Draft struct {
	Content        string
	Emotion        string
	Name           string
	Type           Type
	Description    string
	CrowCommentary string
	Color          string
}

// Mint stamps the draft with an identity and timestamp.
func (d Draft) Mint(id string, at time.Time) Treasure {
	return Treasure{
		ID:             id,
		Content:        d.Content,
		Emotion:        d.Emotion,
		Name:           d.Name,
		Type:           d.Type,
		Description:    d.Description,
		CrowCommentary: d.CrowCommentary,
		Color:          d.Color,
		CreatedAt:      at,
	}
}

// GenerationResponse is the object the model is asked to return.
type GenerationResponse struct {
	Name           string `json:"name" jsonschema:"description=4-10 Simplified Chinese characters in the form X之Y or X的Y without punctuation"`
	Type           string `json:"type" jsonschema:"enum=COIN,enum=GEM,enum=SWORD,enum=SCROLL,enum=FEATHER,enum=KEY,enum=POTION,enum=ARTIFACT"`
	Description    string `json:"description" jsonschema:"description=1-2 poetic sentences connecting the item to the thought"`
	CrowCommentary string `json:"crowCommentary" jsonschema:"description=neutral and detached remark without bird sounds"`
	ColorTheme     string `json:"colorTheme" jsonschema:"description=hex colour matching the mood"`
}
