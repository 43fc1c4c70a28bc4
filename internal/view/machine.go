// Package view implements the screen state machine behind the interactive
// interface. Asynchronous work (generation and the draw delay) is returned as
// bubbletea commands whose completion messages are fed back through Update.
package view

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kalambet/crowtreasure/internal/chest"
	"github.com/kalambet/crowtreasure/internal/treasure"
)

// DefaultDrawDelay is the suspense pause before a drawn treasure is revealed.
const DefaultDrawDelay = 3 * time.Second

// DeleteConfirmation is shown before a treasure is removed.
const DeleteConfirmation = "确定要让风带走这段记忆吗？它将无法被找回。"

type Screen int

const (
	Home Screen = iota
	Input
	Reveal
	Chest
	Retrieved
)

func (s Screen) String() string {
	switch s {
	case Home:
		return "home"
	case Input:
		return "input"
	case Reveal:
		return "reveal"
	case Chest:
		return "chest"
	case Retrieved:
		return "retrieved"
	default:
		return "unknown"
	}
}

// Generator produces treasure fields for a thought. It must not fail.
type Generator interface {
	Generate(ctx context.Context, thought, emotion string) treasure.Draft
}

// GeneratedMsg carries a finished generation back into the machine.
type GeneratedMsg struct {
	Draft treasure.Draft
}

// DrawElapsedMsg signals the end of the draw delay.
type DrawElapsedMsg struct{}

// Machine holds the current screen and its transient fields.
type Machine struct {
	store *chest.Store
	gen   Generator
	ctx   context.Context

	delay time.Duration
	now   func() time.Time
	newID func() string
	rng   *rand.Rand

	screen        Screen
	input         string
	emotion       string
	generating    bool
	drawing       bool
	focused       *treasure.Treasure
	pendingDelete bool
}

type Option func(*Machine)

// WithDrawDelay overrides DefaultDrawDelay. Negative values are treated as zero.
func WithDrawDelay(d time.Duration) Option {
	return func(m *Machine) { m.delay = max(d, 0) }
}

// WithClock sets the clock used to stamp new treasures.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDs sets the identifier source for new treasures.
func WithIDs(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

// WithRand sets the random source used by draws.
func WithRand(rng *rand.Rand) Option {
	return func(m *Machine) { m.rng = rng }
}

// WithContext sets the context passed to the generator.
func WithContext(ctx context.Context) Option {
	return func(m *Machine) { m.ctx = ctx }
}

// New creates a machine on the Home screen.
func New(store *chest.Store, gen Generator, opts ...Option) *Machine {
	m := &Machine{
		store: store,
		gen:   gen,
		ctx:   context.Background(),
		delay: DefaultDrawDelay,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Machine) Screen() Screen { return m.screen }
func (m *Machine) Input() string { return m.input }
func (m *Machine) Emotion() string { return m.emotion }
func (m *Machine) Generating() bool { return m.generating }
func (m *Machine) Drawing() bool { return m.drawing }
func (m *Machine) PendingDelete() bool { return m.pendingDelete }
func (m *Machine) Count() int { return m.store.Len() }
func (m *Machine) Store() *chest.Store { return m.store }

// Focused returns the treasure shown on the Reveal or Retrieved screen.
func (m *Machine) Focused() (treasure.Treasure, bool) {
	if m.focused == nil {
		return treasure.Treasure{}, false
	}
	return *m.focused, true
}

// CanSubmit reports whether Submit would start a generation.
func (m *Machine) CanSubmit() bool {
	return m.screen == Input && !m.generating && strings.TrimSpace(m.input) != ""
}

// CanDraw reports whether Draw would start a draw.
func (m *Machine) CanDraw() bool {
	return m.screen == Chest && !m.drawing && m.store.Len() > 0
}

// RecordThought moves Home to Input.
func (m *Machine) RecordThought() {
	if m.screen == Home {
		m.screen = Input
	}
}

// OpenChest moves Home to Chest, reloading the collection so treasures
// recorded elsewhere show up.
func (m *Machine) OpenChest() {
	if m.screen != Home {
		return
	}
	if err := m.store.Refresh(); err != nil {
		log.Warn().Err(err).Msg("refreshing treasure chest")
	}
	m.screen = Chest
}

// SetInput replaces the thought text while it is editable.
func (m *Machine) SetInput(text string) {
	if m.screen == Input && !m.generating {
		m.input = text
	}
}

// ToggleEmotion selects e, or clears the selection when e is already selected.
// Labels outside treasure.Emotions are ignored.
func (m *Machine) ToggleEmotion(e string) {
	if m.screen != Input || m.generating || !treasure.IsEmotion(e) {
		return
	}
	if m.emotion == e {
		m.emotion = ""
		return
	}
	m.emotion = e
}

// Submit starts a generation for the current input. It returns nil and
// changes nothing when the input is blank or a generation is in flight.
func (m *Machine) Submit() tea.Cmd {
	if !m.CanSubmit() {
		return nil
	}
	m.generating = true

	ctx, gen := m.ctx, m.gen
	thought, emotion := m.input, m.emotion
	return func() tea.Msg {
		return GeneratedMsg{Draft: gen.Generate(ctx, thought, emotion)}
	}
}

// Draw starts the suspense delay. It returns nil when the collection is empty
// or a draw is already in flight.
func (m *Machine) Draw() tea.Cmd {
	if !m.CanDraw() {
		return nil
	}
	m.drawing = true
	return tea.Tick(m.delay, func(time.Time) tea.Msg { return DrawElapsedMsg{} })
}

// Back leaves Input or Chest for Home. It is refused while the screen's
// operation is in flight.
func (m *Machine) Back() {
	switch m.screen {
	case Input:
		if !m.generating {
			m.screen = Home
		}
	case Chest:
		if !m.drawing {
			m.screen = Home
		}
	case Reveal, Retrieved:
		m.Close()
	}
}

// RecordFromChest moves Chest to Input when no draw is in flight.
func (m *Machine) RecordFromChest() {
	if m.screen == Chest && !m.drawing {
		m.screen = Input
	}
}

// Close dismisses the focused treasure: Reveal returns Home, Retrieved
// returns to Chest.
func (m *Machine) Close() {
	switch m.screen {
	case Reveal:
		m.clearFocus()
		m.screen = Home
	case Retrieved:
		m.clearFocus()
		m.screen = Chest
	}
}

// RequestDelete asks for confirmation before deleting the focused treasure.
func (m *Machine) RequestDelete() {
	if (m.screen == Reveal || m.screen == Retrieved) && m.focused != nil {
		m.pendingDelete = true
	}
}

// CancelDelete withdraws a pending deletion.
func (m *Machine) CancelDelete() {
	m.pendingDelete = false
}

// ConfirmDelete removes the focused treasure from the store and leaves the
// screen the same way Close does. Without a pending request it does nothing.
func (m *Machine) ConfirmDelete() {
	if !m.pendingDelete || m.focused == nil {
		return
	}
	id := m.focused.ID
	if err := m.store.Remove(id); err != nil {
		log.Error().Err(err).Str("id", id).Msg("removing treasure")
	}
	m.Close()
}

// Update applies a completion message. Messages that do not match an
// in-flight operation are ignored.
func (m *Machine) Update(msg tea.Msg) {
	switch msg := msg.(type) {
	case GeneratedMsg:
		m.generated(msg.Draft)
	case DrawElapsedMsg:
		m.drawElapsed()
	}
}

func (m *Machine) generated(d treasure.Draft) {
	if m.screen != Input || !m.generating {
		return
	}
	t := d.Mint(m.newID(), m.now())
	if err := m.store.Insert(t); err != nil {
		log.Error().Err(err).Str("id", t.ID).Msg("saving treasure")
	}

	m.generating = false
	m.input = ""
	m.emotion = ""
	m.focused = &t
	m.screen = Reveal
}

func (m *Machine) drawElapsed() {
	if m.screen != Chest || !m.drawing {
		return
	}
	m.drawing = false

	t, ok := m.store.Pick(m.rng)
	if !ok {
		return
	}
	m.focused = &t
	m.screen = Retrieved
}

func (m *Machine) clearFocus() {
	m.focused = nil
	m.pendingDelete = false
}
