// Package tui renders the view state machine as a bubbletea program.
package tui

import (
	"context"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kalambet/crowtreasure/internal/treasure"
	"github.com/kalambet/crowtreasure/internal/view"
)

const frameInterval = 250 * time.Millisecond

type frameMsg struct{}

// Model adapts view.Machine to tea.Model.
type Model struct {
	machine *view.Machine
	width   int
	frame   int
	ticking bool
}

func NewModel(m *view.Machine) Model {
	return Model{machine: m}
}

// Run starts the interactive program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, m *view.Machine) error {
	p := tea.NewProgram(NewModel(m), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case view.GeneratedMsg, view.DrawElapsedMsg:
		m.machine.Update(msg)
		return m, nil

	case frameMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		m.frame++
		return m, tick()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) busy() bool {
	return m.machine.Generating() || m.machine.Drawing()
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

// withFrames starts the animation ticker alongside cmd when it is not running yet.
func (m Model) withFrames(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	if m.ticking {
		return m, cmd
	}
	m.ticking = true
	m.frame = 0
	return m, tea.Batch(cmd, tick())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vm := m.machine
	key := msg.String()

	switch vm.Screen() {
	case view.Home:
		switch key {
		case "r":
			vm.RecordThought()
		case "c":
			vm.OpenChest()
		case "q":
			return m, tea.Quit
		}

	case view.Input:
		switch msg.Type {
		case tea.KeyEsc:
			vm.Back()
		case tea.KeyEnter, tea.KeyCtrlS:
			return m.withFrames(vm.Submit())
		case tea.KeyTab:
			cycleEmotion(vm, 1)
		case tea.KeyShiftTab:
			cycleEmotion(vm, -1)
		case tea.KeyBackspace:
			in := vm.Input()
			if in != "" {
				_, size := utf8.DecodeLastRuneInString(in)
				vm.SetInput(in[:len(in)-size])
			}
		case tea.KeySpace:
			vm.SetInput(vm.Input() + " ")
		case tea.KeyRunes:
			vm.SetInput(vm.Input() + string(msg.Runes))
		}

	case view.Reveal, view.Retrieved:
		if vm.PendingDelete() {
			switch key {
			case "y":
				vm.ConfirmDelete()
			case "n", "esc":
				vm.CancelDelete()
			}
			return m, nil
		}
		switch key {
		case "esc", "enter", "q":
			vm.Close()
		case "d":
			vm.RequestDelete()
		}

	case view.Chest:
		switch key {
		case " ", "enter":
			return m.withFrames(vm.Draw())
		case "r":
			vm.RecordFromChest()
		case "esc", "q":
			vm.Back()
		}
	}
	return m, nil
}

// cycleEmotion steps through no emotion followed by each of treasure.Emotions.
func cycleEmotion(vm *view.Machine, dir int) {
	options := append([]string{""}, treasure.Emotions...)
	cur := 0
	for i, e := range options {
		if e == vm.Emotion() {
			cur = i
			break
		}
	}
	next := options[(cur+dir+len(options))%len(options)]
	if next == "" {
		vm.ToggleEmotion(vm.Emotion())
		return
	}
	vm.ToggleEmotion(next)
}
