package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/crowtreasure/internal/treasure"
	"github.com/kalambet/crowtreasure/internal/view"
)

var dots = []string{"", ".", "..", "..."}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("乌鸦的宝藏"))
	b.WriteString("\n")

	switch m.machine.Screen() {
	case view.Home:
		b.WriteString(m.viewHome())
	case view.Input:
		b.WriteString(m.viewInput())
	case view.Reveal:
		b.WriteString(m.viewTreasure("乌鸦为你锻造了一件宝物", "esc 返回"))
	case view.Chest:
		b.WriteString(m.viewChest())
	case view.Retrieved:
		b.WriteString(m.viewTreasure("乌鸦从宝箱深处衔出了", "esc 放回宝箱"))
	}
	return b.String()
}

func (m Model) viewHome() string {
	count := m.machine.Count()
	lines := []string{
		"把一段思绪交给乌鸦，它会将其锻造成宝物。",
		mutedStyle.Render(fmt.Sprintf("宝箱中已有 %d 件宝物", count)),
		helpStyle.Render("r 记录思绪 · c 打开宝箱 · q 离开"),
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewInput() string {
	vm := m.machine

	text := vm.Input()
	if text == "" {
		text = mutedStyle.Render("此刻你在想什么？")
	}
	box := inputStyle
	if m.width > 8 {
		box = box.Width(min(m.width-4, 72))
	}

	chips := make([]string, 0, len(treasure.Emotions))
	for _, e := range treasure.Emotions {
		if e == vm.Emotion() {
			chips = append(chips, selectedChipStyle.Render(e))
		} else {
			chips = append(chips, chipStyle.Render(e))
		}
	}

	parts := []string{
		box.Render(text),
		lipgloss.JoinHorizontal(lipgloss.Top, chips...),
	}
	if vm.Generating() {
		parts = append(parts, warnStyle.Render("乌鸦正在端详你的思绪"+dots[m.frame%len(dots)]))
	} else {
		parts = append(parts, helpStyle.Render("enter 交给乌鸦 · tab 选择情绪 · esc 返回"))
	}
	return strings.Join(parts, "\n")
}

func (m Model) viewChest() string {
	vm := m.machine
	count := vm.Count()

	var parts []string
	switch {
	case vm.Drawing():
		parts = append(parts, warnStyle.Render("乌鸦正在宝箱深处翻找"+dots[m.frame%len(dots)]))
	case count == 0:
		parts = append(parts,
			"宝箱空空如也。",
			helpStyle.Render("r 记录思绪 · esc 返回"))
	default:
		parts = append(parts, fmt.Sprintf("宝箱中静静躺着 %d 件宝物。", count))
		parts = append(parts, m.viewOverview()...)
		parts = append(parts, helpStyle.Render("space 抽取一件 · r 记录思绪 · esc 返回"))
	}
	return strings.Join(parts, "\n")
}

// maxOverview caps the overview so a large chest does not push the help line
// off screen.
const maxOverview = 12

// viewOverview lists the stored treasures, newest first, by type and name.
func (m Model) viewOverview() []string {
	items := m.machine.Store().All()
	lines := []string{mutedStyle.Render("收藏概览")}
	for i, t := range items {
		if i == maxOverview {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("……还有 %d 件", len(items)-maxOverview)))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s", accent(t).Render(t.Type.Label()), t.Name))
	}
	return lines
}

func (m Model) viewTreasure(heading, closeHint string) string {
	t, ok := m.machine.Focused()
	if !ok {
		return ""
	}

	parts := []string{
		mutedStyle.Render(heading),
		cardStyle(t, m.width).Render(renderCard(t)),
	}
	if m.machine.PendingDelete() {
		parts = append(parts,
			warnStyle.Render(view.DeleteConfirmation),
			helpStyle.Render("y 确认 · n 取消"))
	} else {
		parts = append(parts, helpStyle.Render(closeHint+" · d 让风带走"))
	}
	return strings.Join(parts, "\n")
}

func renderCard(t treasure.Treasure) string {
	lines := []string{
		accent(t).Render(fmt.Sprintf("%s · %s", t.Name, t.Type.Label())),
		"",
		t.Description,
		"",
		mutedStyle.Render("乌鸦：" + t.CrowCommentary),
		"",
		mutedStyle.Render("「" + t.Content + "」"),
	}
	meta := t.CreatedAt.Local().Format("2006-01-02 15:04")
	if t.Emotion != "" {
		meta = t.Emotion + " · " + meta
	}
	lines = append(lines, mutedStyle.Render(meta))
	return strings.Join(lines, "\n")
}
