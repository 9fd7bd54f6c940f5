package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/mph-llm-experiments/acalls/internal/feed"
	"github.com/mph-llm-experiments/acalls/internal/model"
)

const resetNotice = "Archived calls reset successfully!"

type feedState struct {
	gen          int
	activities   []model.Activity
	showArchived bool
	// processingID is the activity whose archive toggle is in flight.
	processingID model.ActivityID
	loading      bool
	err          error
	status       string
	notice       string
	noticeSeq    int
	notifyOnLoad bool
	cursor       int
}

func newFeedState(gen int) feedState {
	return feedState{gen: gen, loading: true}
}

func (m Model) feedGroups() []feed.DateGroup {
	return feed.Build(m.feed.activities, m.feed.showArchived, m.loc)
}

func (m Model) visibleActivities() []model.Activity {
	return feed.Flatten(m.feedGroups())
}

func (m Model) selectedActivity() (model.Activity, bool) {
	visible := m.visibleActivities()
	if m.feed.cursor < 0 || m.feed.cursor >= len(visible) {
		return model.Activity{}, false
	}
	return visible[m.feed.cursor], true
}

func (m Model) clampCursor() Model {
	n := len(m.visibleActivities())
	if m.feed.cursor >= n {
		m.feed.cursor = n - 1
	}
	if m.feed.cursor < 0 {
		m.feed.cursor = 0
	}
	return m
}

func (m Model) updateFeedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.feed.loading {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Refresh):
		m.feed.loading = true
		m.feed.err = nil
		m.feed.status = ""
		return m, tea.Batch(m.spinner.Tick, m.loadActivities(m.feed.gen))

	case key.Matches(msg, keys.Dismiss):
		m.feed.notice = ""
		m.feed.status = ""
		return m, nil
	}

	if m.feed.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.feed.cursor > 0 {
			m.feed.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.feed.cursor < len(m.visibleActivities())-1 {
			m.feed.cursor++
		}

	case key.Matches(msg, keys.Open):
		// leaving would drop the toggle's completion with this feed instance
		if m.feed.processingID != "" {
			return m, nil
		}
		if a, ok := m.selectedActivity(); ok {
			return m.openDetail(a.ID)
		}

	case key.Matches(msg, keys.Archive):
		if m.feed.processingID != "" {
			return m, nil
		}
		if a, ok := m.selectedActivity(); ok {
			m.feed.processingID = a.ID
			m.feed.status = ""
			return m, m.toggleArchive(m.feed.gen, a)
		}

	case key.Matches(msg, keys.Filter):
		m.feed.showArchived = !m.feed.showArchived
		m.feed.cursor = 0

	case key.Matches(msg, keys.Reset):
		m.feed.loading = true
		m.feed.status = ""
		m.feed.notice = ""
		return m, tea.Batch(m.spinner.Tick, m.resetActivities(m.feed.gen))
	}

	return m, nil
}

func (m Model) updateFeed(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activitiesLoadedMsg:
		if msg.gen != m.feed.gen {
			return m, nil
		}
		m.feed.loading = false
		m.feed.processingID = ""
		if msg.err != nil {
			m.feed.err = msg.err
			m.feed.notifyOnLoad = false
			return m, nil
		}
		m.feed.err = nil
		m.feed.activities = msg.activities
		m = m.clampCursor()

		if m.feed.notifyOnLoad {
			m.feed.notifyOnLoad = false
			m.feed.noticeSeq++
			m.feed.notice = resetNotice
			return m, clearNoticeAfter(m.notifyAfter, m.feed.gen, m.feed.noticeSeq)
		}
		return m, nil

	case archiveToggledMsg:
		if msg.gen != m.feed.gen {
			return m, nil
		}
		if msg.err != nil {
			m.feed.status = fmt.Sprintf("Could not update activity %s: %v", msg.id, msg.err)
		}
		// processingID is cleared once the refetch lands
		return m, m.loadActivities(m.feed.gen)

	case activitiesResetMsg:
		if msg.gen != m.feed.gen {
			return m, nil
		}
		if msg.err != nil {
			m.feed.status = fmt.Sprintf("Reset failed: %v", msg.err)
		} else {
			m.feed.notifyOnLoad = true
		}
		return m, m.loadActivities(m.feed.gen)

	case clearNoticeMsg:
		if msg.gen == m.feed.gen && msg.seq == m.feed.noticeSeq {
			m.feed.notice = ""
		}
	}
	return m, nil
}

func (m Model) renderFeed() string {
	if m.feed.loading {
		return m.renderSpinner("Loading activities…")
	}
	if m.feed.err != nil {
		return "\n" + errorStyle.Render("  Could not load activities: "+m.feed.err.Error()) +
			"\n" + dimStyle.Render("  press r to retry") + "\n"
	}

	lines, cursorLine := m.feedLines()

	rows := m.feedRows()
	offset := 0
	if len(lines) > rows {
		offset = cursorLine - rows/2
		if offset > len(lines)-rows {
			offset = len(lines) - rows
		}
		if offset < 0 {
			offset = 0
		}
	}
	end := offset + rows
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for _, line := range lines[offset:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.feed.status != "" {
		b.WriteString(errorStyle.Render("  " + m.feed.status))
		b.WriteString("\n")
	}
	if m.feed.notice != "" {
		b.WriteString(noticeStyle.Render(m.feed.notice))
		b.WriteString(dimStyle.Render("  x to dismiss"))
		b.WriteString("\n")
	}
	return b.String()
}

// feedLines renders every heading and row, and the line holding the cursor.
func (m Model) feedLines() ([]string, int) {
	groups := m.feedGroups()
	if len(groups) == 0 {
		empty := "No active activities."
		if m.feed.showArchived {
			empty = "No archived activities."
		}
		return []string{"", dimStyle.Render("  " + empty)}, 0
	}

	var lines []string
	cursorLine := 0
	index := 0
	for gi, g := range groups {
		if gi > 0 {
			lines = append(lines, "")
		}
		heading := dateStyle
		if !g.Valid() {
			heading = errorStyle
		}
		lines = append(lines, heading.Render(feed.Separator(g.Label, m.width)))
		for _, a := range g.Activities {
			selected := index == m.feed.cursor
			if selected {
				cursorLine = len(lines)
			}
			lines = append(lines, m.renderRow(a, selected))
			index++
		}
	}
	return lines, cursorLine
}

// feedRows is the number of feed lines that fit between header and help bar.
func (m Model) feedRows() int {
	rows := m.height - 5
	if m.feed.status != "" {
		rows--
	}
	if m.feed.notice != "" {
		rows--
	}
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m Model) renderRow(a model.Activity, selected bool) string {
	processing := a.ID == m.feed.processingID

	marker := "archive"
	if a.IsArchived {
		marker = "unarchive"
	}
	if processing {
		marker = "…"
	}
	right := feed.FormatTime(a.CreatedAt, m.loc) + "  " + marker

	prefix := "  "
	if selected {
		prefix = "> "
	}
	text := a.From + "  " + a.Summary()

	// prefix, icon, space, text, gap, right
	avail := m.width - ansi.StringWidth(prefix) - 2 - ansi.StringWidth(right) - 1
	if avail < 8 {
		avail = 8
	}
	if ansi.StringWidth(text) > avail {
		text = ansi.Truncate(text, avail, "…")
	}
	gap := avail - ansi.StringWidth(text) + 1

	icon := a.Icon().Glyph()
	body := " " + text + strings.Repeat(" ", gap) + right

	switch {
	case processing:
		return processingStyle.Render(prefix + icon + body)
	case selected:
		return selectedStyle.Render(prefix + icon + body)
	}

	iconStyle := receivedStyle
	if a.Icon() == model.IconMissed {
		iconStyle = missedStyle
	}
	return normalStyle.Render(prefix) + iconStyle.Render(icon) + normalStyle.Render(body)
}
