package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mph-llm-experiments/acalls/internal/feed"
	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/service"
)

type detailState struct {
	gen      int
	id       model.ActivityID
	ctx      context.Context
	cancel   context.CancelFunc
	loading  bool
	activity *model.Activity
	notFound bool
	err      error
}

func newDetailState(parent context.Context, gen int, id model.ActivityID) detailState {
	ctx, cancel := context.WithCancel(parent)
	return detailState{
		gen:     gen,
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		loading: true,
	}
}

// stop cancels the in-flight fetch, if any.
func (d detailState) stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (m Model) updateDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		return m.openFeed()

	case key.Matches(msg, keys.Refresh):
		if m.detail.loading {
			return m, nil
		}
		next, cmd := m.openDetail(m.detail.id)
		return next, tea.Batch(m.spinner.Tick, cmd)
	}
	return m, nil
}

func (m Model) updateDetail(msg activityLoadedMsg) (tea.Model, tea.Cmd) {
	if m.route != routeDetail || msg.gen != m.detail.gen {
		return m, nil
	}

	m.detail.loading = false
	switch {
	case errors.Is(msg.err, service.ErrNotFound):
		m.detail.notFound = true
	case msg.err != nil:
		m.detail.err = msg.err
	default:
		activity := msg.activity
		m.detail.activity = &activity
	}
	return m, nil
}

func (m Model) renderDetail() string {
	d := m.detail
	switch {
	case d.loading:
		return m.renderSpinner("Loading activity…")
	case d.notFound:
		return "\n" + errorStyle.Render("  Activity not found.") + "\n"
	case d.err != nil:
		return "\n" + errorStyle.Render(fmt.Sprintf("  Could not load activity %s: %v", d.id, d.err)) +
			"\n" + dimStyle.Render("  press r to retry") + "\n"
	case d.activity == nil:
		return ""
	}

	a := *d.activity
	icon := a.Icon().Glyph()
	iconStyle := receivedStyle
	if a.Icon() == model.IconMissed {
		iconStyle = missedStyle
	}

	archived := "No"
	if a.IsArchived {
		archived = "Yes"
	}

	fields := []struct {
		label string
		value string
	}{
		{"From", a.From},
		{"To", a.To},
		{"Via", a.Via},
		{"Direction", string(a.Direction)},
		{"Call Type", string(a.CallType)},
		{"Duration", feed.FormatDuration(a.Duration)},
		{"Created At", feed.FormatDateTime(a.CreatedAt, m.loc)},
		{"Archived", archived},
	}

	var b strings.Builder
	b.WriteString(iconStyle.Render(icon) + " " + titleStyle.Render("Call Details") + dimStyle.Render(" #"+string(a.ID)))
	b.WriteString("\n\n")
	for _, f := range fields {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(f.label), f.value))
		b.WriteString("\n")
	}

	width := m.width - 2
	if width > 60 {
		width = 60
	}
	return cardStyle.Width(width).Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
