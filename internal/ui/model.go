// Package ui is the terminal front end: a header, the activity feed and the
// call detail screen.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mph-llm-experiments/acalls/internal/feed"
	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/service"
)

type route int

const (
	routeFeed route = iota
	routeDetail
)

// Options configures a Model.
type Options struct {
	Context        context.Context
	Location       *time.Location
	Timeout        time.Duration
	NotifyDuration time.Duration
	Width          int
	// OpenID starts the program on the detail screen of that activity.
	OpenID model.ActivityID
}

type Model struct {
	svc         service.ActivityService
	ctx         context.Context
	loc         *time.Location
	timeout     time.Duration
	notifyAfter time.Duration

	route  route
	feed   feedState
	detail detailState

	spinner  spinner.Model
	help     help.Model
	width    int
	height   int
	quitting bool
}

func NewModel(svc service.ActivityService, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.NotifyDuration <= 0 {
		opts.NotifyDuration = 2 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = 72
	}

	h := help.New()
	h.Styles.ShortKey = helpStyle.Bold(true)
	h.Styles.ShortDesc = helpStyle

	m := Model{
		svc:         svc,
		ctx:         opts.Context,
		loc:         opts.Location,
		timeout:     opts.Timeout,
		notifyAfter: opts.NotifyDuration,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:        h,
		width:       opts.Width,
		height:      30,
	}
	m.feed = newFeedState(1)
	if opts.OpenID != "" {
		m.route = routeDetail
		m.detail = newDetailState(m.ctx, 1, opts.OpenID)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.route == routeDetail {
		return tea.Batch(m.spinner.Tick, m.fetchActivity(m.detail.ctx, m.detail.gen, m.detail.id))
	}
	return tea.Batch(m.spinner.Tick, m.loadActivities(m.feed.gen))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.detail.stop()
			m.quitting = true
			return m, tea.Quit
		}
		if m.route == routeDetail {
			return m.updateDetailKeys(msg)
		}
		return m.updateFeedKeys(msg)

	case activitiesLoadedMsg, archiveToggledMsg, activitiesResetMsg, clearNoticeMsg:
		return m.updateFeed(msg)

	case activityLoadedMsg:
		return m.updateDetail(msg)
	}
	return m, nil
}

// openDetail leaves the feed and starts fetching one activity.
func (m Model) openDetail(id model.ActivityID) (Model, tea.Cmd) {
	m.detail.stop()
	m.detail = newDetailState(m.ctx, m.detail.gen+1, id)
	m.route = routeDetail
	return m, m.fetchActivity(m.detail.ctx, m.detail.gen, id)
}

// openFeed returns to a fresh feed, which reloads the list.
func (m Model) openFeed() (Model, tea.Cmd) {
	m.detail.stop()
	showArchived := m.feed.showArchived
	m.feed = newFeedState(m.feed.gen + 1)
	m.feed.showArchived = showArchived
	m.route = routeFeed
	return m, tea.Batch(m.spinner.Tick, m.loadActivities(m.feed.gen))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.route {
	case routeDetail:
		b.WriteString(m.renderDetail())
		b.WriteString("\n")
		b.WriteString(m.help.View(detailKeys{keys}))
	default:
		b.WriteString(m.renderFeed())
		b.WriteString("\n")
		b.WriteString(m.help.View(feedKeys{keys}))
	}
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("acalls")
	switch m.route {
	case routeDetail:
		return title + headerStyle.Render("Call Details")
	default:
		filter := "active"
		if m.feed.showArchived {
			filter = "archived"
		}
		header := title + headerStyle.Render("Activity") + dimStyle.Render(fmt.Sprintf("  [%s]", filter))
		if m.feed.loading || m.feed.err != nil {
			return header
		}
		active, archived := feed.Partition(m.feed.activities)
		return header + dimStyle.Render(fmt.Sprintf("  %d active · %d archived", len(active), len(archived)))
	}
}

// Route reports the current screen, "feed" or "detail".
func (m Model) Route() string {
	if m.route == routeDetail {
		return "detail"
	}
	return "feed"
}

func (m Model) renderSpinner(label string) string {
	return fmt.Sprintf("\n  %s %s\n", m.spinner.View(), label)
}
