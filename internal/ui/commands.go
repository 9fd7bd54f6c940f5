package ui

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/service"
)

// Message types. gen is the generation of the view instance that issued the
// request; Update drops messages whose gen no longer matches.
type activitiesLoadedMsg struct {
	gen        int
	activities []model.Activity
	err        error
}

type archiveToggledMsg struct {
	gen int
	id  model.ActivityID
	err error
}

type activitiesResetMsg struct {
	gen int
	err error
}

type activityLoadedMsg struct {
	gen      int
	id       model.ActivityID
	activity model.Activity
	err      error
}

type clearNoticeMsg struct {
	gen int
	seq int
}

// loadActivities returns a command that fetches the whole feed
func (m Model) loadActivities(gen int) tea.Cmd {
	svc, parent, timeout := m.svc, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		activities, err := svc.ListActivities(ctx)
		if err != nil {
			log.Printf("[feed] load failed: %v", err)
		}
		return activitiesLoadedMsg{gen: gen, activities: activities, err: err}
	}
}

// toggleArchive returns a command that flips the archived flag of one activity
func (m Model) toggleArchive(gen int, activity model.Activity) tea.Cmd {
	svc, parent, timeout := m.svc, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		_, err := service.ToggleArchived(ctx, svc, activity)
		if err != nil {
			log.Printf("[feed] toggle archive of %s failed: %v", activity.ID, err)
		}
		return archiveToggledMsg{gen: gen, id: activity.ID, err: err}
	}
}

// resetActivities returns a command that unarchives every activity
func (m Model) resetActivities(gen int) tea.Cmd {
	svc, parent, timeout := m.svc, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		err := svc.ResetActivities(ctx)
		if err != nil {
			log.Printf("[feed] reset failed: %v", err)
		}
		return activitiesResetMsg{gen: gen, err: err}
	}
}

// fetchActivity returns a command that loads one activity for the detail screen.
// ctx is cancelled when the detail screen is left.
func (m Model) fetchActivity(ctx context.Context, gen int, id model.ActivityID) tea.Cmd {
	svc, timeout := m.svc, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		activity, err := svc.GetActivity(ctx, id)
		if err != nil {
			log.Printf("[detail] fetch %s failed: %v", id, err)
		}
		return activityLoadedMsg{gen: gen, id: id, activity: activity, err: err}
	}
}

// clearNoticeAfter returns a command that hides the notice after a delay
func clearNoticeAfter(d time.Duration, gen, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNoticeMsg{gen: gen, seq: seq}
	})
}
