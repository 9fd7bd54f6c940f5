package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/mph-llm-experiments/acalls/internal/fakeapi"
	"github.com/mph-llm-experiments/acalls/internal/model"
)

func TestDetailOpenedDirectly(t *testing.T) {
	m := newTestModel(newService(), "3")
	require.Equal(t, "detail", m.Route())
	require.Contains(t, m.View(), "Loading activity")

	m = start(t, m)
	require.NotNil(t, m.detail.activity)

	view := m.View()
	require.Contains(t, view, "✗")
	require.Contains(t, view, "missed")
	require.Contains(t, view, "Yes")
	require.Contains(t, view, "0 seconds")
}

func TestDetailNotFound(t *testing.T) {
	m := start(t, newTestModel(newService(), "999"))

	require.True(t, m.detail.notFound)
	require.Nil(t, m.detail.err)
	require.Contains(t, m.View(), "Activity not found.")
}

func TestDetailFailureIsDistinctFromNotFound(t *testing.T) {
	svc := newService()
	svc.getErr = errors.New("timeout")
	m := start(t, newTestModel(svc, "1"))

	require.False(t, m.detail.notFound)
	require.Error(t, m.detail.err)
	view := m.View()
	require.Contains(t, view, "Could not load activity 1")
	require.NotContains(t, view, "Activity not found.")

	svc.getErr = nil
	m = press(t, m, "r")
	require.NotNil(t, m.detail.activity)
}

func TestDetailIcons(t *testing.T) {
	svc := &flakyService{Store: fakeapi.NewStore(scenario())}
	m := start(t, newTestModel(svc, "1"))
	require.Contains(t, m.View(), "↙")

	m = start(t, newTestModel(svc, "2"))
	require.Contains(t, m.View(), "↗")
}

func TestStaleDetailResponseIsDropped(t *testing.T) {
	m := start(t, newTestModel(newService(), ""))
	m = press(t, m, "enter")
	gen := m.detail.gen

	next, _ := m.Update(activityLoadedMsg{gen: gen - 1, id: "2", activity: model.Activity{ID: "2"}})
	require.Equal(t, model.ActivityID("1"), next.(Model).detail.activity.ID)

	m = press(t, m, "esc")
	next, _ = m.Update(activityLoadedMsg{gen: gen, id: "1", err: errors.New("late")})
	require.Equal(t, "feed", next.(Model).Route())
	require.Nil(t, next.(Model).detail.err)
}

// blockingService never answers GetActivity until the request is cancelled.
type blockingService struct {
	*fakeapi.Store
	started chan struct{}
}

func (s *blockingService) GetActivity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	close(s.started)
	<-ctx.Done()
	return model.Activity{}, ctx.Err()
}

func TestLeavingDetailCancelsFetch(t *testing.T) {
	svc := &blockingService{Store: fakeapi.NewStore(scenario()), started: make(chan struct{})}
	m := NewModel(svc, Options{Location: time.UTC, Timeout: time.Minute, OpenID: "1"})

	fetch := m.fetchActivity(m.detail.ctx, m.detail.gen, m.detail.id)
	done := make(chan tea.Msg, 1)
	go func() { done <- fetch() }()
	<-svc.started

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, "feed", next.(Model).Route())

	select {
	case msg := <-done:
		loaded := msg.(activityLoadedMsg)
		require.ErrorIs(t, loaded.err, context.Canceled)
		after, _ := next.(Model).Update(loaded)
		require.Equal(t, "feed", after.(Model).Route())
	case <-time.After(5 * time.Second):
		t.Fatal("fetch was not cancelled")
	}
}

func TestQuitStopsProgram(t *testing.T) {
	m := start(t, newTestModel(newService(), ""))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
	require.Empty(t, next.(Model).View())
}
