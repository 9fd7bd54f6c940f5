package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mph-llm-experiments/acalls/internal/config"
	"github.com/mph-llm-experiments/acalls/internal/fakeapi"
	"github.com/mph-llm-experiments/acalls/internal/model"
)

func scenario() []model.Activity {
	return []model.Activity{
		{ID: "1", From: "+33 1", To: "+33 2", Direction: model.DirectionInbound, CallType: model.CallAnswered, Duration: 30, CreatedAt: "2024-01-05T10:00:00Z"},
		{ID: "2", From: "+33 3", To: "+33 4", Direction: model.DirectionOutbound, CallType: model.CallAnswered, CreatedAt: "2024-01-05T09:00:00Z"},
		{ID: "3", From: "+33 5", To: "+33 6", Direction: model.DirectionInbound, CallType: model.CallMissed, CreatedAt: "2024-01-04T10:00:00Z", IsArchived: true},
	}
}

// harness serves the fake backend and captures CLI output.
type harness struct {
	store *fakeapi.Store
	cfg   *config.Config
	out   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := fakeapi.NewStore(scenario())
	ts := httptest.NewServer(fakeapi.NewServer(store).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	cfg.TimeZone = "UTC"
	cfg.Timeout = config.Duration{Duration: 5 * time.Second}

	out := &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, &bytes.Buffer{}
	t.Cleanup(func() {
		stdout, stderr = prevOut, prevErr
		globalFlags = GlobalFlags{}
	})
	globalFlags = GlobalFlags{}

	return &harness{store: store, cfg: cfg, out: out}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	globalFlags = GlobalFlags{}
	return Run(h.cfg, args)
}

func TestListText(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "list"))
	out := h.out.String()
	require.Contains(t, out, "Jan 5, 2024")
	require.NotContains(t, out, "Jan 4, 2024")
	require.Less(t, strings.Index(out, "+33 1"), strings.Index(out, "+33 3"))
	require.Contains(t, out, "10:00 AM")

	require.NoError(t, h.run(t, "list", "--archived"))
	out = h.out.String()
	require.Contains(t, out, "Jan 4, 2024")
	require.Contains(t, out, "tried to call +33 6")
}

func TestListJSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "--json", "list"))
	var groups []dateGroupOutput
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &groups))
	require.Len(t, groups, 1)
	require.Equal(t, "Jan 5, 2024", groups[0].Date)
	require.Len(t, groups[0].Activities, 2)
	require.Equal(t, model.ActivityID("1"), groups[0].Activities[0].ID)
}

func TestListJSONMarksInvalidDates(t *testing.T) {
	h := newHarness(t)
	h.store = fakeapi.NewStore(append(scenario(), model.Activity{ID: "9", CreatedAt: "not a date"}))
	ts := httptest.NewServer(fakeapi.NewServer(h.store).Handler())
	t.Cleanup(ts.Close)
	h.cfg.APIURL = ts.URL

	require.NoError(t, h.run(t, "--json", "list"))
	var groups []dateGroupOutput
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &groups))
	require.Len(t, groups, 2)
	require.False(t, groups[0].Invalid)
	require.True(t, groups[1].Invalid)
	require.Equal(t, "Invalid Date", groups[1].Date)
	require.Equal(t, model.ActivityID("9"), groups[1].Activities[0].ID)
}

func TestListYAML(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "list", "--archived", "--yaml"))
	var groups []dateGroupOutput
	require.NoError(t, yaml.Unmarshal(h.out.Bytes(), &groups))
	require.Len(t, groups, 1)
	require.Equal(t, "Jan 4, 2024", groups[0].Date)
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.ResetActivities(context.Background()))

	require.NoError(t, h.run(t, "list", "--archived"))
	require.Equal(t, "No archived activities.\n", h.out.String())
}

func TestShow(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "show", "1"))
	out := h.out.String()
	require.Contains(t, out, "Call Details (#1)")
	require.Contains(t, out, "received")
	require.Contains(t, out, "30 seconds")
	require.Contains(t, out, "Archived:    No")

	err := h.run(t, "show", "42")
	require.ErrorContains(t, err, "activity not found: 42")

	require.Error(t, h.run(t, "show"))
}

func TestArchiveUnarchiveToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.run(t, "archive", "1"))
	require.Contains(t, h.out.String(), "Archived activity 1")
	a, err := h.store.GetActivity(ctx, "1")
	require.NoError(t, err)
	require.True(t, a.IsArchived)

	require.NoError(t, h.run(t, "unarchive", "1"))
	a, err = h.store.GetActivity(ctx, "1")
	require.NoError(t, err)
	require.False(t, a.IsArchived)

	require.NoError(t, h.run(t, "toggle", "3"))
	require.Contains(t, h.out.String(), "Unarchived activity 3")
	require.NoError(t, h.run(t, "toggle", "3"))
	require.Contains(t, h.out.String(), "Archived activity 3")

	require.ErrorContains(t, h.run(t, "archive", "nope"), "activity not found")
}

func TestReset(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "reset"))
	require.Contains(t, h.out.String(), "reset successfully")

	require.NoError(t, h.run(t, "--json", "list"))
	var groups []dateGroupOutput
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &groups))
	require.Len(t, groups, 2)
	require.Equal(t, "Jan 5, 2024", groups[0].Date)
	require.Equal(t, "Jan 4, 2024", groups[1].Date)
}

func TestQuietSuppressesOutput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "-q", "reset"))
	require.Empty(t, h.out.String())
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	require.ErrorContains(t, h.run(t, "frobnicate"), "unknown command")
	require.NoError(t, h.run(t, "help"))
}

func TestParseGlobalFlags(t *testing.T) {
	t.Cleanup(func() { globalFlags = GlobalFlags{} })
	globalFlags = GlobalFlags{}

	remaining, err := ParseGlobalFlags([]string{"--api", "http://x", "list", "--json", "--archived", "--open=7", "-q"})
	require.NoError(t, err)
	require.Equal(t, []string{"list", "--archived"}, remaining)
	require.Equal(t, "http://x", GetGlobalFlags().API)
	require.Equal(t, "7", GetGlobalFlags().Open)
	require.True(t, GetGlobalFlags().JSON)
	require.True(t, GetGlobalFlags().Quiet)

	globalFlags = GlobalFlags{}
	_, err = ParseGlobalFlags([]string{"--config"})
	require.Error(t, err)

	globalFlags = GlobalFlags{}
	_, err = ParseGlobalFlags([]string{"--json", "--yaml"})
	require.Error(t, err)
}

func TestReorderFlagsFirst(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("archived", false, "")
	fs.String("addr", "", "")

	got := reorderFlagsFirst([]string{"pos", "--archived", "--addr", ":9", "tail"}, fs)
	require.Equal(t, []string{"--archived", "--addr", ":9", "pos", "tail"}, got)
}
