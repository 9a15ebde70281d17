package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps collections as JSON so tests see exactly what would be persisted.
type memStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failing bool
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) CreateSchema(context.Context) error { return nil }
func (m *memStore) DropSchema(context.Context) error   { return nil }

func (m *memStore) LoadCollection(_ context.Context, session string) (*chartflow.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[session]
	if !ok {
		return nil, nil
	}
	var c chartflow.Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *memStore) SaveCollection(_ context.Context, session string, c *chartflow.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.blobs[session] = b
	return nil
}

func (m *memStore) DeleteCollection(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, session)
	return nil
}

func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func openTest(t *testing.T, store *memStore) *Service {
	t.Helper()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, err := Open(context.Background(), store, "test",
		WithLogger(ctxlog.Discard()),
		WithIDs(seqIDs("id")),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	)
	require.NoError(t, err)
	return s
}

// buildChart creates chart name with start -> question -> end.
func buildChart(t *testing.T, s *Service, name string) chartflow.Chart {
	t.Helper()
	ctx := context.Background()
	ch, err := s.AddChart(ctx, name)
	require.NoError(t, err)

	for _, n := range []chartflow.Node{
		{ID: name + "-start", Payload: chartflow.Start{}},
		{ID: name + "-q", Label: "Do you fly?", Payload: chartflow.YesNo{}},
		{ID: name + "-end", Payload: chartflow.End{}},
	} {
		_, err := s.AddNode(ctx, ch.ID, n)
		require.NoError(t, err)
	}
	for _, e := range []chartflow.Edge{
		{Source: name + "-start", Target: name + "-q"},
		{Source: name + "-q", Target: name + "-end", SourceHandle: "yes"},
	} {
		_, err := s.Connect(ctx, ch.ID, e)
		require.NoError(t, err)
	}

	ch, err = s.Chart(ch.ID)
	require.NoError(t, err)
	return ch
}

func TestAddChart_UniqueNamesAndActive(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()

	a, err := s.AddChart(ctx, "Intake")
	require.NoError(t, err)
	assert.Equal(t, DefaultColor, a.Color)

	_, err = s.AddChart(ctx, "Intake")
	assert.ErrorIs(t, err, chartflow.ErrDuplicateName)

	_, err = s.AddChart(ctx, "  ")
	assert.ErrorIs(t, err, ErrEmptyName)

	b, err := s.AddChart(ctx, "Travel")
	require.NoError(t, err)
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, b.ID, active.ID)
}

func TestEditor_ConnectRecompiles(t *testing.T) {
	s := openTest(t, newMemStore())
	ch := buildChart(t, s, "A")

	start, ok := ch.Node("A-start")
	require.True(t, ok)
	assert.Equal(t, chartflow.To("A-q"), start.Payload.(chartflow.Start).Next)

	q, _ := ch.Node("A-q")
	assert.Equal(t, chartflow.To("A-end"), q.Payload.(chartflow.YesNo).Yes)
	assert.False(t, q.Payload.(chartflow.YesNo).No.Resolved())
}

func TestEditor_RemoveNodeClearsReferences(t *testing.T) {
	s := openTest(t, newMemStore())
	ch := buildChart(t, s, "A")
	ctx := context.Background()

	require.NoError(t, s.RemoveNode(ctx, ch.ID, "A-q"))

	ch, err := s.Chart(ch.ID)
	require.NoError(t, err)
	assert.Len(t, ch.Nodes, 2)
	assert.Empty(t, ch.Edges)
	start, _ := ch.Node("A-start")
	assert.False(t, start.Payload.(chartflow.Start).Next.Resolved())

	assert.ErrorIs(t, s.RemoveNode(ctx, ch.ID, "nope"), chartflow.ErrNodeNotFound)
}

func TestEditor_DisconnectAndSeedDefaults(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	ch := buildChart(t, s, "A")

	mc, err := s.AddNode(ctx, ch.ID, chartflow.Node{Payload: chartflow.MultipleChoice{}})
	require.NoError(t, err)
	assert.NotEmpty(t, mc.ID)
	assert.Len(t, mc.Options(), 3, "two seeded choices plus DEFAULT")

	e, err := s.Connect(ctx, ch.ID, chartflow.Edge{Source: mc.ID, Target: "A-end"})
	require.NoError(t, err)
	ch, _ = s.Chart(ch.ID)
	n, _ := ch.Node(mc.ID)
	assert.Equal(t, chartflow.To("A-end"), n.Payload.(chartflow.MultipleChoice).Default)

	require.NoError(t, s.Disconnect(ctx, ch.ID, e.ID))
	ch, _ = s.Chart(ch.ID)
	n, _ = ch.Node(mc.ID)
	assert.False(t, n.Payload.(chartflow.MultipleChoice).Default.Resolved())

	assert.ErrorIs(t, s.Disconnect(ctx, ch.ID, e.ID), chartflow.ErrEdgeNotFound)

	_, err = s.AddNode(ctx, ch.ID, chartflow.Node{ID: "A-q", Payload: chartflow.YesNo{}})
	assert.ErrorIs(t, err, ErrNodeExists)
	_, err = s.AddNode(ctx, ch.ID, chartflow.Node{ID: "typeless"})
	assert.ErrorIs(t, err, ErrInvalidNode)
	_, err = s.AddNode(ctx, ch.ID, chartflow.Node{ID: chartflow.TerminalID, Payload: chartflow.YesNo{}})
	assert.ErrorIs(t, err, ErrInvalidNode)
	ch, _ = s.Chart(ch.ID)
	_, ok := ch.Node(chartflow.TerminalID)
	assert.False(t, ok)
}

func TestPublish_Guards(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()

	cases := []struct {
		name  string
		nodes []chartflow.Node
		want  error
	}{
		{name: "empty", want: ErrEmptyGraph},
		{
			name:  "no start",
			nodes: []chartflow.Node{{ID: "e", Payload: chartflow.End{}}},
			want:  ErrMissingStart,
		},
		{
			name:  "no end",
			nodes: []chartflow.Node{{ID: "s", Payload: chartflow.Start{}}},
			want:  ErrMissingEnd,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch, err := s.AddChart(ctx, tc.name)
			require.NoError(t, err)
			require.NoError(t, s.UpsertGraph(ctx, ch.ID, tc.nodes, nil))

			_, err = s.Publish(ctx, ch.ID, "")
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrPublishRejected)

			versions, err := s.ListVersions(ch.ID)
			require.NoError(t, err)
			assert.Empty(t, versions)
		})
	}
}

func TestPublish_MonotonicAndSurvivesRevert(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	ch := buildChart(t, s, "A")

	for i := 1; i <= 3; i++ {
		v, err := s.Publish(ctx, ch.ID, fmt.Sprintf("release %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, v.Version)
	}

	_, err := s.Revert(ctx, ch.ID, 2)
	require.NoError(t, err)

	versions, err := s.ListVersions(ch.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
	}
	assert.True(t, versions[0].Date.Before(versions[1].Date))

	v, err := s.Publish(ctx, ch.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Version)
}

func TestPublish_SnapshotIsIsolatedFromLiveEdits(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	ch := buildChart(t, s, "A")

	_, err := s.Publish(ctx, ch.ID, "")
	require.NoError(t, err)

	require.NoError(t, s.RemoveNode(ctx, ch.ID, "A-q"))

	versions, err := s.ListVersions(ch.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Len(t, versions[0].Nodes, 3)
	assert.Len(t, versions[0].Edges, 2)

	// Mutating the returned copy must not reach the store either.
	versions[0].Nodes[0].Label = "tampered"
	again, _ := s.ListVersions(ch.ID)
	assert.NotEqual(t, "tampered", again[0].Nodes[0].Label)
}

func TestPublish_DoesNotTouchOtherCharts(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	a := buildChart(t, s, "A")
	b := buildChart(t, s, "B")

	_, err := s.Publish(ctx, a.ID, "")
	require.NoError(t, err)

	after, err := s.Chart(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, after)
}

func TestRevert_RestoresGraphAndReresolvesRedirects(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	a := buildChart(t, s, "A")

	redirect, err := s.AddNode(ctx, a.ID, chartflow.Node{ID: "A-redirect", Payload: chartflow.End{
		EndType: chartflow.EndRedirect, RedirectTab: "B",
	}})
	require.NoError(t, err)
	assert.False(t, redirect.Payload.(chartflow.End).Next.Resolved(), "B does not exist yet")

	_, err = s.Publish(ctx, a.ID, "")
	require.NoError(t, err)
	require.NoError(t, s.RemoveNode(ctx, a.ID, "A-q"))

	buildChart(t, s, "B")

	reverted, err := s.Revert(ctx, a.ID, 1)
	require.NoError(t, err)
	_, ok := reverted.Node("A-q")
	assert.True(t, ok)

	n, _ := reverted.Node("A-redirect")
	assert.Equal(t, chartflow.To("B-start"), n.Payload.(chartflow.End).Next)

	_, err = s.Revert(ctx, a.ID, 9)
	assert.ErrorIs(t, err, chartflow.ErrVersionNotFound)
}

func TestRename_KeepsCompiledRedirects(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	b := buildChart(t, s, "B")
	a := buildChart(t, s, "A")
	_, err := s.AddNode(ctx, a.ID, chartflow.Node{ID: "A-redirect", Payload: chartflow.End{
		EndType: chartflow.EndRedirect, RedirectTab: "B",
	}})
	require.NoError(t, err)

	require.NoError(t, s.RenameChart(ctx, b.ID, "Bravo"))
	require.NoError(t, s.Recompile(ctx, a.ID))

	a, err = s.Chart(a.ID)
	require.NoError(t, err)
	n, _ := a.Node("A-redirect")
	end := n.Payload.(chartflow.End)
	assert.Equal(t, chartflow.To("B-start"), end.Next)
	assert.Equal(t, "Bravo", end.RedirectTab)

	assert.ErrorIs(t, s.RenameChart(ctx, a.ID, "Bravo"), chartflow.ErrDuplicateName)
}

func TestDeleteChart_SelectsFirstRemaining(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	a := buildChart(t, s, "A")
	b := buildChart(t, s, "B")

	require.NoError(t, s.DeleteChart(ctx, "B"))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, a.ID, active.ID)

	_, err := s.Chart(b.ID)
	assert.ErrorIs(t, err, chartflow.ErrChartNotFound)

	require.NoError(t, s.DeleteChart(ctx, a.ID))
	_, ok = s.Active()
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteChart(ctx, a.ID), chartflow.ErrChartNotFound)
}

func TestService_PersistsAcrossReopen(t *testing.T) {
	store := newMemStore()
	s := openTest(t, store)
	ctx := context.Background()
	ch := buildChart(t, s, "A")
	_, err := s.Publish(ctx, ch.ID, "first")
	require.NoError(t, err)
	require.NoError(t, s.SetColor(ctx, ch.ID, "#80B500"))
	require.NoError(t, s.SetOnePage(ctx, ch.ID, true))
	require.NoError(t, s.Close(ctx))

	_, err = s.AddChart(ctx, "late")
	assert.ErrorIs(t, err, ErrClosed)

	reopened := openTest(t, store)
	got, err := reopened.Chart("A")
	require.NoError(t, err)
	assert.Equal(t, "#80B500", got.Color)
	assert.True(t, got.OnePageMode)
	require.Len(t, got.PublishedVersions, 1)
	assert.Equal(t, "first", got.PublishedVersions[0].Message)

	start, _ := got.Node("A-start")
	assert.Equal(t, chartflow.To("A-q"), start.Payload.(chartflow.Start).Next)
}

func TestService_FailedSaveLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	s := openTest(t, store)
	ctx := context.Background()
	ch := buildChart(t, s, "A")

	store.failing = true
	_, err := s.Publish(ctx, ch.ID, "")
	require.Error(t, err)
	store.failing = false

	versions, err := s.ListVersions(ch.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestReplaceGraph_CompilesInOneSave(t *testing.T) {
	store := newMemStore()
	s := openTest(t, store)
	ctx := context.Background()
	ch, err := s.AddChart(ctx, "A")
	require.NoError(t, err)

	nodes := []chartflow.Node{
		{ID: "s", Payload: chartflow.Start{}},
		{ID: "q", Label: "Train?", Payload: chartflow.YesNo{}},
	}
	edges := []chartflow.Edge{{ID: "e1", Source: "s", Target: "q"}}
	require.NoError(t, s.ReplaceGraph(ctx, ch.ID, nodes, edges))

	reopened := openTest(t, store)
	got, err := reopened.Chart(ch.ID)
	require.NoError(t, err)
	start, _ := got.Node("s")
	assert.Equal(t, chartflow.To("q"), start.Payload.(chartflow.Start).Next)

	store.failing = true
	err = s.ReplaceGraph(ctx, ch.ID, nodes[:1], nil)
	require.Error(t, err)
	store.failing = false

	live, err := s.Chart(ch.ID)
	require.NoError(t, err)
	assert.Len(t, live.Nodes, 2)
	assert.Len(t, live.Edges, 1)
}

func TestVariables_LocalAndGlobal(t *testing.T) {
	s := openTest(t, newMemStore())
	ctx := context.Background()
	ch := buildChart(t, s, "A")

	require.NoError(t, s.SetVariable(ctx, "", "co2", "0.2"))
	require.NoError(t, s.SetVariable(ctx, ch.ID, "distance", "100"))
	require.NoError(t, s.SetVariable(ctx, ch.ID, "distance", "250"))
	assert.ErrorIs(t, s.SetVariable(ctx, "", "x", " "), ErrInvalidVariable)

	global, err := s.Variables("")
	require.NoError(t, err)
	assert.Equal(t, []chartflow.Variable{{Name: "co2", Value: "0.2"}}, global)

	local, err := s.Variables(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []chartflow.Variable{{Name: "distance", Value: "250"}}, local)

	require.NoError(t, s.DeleteVariable(ctx, ch.ID, "distance"))
	local, _ = s.Variables(ch.ID)
	assert.Empty(t, local)
}
