// Package navigator walks an end user through a compiled chart.
//
// A cursor is always settled: after every transition the navigator passes
// through start, weight and end nodes (and nodes marked skipRender) until it
// reaches a node the user must answer or the questionnaire is complete.
// Redirect end nodes move the cursor into another chart. Failures never
// destroy a session; a refused step returns the cursor unchanged.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/meikuraledutech/chartflow/metrics"
)

var (
	ErrNoNextStep      = errors.New("navigator: no reachable next step")
	ErrTerminal        = errors.New("navigator: questionnaire is complete")
	ErrAutoAdvanceLoop = errors.New("navigator: auto-advance loop")
	ErrNoCharts        = errors.New("navigator: no chart to start from")
	ErrUnknownChoice   = errors.New("navigator: selection matches no option")
)

// Source is read access to the chart collection.
type Source interface {
	Chart(ref string) (chartflow.Chart, error)
	ListCharts() []chartflow.Chart
}

// Navigator computes transitions over charts read from a Source.
type Navigator struct {
	src     Source
	metrics *metrics.Metrics
}

// Option configures a Navigator.
type Option func(*Navigator)

func WithMetrics(m *metrics.Metrics) Option { return func(n *Navigator) { n.metrics = m } }

// New returns a Navigator reading from src.
func New(src Source, opts ...Option) *Navigator {
	n := &Navigator{src: src}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Resumed is the result of resuming from a location.
type Resumed struct {
	Cursor Cursor
	// Corrected is set when the requested chart, version or question did
	// not resolve and a fallback was used.
	Corrected bool
}

// Start begins a questionnaire at the first question of chart ref.
func (n *Navigator) Start(ctx context.Context, ref, claim string) (Cursor, error) {
	r, err := n.Resume(ctx, Location{Chart: ref, Claim: claim})
	return r.Cursor, err
}

// Resume places a cursor at loc. An unknown chart falls back to the first
// chart with a start node, an unknown version to the live graph, and a
// question that is not reachable to the chart's first question.
func (n *Navigator) Resume(ctx context.Context, loc Location) (Resumed, error) {
	log := ctxlog.FromContext(ctx)
	res := Resumed{}

	ch, err := n.src.Chart(loc.Chart)
	if err != nil {
		fallback, ok := n.fallbackChart()
		if !ok {
			return res, fmt.Errorf("%w: %q", ErrNoCharts, loc.Chart)
		}
		log.Warn("chart not found, using fallback", "chart", loc.Chart, "fallback", fallback.Name)
		ch, res.Corrected = fallback, true
	}

	cur := Cursor{ChartID: ch.ID, ChartName: ch.Name, Claim: loc.Claim}
	graph := ch
	if loc.Version > 0 {
		if pinned, ok := ch.AtVersion(loc.Version); ok {
			graph, cur.Version = pinned, loc.Version
		} else {
			log.Warn("version not found, using live graph", "chart", ch.Name, "version", loc.Version)
			res.Corrected = true
		}
	}

	questions := Questions(graph)
	if len(questions) == 0 {
		return res, fmt.Errorf("%w: chart %q is empty", ErrNoNextStep, ch.Name)
	}
	cur.NodeID = loc.Question
	if !slices.ContainsFunc(questions, func(q Question) bool { return q.NodeID == loc.Question }) {
		if loc.Question != "" {
			log.Warn("question not found, redirecting to first question",
				"chart", ch.Name, "question", loc.Question)
		}
		cur.NodeID = questions[0].NodeID
		res.Corrected = res.Corrected || loc.Question != ""
	}

	res.Cursor = cur
	settled, err := n.settle(ctx, cur)
	if err != nil {
		n.metrics.Step("dead_end")
		return res, err
	}
	res.Cursor = settled
	n.metrics.Step(outcome(settled))
	return res, nil
}

// Answer records the user's selection on the current node and moves on.
// For yesNo and singleChoice nodes the first selected option (by id or label)
// picks the branch; an empty selection takes the first option and one that
// matches nothing is refused. multipleChoice nodes always follow their
// DEFAULT branch. On error cur is returned unchanged.
func (n *Navigator) Answer(ctx context.Context, cur Cursor, selected ...string) (Cursor, error) {
	if cur.Done() {
		return cur, ErrTerminal
	}
	ch, err := n.graph(cur)
	if err != nil {
		return cur, err
	}
	node, ok := ch.Node(cur.NodeID)
	if !ok {
		return cur, fmt.Errorf("%w: node %s not in %q", ErrNoNextStep, cur.NodeID, ch.Name)
	}

	next, ok := choose(node, selected)
	if !ok {
		return cur, fmt.Errorf("%w: %q on node %s in %q", ErrUnknownChoice, selected[0], node.ID, ch.Name)
	}
	if !next.Resolved() {
		n.metrics.Step("dead_end")
		ctxlog.FromContext(ctx).Warn("no reachable next step", "chart", ch.Name, "node", node.ID)
		return cur, fmt.Errorf("%w: node %s in %q", ErrNoNextStep, node.ID, ch.Name)
	}

	out := cur.clone()
	out.Answers = append(out.Answers, Answer{ChartID: cur.ChartID, NodeID: node.ID, Selected: slices.Clone(selected)})
	if next.Kind() == chartflow.NextTerminal {
		out.State = Terminal
		n.metrics.Step(outcome(out))
		return out, nil
	}

	out.NodeID = next.NodeID()
	out, err = n.settle(ctx, out)
	if err != nil {
		n.metrics.Step("dead_end")
		return cur, err
	}
	n.metrics.Step(outcome(out))
	return out, nil
}

// Current describes the node the cursor is waiting on.
func (n *Navigator) Current(cur Cursor) (Question, error) {
	ch, err := n.graph(cur)
	if err != nil {
		return Question{}, err
	}
	node, ok := ch.Node(cur.NodeID)
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", chartflow.ErrNodeNotFound, cur.NodeID)
	}
	return newQuestion(ch, node), nil
}

// Questions enumerates the reachable questions of one chart's live graph.
func (n *Navigator) Questions(ref string) ([]Question, error) {
	ch, err := n.src.Chart(ref)
	if err != nil {
		return nil, err
	}
	return Questions(ch), nil
}

// AllQuestions enumerates every chart.
func (n *Navigator) AllQuestions() []Question {
	return AllQuestions(n.src.ListCharts())
}

// settle auto-advances cur until it rests on an interactive node or ends.
func (n *Navigator) settle(ctx context.Context, cur Cursor) (Cursor, error) {
	log := ctxlog.FromContext(ctx)
	seen := make(map[[2]string]struct{})
	for {
		ch, err := n.graph(cur)
		if err != nil {
			return cur, err
		}
		node, ok := ch.Node(cur.NodeID)
		if !ok {
			return cur, fmt.Errorf("%w: node %s not in %q", ErrNoNextStep, cur.NodeID, ch.Name)
		}
		if interactive(node) {
			return cur, nil
		}

		k := [2]string{cur.ChartID, node.ID}
		if _, loop := seen[k]; loop {
			return cur, fmt.Errorf("%w: at node %s in %q", ErrAutoAdvanceLoop, node.ID, ch.Name)
		}
		seen[k] = struct{}{}

		if p, ok := node.Payload.(chartflow.End); ok && p.Redirect() {
			target, found := redirectTarget(n.src, p.RedirectChartID, p.RedirectTab)
			if !found || p.Next.Kind() != chartflow.NextNode {
				log.Warn("redirect does not resolve", "chart", ch.Name, "node", node.ID, "redirect", p.RedirectTab)
				return cur, fmt.Errorf("%w: redirect %s in %q", ErrNoNextStep, node.ID, ch.Name)
			}
			log.Debug("following redirect", "from", ch.Name, "to", target.Name)
			cur.ChartID, cur.ChartName, cur.Version = target.ID, target.Name, 0
			cur.NodeID = p.Next.NodeID()
			continue
		}

		if p, ok := node.Payload.(chartflow.Weight); ok {
			cur.Score += p.Weight
		}
		next := forward(node)
		switch next.Kind() {
		case chartflow.NextTerminal:
			cur.State = Terminal
			return cur, nil
		case chartflow.NextUnresolved:
			log.Warn("no reachable next step", "chart", ch.Name, "node", node.ID)
			return cur, fmt.Errorf("%w: node %s in %q", ErrNoNextStep, node.ID, ch.Name)
		}
		log.Debug("skipping node", "chart", ch.Name, "node", node.ID, "type", string(node.Type()))
		cur.NodeID = next.NodeID()
	}
}

// graph returns the chart the cursor runs on, pinned to its version if set.
func (n *Navigator) graph(cur Cursor) (chartflow.Chart, error) {
	ref := cur.ChartID
	if ref == "" {
		ref = cur.ChartName
	}
	ch, err := n.src.Chart(ref)
	if err != nil {
		return chartflow.Chart{}, err
	}
	if cur.Version == 0 {
		return ch, nil
	}
	pinned, ok := ch.AtVersion(cur.Version)
	if !ok {
		return chartflow.Chart{}, fmt.Errorf("%w: %q version %d", chartflow.ErrVersionNotFound, ch.Name, cur.Version)
	}
	return pinned, nil
}

func (n *Navigator) fallbackChart() (chartflow.Chart, bool) {
	charts := n.src.ListCharts()
	for _, ch := range charts {
		if ch.Has(chartflow.TypeStart) {
			return ch, true
		}
	}
	if len(charts) > 0 {
		return charts[0], true
	}
	return chartflow.Chart{}, false
}

// forward is the branch taken without a user choice.
func forward(node chartflow.Node) chartflow.Next {
	switch p := node.Payload.(type) {
	case chartflow.Start:
		return p.Next
	case chartflow.MultipleChoice:
		return p.Default
	}
	if opts := node.Options(); len(opts) > 0 {
		return opts[0].Next
	}
	return chartflow.Next{}
}

// choose picks the branch for selected. It reports false when an explicit
// yesNo or singleChoice selection names no option.
func choose(node chartflow.Node, selected []string) (chartflow.Next, bool) {
	switch node.Payload.(type) {
	case chartflow.YesNo, chartflow.SingleChoice:
		if len(selected) > 0 && selected[0] != "" {
			for _, o := range node.Options() {
				if o.Label == selected[0] || (o.ID != "" && o.ID == selected[0]) {
					return o.Next, true
				}
			}
			return chartflow.Next{}, false
		}
	}
	return forward(node), true
}

func outcome(cur Cursor) string {
	if cur.Done() {
		return "terminal"
	}
	return "question"
}
