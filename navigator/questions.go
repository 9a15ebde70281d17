package navigator

import (
	"slices"

	"github.com/meikuraledutech/chartflow"
)

// Question is a node reachable from a chart's start, in enumeration order.
type Question struct {
	ChartID     string             `json:"chartId"`
	ChartName   string             `json:"chartName"`
	NodeID      string             `json:"id"`
	Type        chartflow.NodeType `json:"type"`
	Label       string             `json:"question"`
	Options     []chartflow.Option `json:"options,omitempty"`
	SkipRender  bool               `json:"skipRender,omitempty"`
	EndType     string             `json:"endType,omitempty"`
	RedirectTab string             `json:"redirectTab,omitempty"`
	PreviousIDs []string           `json:"previousQuestionIds"`

	redirectID string
}

// Choices returns the options a user can pick, without the DEFAULT fallthrough.
func (q Question) Choices() []chartflow.Option {
	out := make([]chartflow.Option, 0, len(q.Options))
	for _, o := range q.Options {
		if o.Label != chartflow.DefaultLabel {
			out = append(out, o)
		}
	}
	return out
}

// links returns the destinations a node can move to within its own chart.
// A redirect end points at another chart's start node and has none.
func links(n chartflow.Node) []chartflow.Next {
	switch p := n.Payload.(type) {
	case chartflow.Start:
		return []chartflow.Next{p.Next}
	case chartflow.End:
		if p.Redirect() {
			return nil
		}
	}
	opts := n.Options()
	out := make([]chartflow.Next, len(opts))
	for i, o := range opts {
		out[i] = o.Next
	}
	return out
}

// Questions enumerates the nodes of ch reachable from its start nodes,
// breadth first in option order. Without a start node the first node is the
// root. Cycles and unreachable nodes are tolerated.
func Questions(ch chartflow.Chart) []Question {
	var roots []string
	for _, n := range ch.Nodes {
		if n.Type() == chartflow.TypeStart {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) == 0 && len(ch.Nodes) > 0 {
		roots = []string{ch.Nodes[0].ID}
	}

	byID := make(map[string]chartflow.Node, len(ch.Nodes))
	for _, n := range ch.Nodes {
		byID[n.ID] = n
	}

	index := make(map[string]int)
	var out []Question
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := index[id]; seen {
			continue
		}
		n, ok := byID[id]
		if !ok {
			continue
		}
		index[id] = len(out)
		out = append(out, newQuestion(ch, n))
		for _, next := range links(n) {
			if target := next.NodeID(); target != "" {
				queue = append(queue, target)
			}
		}
	}

	for _, q := range out {
		for _, next := range links(byID[q.NodeID]) {
			if i, ok := index[next.NodeID()]; ok {
				out[i].PreviousIDs = appendUnique(out[i].PreviousIDs, q.NodeID)
			}
		}
	}
	return out
}

// AllQuestions enumerates every chart and links redirect end nodes to the
// start node they hand over to.
func AllQuestions(charts []chartflow.Chart) []Question {
	type key struct{ chart, node string }
	var out []Question
	index := make(map[key]int)
	for _, ch := range charts {
		for _, q := range Questions(ch) {
			index[key{ch.ID, q.NodeID}] = len(out)
			out = append(out, q)
		}
	}

	col := &chartflow.Collection{Charts: charts}
	for _, q := range out {
		if q.Type != chartflow.TypeEnd || q.EndType != chartflow.EndRedirect || len(q.Options) == 0 {
			continue
		}
		target, ok := redirectTarget(col, q.redirectID, q.RedirectTab)
		if !ok {
			continue
		}
		if i, ok := index[key{target.ID, q.Options[0].Next.NodeID()}]; ok {
			out[i].PreviousIDs = appendUnique(out[i].PreviousIDs, q.NodeID)
		}
	}
	return out
}

func newQuestion(ch chartflow.Chart, n chartflow.Node) Question {
	q := Question{
		ChartID:     ch.ID,
		ChartName:   ch.Name,
		NodeID:      n.ID,
		Type:        n.Type(),
		Label:       n.Label,
		Options:     n.Options(),
		SkipRender:  n.SkipRender,
		PreviousIDs: []string{},
	}
	if p, ok := n.Payload.(chartflow.End); ok {
		q.EndType = p.EndType
		q.RedirectTab = p.RedirectTab
		q.redirectID = p.RedirectChartID
	}
	return q
}

// redirectTarget finds a redirect's chart by stable id, then by name.
func redirectTarget(src Source, id, name string) (chartflow.Chart, bool) {
	for _, ref := range []string{id, name} {
		if ref == "" {
			continue
		}
		if ch, err := src.Chart(ref); err == nil {
			return ch, true
		}
	}
	return chartflow.Chart{}, false
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
