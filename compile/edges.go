package compile

import "github.com/meikuraledutech/chartflow"

// graph indexes a chart for edge lookups. Edges whose target is not a node of
// the chart are ignored, so deleted nodes never surface as destinations.
type graph struct {
	nodes map[string]struct{}
	edges []chartflow.Edge
}

// match selects edges by source handle.
type match func(h string) bool

func anyHandle(string) bool { return true }

func handle(want string) match {
	return func(h string) bool { return h == want }
}

// from returns the target of the first edge leaving source that satisfies m.
func (g graph) from(source string, m match) chartflow.Next {
	for _, e := range g.edges {
		if e.Source != source || !m(e.SourceHandle) {
			continue
		}
		if _, ok := g.nodes[e.Target]; !ok {
			continue
		}
		return chartflow.To(e.Target)
	}
	return chartflow.Next{}
}
