package navigator

import (
	"slices"

	"github.com/meikuraledutech/chartflow"
)

// State is the traversal state of a cursor.
type State uint8

const (
	Active State = iota
	Terminal
)

func (s State) String() string {
	if s == Terminal {
		return "terminal"
	}
	return "active"
}

// Answer is what the user picked on one node.
type Answer struct {
	ChartID  string   `json:"chartId"`
	NodeID   string   `json:"nodeId"`
	Selected []string `json:"selected,omitempty"`
}

// Cursor is one user's position in a questionnaire. Cursors are values: the
// navigator returns updated copies and never changes the one it was given.
type Cursor struct {
	ChartID   string `json:"chartId"`
	ChartName string `json:"chartName"`
	// Version pins a published snapshot; 0 runs the live graph.
	Version int      `json:"version,omitempty"`
	NodeID  string   `json:"nodeId"`
	Claim   string   `json:"claim"`
	Answers []Answer `json:"answers,omitempty"`
	Score   float64  `json:"score"`
	State   State    `json:"state"`
}

// Done reports whether the questionnaire is complete.
func (c Cursor) Done() bool { return c.State == Terminal }

// Location returns the URL position of the cursor.
func (c Cursor) Location() Location {
	return Location{Chart: c.ChartName, Question: c.NodeID, Claim: c.Claim, Version: c.Version}
}

func (c Cursor) clone() Cursor {
	out := c
	out.Answers = make([]Answer, len(c.Answers))
	for i, a := range c.Answers {
		out.Answers[i] = Answer{ChartID: a.ChartID, NodeID: a.NodeID, Selected: slices.Clone(a.Selected)}
	}
	return out
}

// interactive reports whether a node is shown to the user.
func interactive(n chartflow.Node) bool {
	if n.SkipRender {
		return false
	}
	switch n.Payload.(type) {
	case chartflow.Start, chartflow.Weight, chartflow.End:
		return false
	}
	return true
}
