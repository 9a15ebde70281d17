package chartflow

import (
	"fmt"
	"slices"
	"time"
)

// Edge is a directed connection between two nodes of the same chart.
// SourceHandle selects which option of a multi-option source it belongs to.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Type         string `json:"type,omitempty"`
}

// ChoiceHandle is the source handle of a singleChoice option's edge.
func ChoiceHandle(nodeID, optionID string) string {
	return fmt.Sprintf("SCN-%s-%s-next", nodeID, optionID)
}

// Variable is a named value configured in the editor.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Version is an immutable snapshot of a chart's resolved graph.
type Version struct {
	Version int       `json:"version"`
	Date    time.Time `json:"date"`
	Message string    `json:"message,omitempty"`
	Nodes   []Node    `json:"nodes"`
	Edges   []Edge    `json:"edges"`
}

// Chart is one named questionnaire graph.
// ID is stable for the chart's lifetime; Name may change.
type Chart struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Nodes             []Node     `json:"nodes"`
	Edges             []Edge     `json:"edges"`
	OnePageMode       bool       `json:"onePageMode"`
	Color             string     `json:"color"`
	PublishedVersions []Version  `json:"publishedVersions"`
	Variables         []Variable `json:"variables,omitempty"`
}

// Node returns the node with the given id.
func (c Chart) Node(id string) (Node, bool) {
	i := slices.IndexFunc(c.Nodes, func(n Node) bool { return n.ID == id })
	if i < 0 {
		return Node{}, false
	}
	return c.Nodes[i], true
}

// StartNode returns the first startNode of the chart.
func (c Chart) StartNode() (Node, bool) {
	i := slices.IndexFunc(c.Nodes, func(n Node) bool { return n.Type() == TypeStart })
	if i < 0 {
		return Node{}, false
	}
	return c.Nodes[i], true
}

// Has reports whether the chart contains a node of type t.
func (c Chart) Has(t NodeType) bool {
	return slices.ContainsFunc(c.Nodes, func(n Node) bool { return n.Type() == t })
}

// Version returns the published snapshot numbered v.
func (c Chart) Version(v int) (Version, bool) {
	i := slices.IndexFunc(c.PublishedVersions, func(x Version) bool { return x.Version == v })
	if i < 0 {
		return Version{}, false
	}
	return c.PublishedVersions[i], true
}

// AtVersion returns a copy of the chart whose graph is snapshot v.
func (c Chart) AtVersion(v int) (Chart, bool) {
	ver, ok := c.Version(v)
	if !ok {
		return Chart{}, false
	}
	out := c.Clone()
	out.Nodes = CloneNodes(ver.Nodes)
	out.Edges = slices.Clone(ver.Edges)
	return out, true
}

// Clone returns a deep copy of the chart.
func (c Chart) Clone() Chart {
	out := c
	out.Nodes = CloneNodes(c.Nodes)
	out.Edges = slices.Clone(c.Edges)
	out.Variables = slices.Clone(c.Variables)
	out.PublishedVersions = make([]Version, len(c.PublishedVersions))
	for i, v := range c.PublishedVersions {
		out.PublishedVersions[i] = v.Clone()
	}
	return out
}

// Clone returns a deep copy of the version.
func (v Version) Clone() Version {
	out := v
	out.Nodes = CloneNodes(v.Nodes)
	out.Edges = slices.Clone(v.Edges)
	return out
}

// CloneNodes deep-copies a node slice. A nil input stays nil.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Collection is everything persisted for one editing context.
type Collection struct {
	Charts    []Chart    `json:"chartInstances"`
	Active    string     `json:"currentTab"`
	Variables []Variable `json:"globalVariables,omitempty"`
}

// Chart finds a chart by id, then by name.
func (c *Collection) Chart(ref string) (Chart, error) {
	i := c.Index(ref)
	if i < 0 {
		return Chart{}, fmt.Errorf("%w: %q", ErrChartNotFound, ref)
	}
	return c.Charts[i], nil
}

// ListCharts returns the charts in collection order.
func (c *Collection) ListCharts() []Chart { return c.Charts }

// Index returns the position of the chart with id or name ref, or -1.
func (c *Collection) Index(ref string) int {
	if i := slices.IndexFunc(c.Charts, func(ch Chart) bool { return ch.ID == ref }); i >= 0 {
		return i
	}
	return slices.IndexFunc(c.Charts, func(ch Chart) bool { return ch.Name == ref })
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Active:    c.Active,
		Variables: slices.Clone(c.Variables),
		Charts:    make([]Chart, len(c.Charts)),
	}
	for i, ch := range c.Charts {
		out.Charts[i] = ch.Clone()
	}
	return out
}
