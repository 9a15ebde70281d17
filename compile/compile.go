// Package compile resolves a chart's edges into per-option destinations.
//
// The compiler is tolerant: graphs are edited incrementally and are often
// transiently invalid, so unresolved references degrade to an unresolved or
// terminal destination instead of failing. It never mutates its inputs.
package compile

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/meikuraledutech/chartflow"
)

// Reason classifies a soft resolution failure.
type Reason string

const (
	RedirectTargetMissing Reason = "redirect_target_missing"
	RedirectStartMissing  Reason = "redirect_start_missing"
)

// Problem describes a branch that stays unresolved after compilation.
type Problem struct {
	NodeID   string
	Reason   Reason
	Redirect string
}

// Compiler turns (nodes, edges, all charts) into resolved nodes.
type Compiler struct {
	logger    *slog.Logger
	newID     func() string
	onProblem func(Problem)
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithIDs overrides the generator used for missing option ids.
func WithIDs(newID func() string) Option {
	return func(c *Compiler) { c.newID = newID }
}

// WithProblemHook is called once per soft failure, after it is logged.
func WithProblemHook(fn func(Problem)) Option {
	return func(c *Compiler) { c.onProblem = fn }
}

// New returns a Compiler. A nil logger means slog.Default.
func New(logger *slog.Logger, opts ...Option) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compiler{logger: logger, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile resolves nodes against edges with a default Compiler.
func Compile(nodes []chartflow.Node, edges []chartflow.Edge, charts []chartflow.Chart) []chartflow.Node {
	return New(nil).Compile(nodes, edges, charts)
}

// Compile returns a copy of nodes in which every option destination reflects
// the current edges. charts is the whole collection and is used to resolve
// redirect end nodes. When several edges match the same branch the first one
// in edges wins.
func (c *Compiler) Compile(nodes []chartflow.Node, edges []chartflow.Edge, charts []chartflow.Chart) []chartflow.Node {
	g := graph{nodes: make(map[string]struct{}, len(nodes)), edges: edges}
	for _, n := range nodes {
		g.nodes[n.ID] = struct{}{}
	}

	out := make([]chartflow.Node, len(nodes))
	for i, n := range nodes {
		out[i] = c.node(n.Clone(), g, charts)
	}
	return out
}

func (c *Compiler) node(n chartflow.Node, g graph, charts []chartflow.Chart) chartflow.Node {
	switch p := n.Payload.(type) {
	case chartflow.Start:
		p.Next = g.from(n.ID, anyHandle)
		n.Payload = p

	case chartflow.YesNo:
		p.Yes = g.from(n.ID, handle(chartflow.LabelYes))
		p.No = g.from(n.ID, handle(chartflow.LabelNo))
		n.Payload = p

	case chartflow.SingleChoice:
		for i := range p.Choices {
			opt := &p.Choices[i]
			if opt.ID == "" {
				opt.ID = c.newID()
			}
			opt.Next = g.from(n.ID, handle(chartflow.ChoiceHandle(n.ID, opt.ID)))
		}
		n.Payload = p

	case chartflow.MultipleChoice:
		choices := p.Choices[:0]
		for _, opt := range p.Choices {
			if opt.Label == chartflow.DefaultLabel {
				continue
			}
			if opt.ID == "" {
				opt.ID = c.newID()
			}
			opt.Next = chartflow.Terminal()
			choices = append(choices, opt)
		}
		p.Choices = choices
		p.Default = g.from(n.ID, anyHandle)
		n.Payload = p

	case chartflow.Weight:
		p.Next = g.from(n.ID, anyHandle)
		n.Payload = p

	case chartflow.End:
		if p.Redirect() {
			p = c.redirect(n.ID, p, charts)
		} else {
			p.Next = g.from(n.ID, anyHandle)
			if !p.Next.Resolved() {
				p.Next = chartflow.Terminal()
			}
		}
		n.Payload = p

	case chartflow.Function, chartflow.Unknown, nil:
		// No links.
	}
	return n
}

// redirect points an end node at the start node of the chart it names.
// The stable chart id wins over the display name so renames keep working.
func (c *Compiler) redirect(nodeID string, p chartflow.End, charts []chartflow.Chart) chartflow.End {
	p.Next = chartflow.Next{}

	target, ok := findChart(charts, p.RedirectChartID, p.RedirectTab)
	if !ok {
		c.problem(Problem{NodeID: nodeID, Reason: RedirectTargetMissing, Redirect: p.RedirectTab},
			"target chart not found")
		return p
	}
	p.RedirectChartID = target.ID
	p.RedirectTab = target.Name

	start, ok := target.StartNode()
	if !ok {
		c.problem(Problem{NodeID: nodeID, Reason: RedirectStartMissing, Redirect: target.Name},
			"start node not found in chart")
		return p
	}
	p.Next = chartflow.To(start.ID)
	return p
}

func (c *Compiler) problem(p Problem, msg string) {
	c.logger.Warn(msg, "node", p.NodeID, "redirect", p.Redirect, "reason", string(p.Reason))
	if c.onProblem != nil {
		c.onProblem(p)
	}
}

func findChart(charts []chartflow.Chart, id, name string) (chartflow.Chart, bool) {
	if id != "" {
		for _, ch := range charts {
			if ch.ID == id {
				return ch, true
			}
		}
	}
	if name != "" {
		for _, ch := range charts {
			if ch.Name == name {
				return ch, true
			}
		}
	}
	return chartflow.Chart{}, false
}
