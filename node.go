package chartflow

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NodeType is the variant tag persisted as a node's "type".
type NodeType string

const (
	TypeStart          NodeType = "startNode"
	TypeYesNo          NodeType = "yesNo"
	TypeSingleChoice   NodeType = "singleChoice"
	TypeMultipleChoice NodeType = "multipleChoice"
	TypeWeight         NodeType = "weightNode"
	TypeFunction       NodeType = "functionNode"
	TypeEnd            NodeType = "endNode"
)

// DefaultLabel labels the single fallthrough option of a node.
const DefaultLabel = "DEFAULT"

// Labels of the two yesNo options. They double as edge source handles.
const (
	LabelYes = "yes"
	LabelNo  = "no"
)

// EndRedirect marks an end node that hands control to another chart.
const EndRedirect = "redirect"

// Position is the editor canvas position. It has no effect on traversal.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Option is a labeled branch of a node.
type Option struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Next  Next   `json:"nextNodeId"`
}

// Payload is the variant-specific part of a node. The concrete types in this
// package are the only implementations.
type Payload interface {
	Type() NodeType
	// Options returns the node's branches in navigation order.
	Options() []Option
	clone() Payload
}

// Start is the entry point of a chart. It links to one node.
type Start struct {
	Next Next
}

// YesNo always has exactly a "yes" and a "no" branch.
type YesNo struct {
	Yes Next
	No  Next
}

// SingleChoice branches per option. Option ids are assigned once and kept.
type SingleChoice struct {
	Choices []Option
}

// MultipleChoice records any subset of Choices and then always follows Default.
type MultipleChoice struct {
	Choices []Option
	Default Next
}

// Weight adds Weight to the running score and continues along one edge.
type Weight struct {
	Weight float64
	Next   Next
}

// Function holds an expression and its last computed result. It has no links.
type Function struct {
	Expression string
	Result     json.RawMessage
}

// End finishes the questionnaire, or redirects to another chart's start node
// when EndType is "redirect".
type End struct {
	EndType         string
	RedirectTab     string
	RedirectChartID string
	Next            Next
}

// Unknown keeps nodes of unrecognised types intact across load and save.
type Unknown struct {
	Name NodeType
	Data json.RawMessage
}

func (Start) Type() NodeType          { return TypeStart }
func (YesNo) Type() NodeType          { return TypeYesNo }
func (SingleChoice) Type() NodeType   { return TypeSingleChoice }
func (MultipleChoice) Type() NodeType { return TypeMultipleChoice }
func (Weight) Type() NodeType         { return TypeWeight }
func (Function) Type() NodeType       { return TypeFunction }
func (End) Type() NodeType            { return TypeEnd }
func (u Unknown) Type() NodeType      { return u.Name }

func (p Start) Options() []Option { return nil }

func (p YesNo) Options() []Option {
	return []Option{{Label: LabelYes, Next: p.Yes}, {Label: LabelNo, Next: p.No}}
}

func (p SingleChoice) Options() []Option { return slices.Clone(p.Choices) }

func (p MultipleChoice) Options() []Option {
	opts := make([]Option, 0, len(p.Choices)+1)
	opts = append(opts, p.Choices...)
	return append(opts, Option{Label: DefaultLabel, Next: p.Default})
}

func (p Weight) Options() []Option { return []Option{{Label: DefaultLabel, Next: p.Next}} }

func (p Function) Options() []Option { return nil }

func (p End) Options() []Option { return []Option{{Label: DefaultLabel, Next: p.Next}} }

func (p Unknown) Options() []Option { return nil }

// Redirect reports whether the end node transfers to another chart.
func (p End) Redirect() bool { return p.EndType == EndRedirect }

func (p Start) clone() Payload { return p }
func (p YesNo) clone() Payload { return p }
func (p SingleChoice) clone() Payload {
	return SingleChoice{Choices: slices.Clone(p.Choices)}
}
func (p MultipleChoice) clone() Payload {
	return MultipleChoice{Choices: slices.Clone(p.Choices), Default: p.Default}
}
func (p Weight) clone() Payload { return p }
func (p Function) clone() Payload {
	return Function{Expression: p.Expression, Result: slices.Clone(p.Result)}
}
func (p End) clone() Payload     { return p }
func (p Unknown) clone() Payload { return Unknown{Name: p.Name, Data: slices.Clone(p.Data)} }

// Node is a step in a chart.
type Node struct {
	ID       string
	Position Position
	Label    string
	// SkipRender makes the navigator pass through the node without showing it.
	SkipRender bool
	Hidden     bool
	Style      json.RawMessage
	Payload    Payload
}

// Type returns the variant tag, or "" for a node without payload.
func (n Node) Type() NodeType {
	if n.Payload == nil {
		return ""
	}
	return n.Payload.Type()
}

// Options returns the node's branches.
func (n Node) Options() []Option {
	if n.Payload == nil {
		return nil
	}
	return n.Payload.Options()
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Style = slices.Clone(n.Style)
	if n.Payload != nil {
		out.Payload = n.Payload.clone()
	}
	return out
}

// NewNode returns a node of type t seeded the way the editor drops it on the
// canvas. newID generates option ids for choice nodes.
func NewNode(id string, t NodeType, label string, newID func() string) Node {
	n := Node{ID: id, Label: label}
	if n.Label == "" && t != TypeFunction {
		n.Label = string(t) + " node"
	}
	switch t {
	case TypeStart:
		n.Payload = Start{}
	case TypeYesNo:
		n.Payload = YesNo{}
	case TypeSingleChoice:
		n.Payload = SingleChoice{Choices: seedChoices(newID)}
	case TypeMultipleChoice:
		n.Payload = MultipleChoice{Choices: seedChoices(newID)}
	case TypeWeight:
		n.Payload = Weight{Weight: 1}
	case TypeFunction:
		n.Payload = Function{}
	case TypeEnd:
		n.Payload = End{}
	default:
		n.Payload = Unknown{Name: t}
	}
	return n
}

func seedChoices(newID func() string) []Option {
	return []Option{
		{ID: newID(), Label: "Option 1", Next: Terminal()},
		{ID: newID(), Label: "Option 2", Next: Terminal()},
	}
}

type nodeWire struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

type dataWire struct {
	Label           string          `json:"label,omitempty"`
	Options         []Option        `json:"options,omitempty"`
	NextNodeID      *Next           `json:"nextNodeId,omitempty"`
	EndType         string          `json:"endType,omitempty"`
	RedirectTab     string          `json:"redirectTab,omitempty"`
	RedirectChartID string          `json:"redirectChartId,omitempty"`
	Weight          *float64        `json:"weight,omitempty"`
	Expression      *string         `json:"expression,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	SkipRender      bool            `json:"skipRender,omitempty"`
	Hidden          bool            `json:"hidden,omitempty"`
	Style           json.RawMessage `json:"style,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	w := nodeWire{ID: n.ID, Type: n.Type(), Position: n.Position}
	if u, ok := n.Payload.(Unknown); ok {
		w.Data = u.Data
		return json.Marshal(w)
	}

	d := dataWire{
		Label:      n.Label,
		SkipRender: n.SkipRender,
		Hidden:     n.Hidden,
		Style:      n.Style,
		Options:    n.Options(),
	}
	switch p := n.Payload.(type) {
	case Start:
		d.NextNodeID = &p.Next
	case Weight:
		d.Weight = &p.Weight
		d.NextNodeID = &p.Next
	case Function:
		d.Expression = &p.Expression
		d.Result = p.Result
	case End:
		d.EndType = p.EndType
		d.RedirectTab = p.RedirectTab
		d.RedirectChartID = p.RedirectChartID
		d.NextNodeID = &p.Next
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("chartflow: encode node %s: %w", n.ID, err)
	}
	w.Data = data
	return json.Marshal(w)
}

// UnmarshalJSON decodes a node and keeps only the fields its type uses, so a
// node that was re-typed in the editor sheds the old variant's data.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("chartflow: decode node: %w", err)
	}
	var d dataWire
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return fmt.Errorf("chartflow: decode node %s data: %w", w.ID, err)
		}
	}

	*n = Node{
		ID:         w.ID,
		Position:   w.Position,
		Label:      d.Label,
		SkipRender: d.SkipRender,
		Hidden:     d.Hidden,
		Style:      d.Style,
	}

	switch w.Type {
	case TypeStart:
		n.Payload = Start{Next: single(d)}
	case TypeYesNo:
		p := YesNo{}
		for _, o := range d.Options {
			switch o.Label {
			case LabelYes:
				p.Yes = o.Next
			case LabelNo:
				p.No = o.Next
			}
		}
		n.Payload = p
	case TypeSingleChoice:
		n.Payload = SingleChoice{Choices: d.Options}
	case TypeMultipleChoice:
		p := MultipleChoice{}
		for _, o := range d.Options {
			if o.Label == DefaultLabel {
				p.Default = o.Next
				continue
			}
			p.Choices = append(p.Choices, o)
		}
		n.Payload = p
	case TypeWeight:
		p := Weight{Next: single(d)}
		if d.Weight != nil {
			p.Weight = *d.Weight
		}
		n.Payload = p
	case TypeFunction:
		p := Function{Result: d.Result}
		if d.Expression != nil {
			p.Expression = *d.Expression
		}
		n.Payload = p
	case TypeEnd:
		n.Payload = End{
			EndType:         d.EndType,
			RedirectTab:     d.RedirectTab,
			RedirectChartID: d.RedirectChartID,
			Next:            single(d),
		}
	default:
		n.Payload = Unknown{Name: w.Type, Data: w.Data}
	}
	return nil
}

// single reads the one outgoing link of start, weight and end nodes.
func single(d dataWire) Next {
	if d.NextNodeID != nil {
		return *d.NextNodeID
	}
	if len(d.Options) > 0 {
		return d.Options[0].Next
	}
	return Next{}
}
