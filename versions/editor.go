package versions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/meikuraledutech/chartflow"
)

var (
	ErrInvalidNode = errors.New("versions: invalid node")
	ErrNodeExists  = errors.New("versions: node already exists")
)

// AddNode appends a node to a chart and recompiles it. A node without id gets
// one; choice nodes without options get the two editor defaults. The terminal
// id "-1" cannot name a node.
func (s *Service) AddNode(ctx context.Context, ref string, node chartflow.Node) (chartflow.Node, error) {
	node = node.Clone()
	if node.ID == "" {
		node.ID = s.newID()
	}
	if node.Payload == nil || node.Type() == "" {
		return chartflow.Node{}, fmt.Errorf("%w: node %s has no type", ErrInvalidNode, node.ID)
	}
	if node.ID == chartflow.TerminalID {
		return chartflow.Node{}, fmt.Errorf("%w: id %q is reserved for the end of the questionnaire", ErrInvalidNode, node.ID)
	}
	switch p := node.Payload.(type) {
	case chartflow.SingleChoice:
		if len(p.Choices) == 0 {
			node.Payload = chartflow.NewNode(node.ID, p.Type(), node.Label, s.newID).Payload
		}
	case chartflow.MultipleChoice:
		if len(p.Choices) == 0 {
			node.Payload = chartflow.NewNode(node.ID, p.Type(), node.Label, s.newID).Payload
		}
	}

	var added chartflow.Node
	err := s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		if _, exists := ch.Node(node.ID); exists {
			return fmt.Errorf("%w: %s in %q", ErrNodeExists, node.ID, ch.Name)
		}
		ch.Nodes = append(ch.Nodes, node)
		s.compile(col, ch)
		added, _ = ch.Node(node.ID)
		return nil
	})
	if err != nil {
		return chartflow.Node{}, err
	}
	s.logger.Debug("node added", "chart", ref, "node", added.ID, "type", string(added.Type()))
	return added.Clone(), nil
}

// RemoveNode deletes a node and every edge touching it, then recompiles.
func (s *Service) RemoveNode(ctx context.Context, ref, nodeID string) error {
	return s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		i := slices.IndexFunc(ch.Nodes, func(n chartflow.Node) bool { return n.ID == nodeID })
		if i < 0 {
			return fmt.Errorf("%w: %s", chartflow.ErrNodeNotFound, nodeID)
		}
		ch.Nodes = slices.Delete(ch.Nodes, i, i+1)
		ch.Edges = slices.DeleteFunc(ch.Edges, func(e chartflow.Edge) bool {
			return e.Source == nodeID || e.Target == nodeID
		})
		s.compile(col, ch)
		return nil
	})
}

// Connect adds an edge and recompiles the chart.
func (s *Service) Connect(ctx context.Context, ref string, edge chartflow.Edge) (chartflow.Edge, error) {
	if edge.ID == "" {
		edge.ID = s.newID()
	}
	err := s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		ch.Edges = append(ch.Edges, edge)
		s.compile(col, ch)
		return nil
	})
	if err != nil {
		return chartflow.Edge{}, err
	}
	return edge, nil
}

// Disconnect removes an edge and recompiles the chart.
func (s *Service) Disconnect(ctx context.Context, ref, edgeID string) error {
	return s.withChart(ctx, ref, func(col *chartflow.Collection, ch *chartflow.Chart) error {
		i := slices.IndexFunc(ch.Edges, func(e chartflow.Edge) bool { return e.ID == edgeID })
		if i < 0 {
			return fmt.Errorf("%w: %s", chartflow.ErrEdgeNotFound, edgeID)
		}
		ch.Edges = slices.Delete(ch.Edges, i, i+1)
		s.compile(col, ch)
		return nil
	})
}
