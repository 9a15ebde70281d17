package chartflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TerminalID is the persisted form of a terminal destination.
const TerminalID = "-1"

// NextKind classifies where an option leads.
type NextKind uint8

const (
	// NextUnresolved means no destination is known (dangling or unconnected).
	NextUnresolved NextKind = iota
	// NextNode points at a node id.
	NextNode
	// NextTerminal ends the questionnaire.
	NextTerminal
)

// Next is the resolved destination of an option.
// On the wire it is null, the literal "-1", or a node id.
type Next struct {
	kind NextKind
	id   string
}

// To returns a destination pointing at nodeID. An empty id is unresolved and
// the sentinel "-1" is terminal, so persisted values round-trip.
func To(nodeID string) Next {
	switch nodeID {
	case "":
		return Next{}
	case TerminalID:
		return Terminal()
	}
	return Next{kind: NextNode, id: nodeID}
}

// Terminal returns the terminal destination.
func Terminal() Next { return Next{kind: NextTerminal} }

// Kind reports the destination class.
func (n Next) Kind() NextKind { return n.kind }

// NodeID returns the target node id, or "" unless Kind is NextNode.
func (n Next) NodeID() string {
	if n.kind != NextNode {
		return ""
	}
	return n.id
}

// Resolved reports whether the destination is a node or terminal.
func (n Next) Resolved() bool { return n.kind != NextUnresolved }

func (n Next) String() string {
	switch n.kind {
	case NextNode:
		return n.id
	case NextTerminal:
		return TerminalID
	}
	return "<unresolved>"
}

func (n Next) MarshalJSON() ([]byte, error) {
	switch n.kind {
	case NextNode:
		return json.Marshal(n.id)
	case NextTerminal:
		return json.Marshal(TerminalID)
	}
	return []byte("null"), nil
}

func (n *Next) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*n = Next{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Older editors stored numeric timestamps as ids.
		var num json.Number
		if err2 := json.Unmarshal(b, &num); err2 != nil {
			return fmt.Errorf("chartflow: decode nextNodeId: %w", err)
		}
		s = num.String()
	}
	*n = To(s)
	return nil
}
