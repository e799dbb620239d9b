package stack

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator joins construct ids into a path.
const PathSeparator = "/"

var (
	// ErrInvalidID is returned for empty construct ids or ids containing "/".
	ErrInvalidID = errors.New("invalid construct id")

	// ErrDuplicateID is returned when a scope already has a child with the id.
	ErrDuplicateID = errors.New("duplicate construct id")
)

// Scope is anything constructs can be attached to.
type Scope interface {
	Node() *Node
}

// Node is a position in the construct tree.
type Node struct {
	id       string
	parent   *Node
	children map[string]*Node
	order    []string
	stack    *Stack
	app      *App
}

func newRoot(app *App) *Node {
	return &Node{app: app, children: make(map[string]*Node)}
}

func (n *Node) addChild(id string) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id must not be empty (scope %q)", ErrInvalidID, n.Path())
	}
	if strings.Contains(id, PathSeparator) {
		return nil, fmt.Errorf("%w: %q must not contain %q", ErrInvalidID, id, PathSeparator)
	}
	if _, ok := n.children[id]; ok {
		return nil, fmt.Errorf("%w: %q already exists in scope %q", ErrDuplicateID, id, n.Path())
	}
	child := &Node{
		id:       id,
		parent:   n,
		children: make(map[string]*Node),
		stack:    n.stack,
		app:      n.app,
	}
	n.children[id] = child
	n.order = append(n.order, id)
	return child, nil
}

// ID returns the node's id within its parent.
func (n *Node) ID() string { return n.id }

// Path returns the ids from the app root down to this node joined by "/".
func (n *Node) Path() string {
	return strings.Join(n.components(nil), PathSeparator)
}

// components returns the ids below until (or the app root) down to n.
func (n *Node) components(until *Node) []string {
	var ids []string
	for cur := n; cur != nil && cur != until && cur.parent != nil; cur = cur.parent {
		ids = append(ids, cur.id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Stack returns the stack containing the node, or nil for the app root.
func (n *Node) Stack() *Stack { return n.stack }

// App returns the app the node belongs to.
func (n *Node) App() *App { return n.app }

// Parent returns the enclosing node, or nil for the app root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children in creation order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.children[id])
	}
	return out
}

// TryFindChild returns the child with the given id, or nil.
func (n *Node) TryFindChild(id string) *Node {
	return n.children[id]
}

// Construct is a plain tree node that groups other constructs.
type Construct struct {
	node *Node
}

// NewConstruct attaches a new construct to scope.
func NewConstruct(scope Scope, id string) (*Construct, error) {
	node, err := scope.Node().addChild(id)
	if err != nil {
		return nil, err
	}
	return &Construct{node: node}, nil
}

// Node returns the construct's tree node.
func (c *Construct) Node() *Node { return c.node }
