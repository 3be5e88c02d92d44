// Package hierarchy validates the meter parent/child forest.
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/septivank/submetering-worker/internal/db"
)

// MaxDepth is the deepest allowed node; roots have depth 0
const MaxDepth = 4

var (
	ErrUnknownMeter     = errors.New("unknown meter")
	ErrCyclicHierarchy  = errors.New("parent assignment would create a cycle")
	ErrMaxDepthExceeded = errors.New("meter hierarchy too deep")
)

type node struct {
	parent   int
	children []int
}

// Forest is an arena of meters indexed by id with parent indices
type Forest struct {
	index map[uuid.UUID]int
	nodes []node
}

// NewForest builds the arena from stored meters. Parents that do not exist
// are treated as absent.
func NewForest(meters []db.Meter) *Forest {
	f := &Forest{
		index: make(map[uuid.UUID]int, len(meters)),
		nodes: make([]node, 0, len(meters)),
	}
	for _, m := range meters {
		f.index[m.ID] = len(f.nodes)
		f.nodes = append(f.nodes, node{parent: -1})
	}
	for _, m := range meters {
		if m.ParentMeterID == nil {
			continue
		}
		p, ok := f.index[*m.ParentMeterID]
		if !ok {
			continue
		}
		c := f.index[m.ID]
		f.nodes[c].parent = p
		f.nodes[p].children = append(f.nodes[p].children, c)
	}
	return f
}

// Depth returns the number of ancestors of id. The walk is bounded by the
// arena size so corrupt cyclic data cannot loop forever.
func (f *Forest) Depth(id uuid.UUID) (int, error) {
	i, ok := f.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMeter, id)
	}
	depth := 0
	for p := f.nodes[i].parent; p >= 0; p = f.nodes[p].parent {
		depth++
		if depth > len(f.nodes) {
			return 0, fmt.Errorf("%w: meter %s", ErrCyclicHierarchy, id)
		}
	}
	return depth, nil
}

// Height returns the length of the longest downward path below id
func (f *Forest) Height(id uuid.UUID) (int, error) {
	i, ok := f.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMeter, id)
	}
	return f.height(i, 0), nil
}

func (f *Forest) height(i, guard int) int {
	if guard > len(f.nodes) {
		return guard
	}
	h := 0
	for _, c := range f.nodes[i].children {
		if ch := f.height(c, guard+1) + 1; ch > h {
			h = ch
		}
	}
	return h
}

// ValidateParent checks that giving child the parent keeps the forest acyclic
// and no deeper than MaxDepth. A nil parent always succeeds for a known child.
func (f *Forest) ValidateParent(child uuid.UUID, parent *uuid.UUID) error {
	c, ok := f.index[child]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMeter, child)
	}
	if parent == nil {
		return nil
	}
	p, ok := f.index[*parent]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrUnknownMeter, *parent)
	}

	// Walk up from the new parent; meeting the child means a cycle.
	depth := 0
	for a := p; a >= 0; a = f.nodes[a].parent {
		if a == c {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCyclicHierarchy, child, *parent)
		}
		depth++
		if depth > MaxDepth+1 {
			break
		}
	}

	height := f.height(c, 0)
	if depth+height > MaxDepth {
		return fmt.Errorf("%w: %s would reach depth %d (max %d)", ErrMaxDepthExceeded, child, depth+height, MaxDepth)
	}
	return nil
}

// Reparent records an accepted assignment in the arena
func (f *Forest) Reparent(child uuid.UUID, parent *uuid.UUID) error {
	if err := f.ValidateParent(child, parent); err != nil {
		return err
	}
	c := f.index[child]
	if old := f.nodes[c].parent; old >= 0 {
		kids := f.nodes[old].children
		for k, v := range kids {
			if v == c {
				f.nodes[old].children = append(kids[:k], kids[k+1:]...)
				break
			}
		}
	}
	f.nodes[c].parent = -1
	if parent != nil {
		p := f.index[*parent]
		f.nodes[c].parent = p
		f.nodes[p].children = append(f.nodes[p].children, c)
	}
	return nil
}
