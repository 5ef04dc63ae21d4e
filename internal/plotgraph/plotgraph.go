// Package plotgraph builds the dependency-adjacency view over a Plot
// (spec.md §3.4) and implements the two validation passes and the
// ready-set traversal used by internal/plotexec. It mirrors the
// teacher's internal/deps package in spirit — a small, standalone graph
// type built once from a larger document and walked with Kahn's
// algorithm — generalized from issue-dependency edges to step-pipe
// edges.
package plotgraph

import (
	"fmt"
	"strings"

	"github.com/warpsys/warpforge/internal/plot"
)

// PlotGraph is the parent/child adjacency view of a Plot (spec.md §3.4).
// It is built once per plot invocation; Next/traversal helpers mutate a
// copy of the parent sets, never the graph's own.
type PlotGraph struct {
	nodes     map[string]plot.Step
	nodeKeys  []string // insertion order, for deterministic iteration
	parents   map[string][]string
	children  map[string][]string
	childKeys []string // first-insertion order of children's keys
}

// Build constructs a PlotGraph from p: one node per step, one edge per
// non-empty-step_name Pipe input (spec.md §4.1). Edges are stored in
// both parents and children for O(1) lookups in either direction.
func Build(p *plot.Plot) *PlotGraph {
	g := &PlotGraph{
		nodes:    make(map[string]plot.Step),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
	if p.Steps == nil {
		return g
	}

	p.Steps.Range(func(name string, step plot.Step) bool {
		g.nodes[name] = step
		g.nodeKeys = append(g.nodeKeys, name)
		if _, ok := g.parents[name]; !ok {
			g.parents[name] = nil
		}
		return true
	})

	p.Steps.Range(func(name string, step plot.Step) bool {
		if step.Protoformula == nil || step.Protoformula.Inputs == nil {
			return true
		}
		step.Protoformula.Inputs.Range(func(_ string, in plot.StepInput) bool {
			if in.Pipe == nil || in.Pipe.StepName == "" {
				return true
			}
			parentName := in.Pipe.StepName
			g.addEdge(parentName, name)
			return true
		})
		return true
	})

	return g
}

func (g *PlotGraph) addEdge(parent, child string) {
	if !containsString(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	if _, ok := g.children[parent]; !ok {
		g.children[parent] = nil
		g.childKeys = append(g.childKeys, parent)
	}
	if !containsString(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// ValidateDependenciesExist checks that every step name appearing as a
// key of children — i.e. every step any Pipe references as a parent —
// names a real node (spec.md §4.1). childKeys already holds children's
// keys in the order addEdge first saw them, so it is iterated directly
// rather than reconstructed from a map range, which Go randomizes per
// run (spec.md §5: "must not iterate hash-keyed structures where
// ordering is user-visible"). The referencing steps in the error are
// joined in the insertion order they induced the edge.
func (g *PlotGraph) ValidateDependenciesExist() error {
	for _, parent := range g.childKeys {
		if _, ok := g.nodes[parent]; ok {
			continue
		}
		referencing := g.children[parent]
		quoted := make([]string, len(referencing))
		for i, r := range referencing {
			quoted[i] = "'" + r + "'"
		}
		return fmt.Errorf("invalid plot: step(s) %s reference(s) unknown step '%s'", strings.Join(quoted, ", "), parent)
	}
	return nil
}

// ValidateNoCycles runs Kahn's algorithm over a clone of parents and
// reports any remaining steps as a cycle (spec.md §4.1). The report
// lists steps in the insertion order of nodeKeys.
func (g *PlotGraph) ValidateNoCycles() error {
	parents := g.cloneParents()
	noParents := make([]string, 0, len(g.nodeKeys))
	for _, name := range g.nodeKeys {
		if len(parents[name]) == 0 {
			noParents = append(noParents, name)
		}
	}

	order := make([]string, 0, len(g.nodeKeys))
	for len(noParents) > 0 {
		name := noParents[len(noParents)-1]
		noParents = noParents[:len(noParents)-1]
		order = append(order, name)
		delete(parents, name)

		for _, child := range g.children[name] {
			remaining := parents[child]
			remaining = removeString(remaining, name)
			if len(remaining) == 0 {
				delete(parents, child)
				noParents = append(noParents, child)
			} else {
				parents[child] = remaining
			}
		}
	}

	if len(order) == len(g.nodeKeys) {
		return nil
	}

	var cyclic []string
	for _, name := range g.nodeKeys {
		if _, stillWaiting := parents[name]; stillWaiting {
			cyclic = append(cyclic, name)
		}
	}
	quoted := make([]string, len(cyclic))
	for i, name := range cyclic {
		quoted[i] = "'" + name + "'"
	}
	return fmt.Errorf("invalid plot: the step(s) %s contain(s) cycle(s)", strings.Join(quoted, ", "))
}

func (g *PlotGraph) cloneParents() map[string][]string {
	clone := make(map[string][]string, len(g.parents))
	for name, ps := range g.parents {
		cp := make([]string, len(ps))
		copy(cp, ps)
		clone[name] = cp
	}
	return clone
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, x := range ss {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

// Traversal drives a consuming walk of the graph in Kahn order, exposing
// a ready-set (LIFO) to the caller between each pop and its
// child-relaxation step, so a side effect (running the step) can be
// injected at exactly that point (spec.md §4.1's "Ready-set iteration
// (used by executor)"). It owns its own copy of the parent sets; the
// PlotGraph itself is never mutated.
//
// A single-threaded walk is all this module offers: spec.md explicitly
// leaves room for a future parallel traversal (independent ready steps
// could run concurrently, since steps are pure functions of their
// gathered inputs), but internal/plotexec only ever calls Next
// sequentially.
type Traversal struct {
	g       *PlotGraph
	parents map[string][]string
	ready   []string // LIFO stack
}

// NewTraversal starts a fresh traversal over g.
func NewTraversal(g *PlotGraph) *Traversal {
	t := &Traversal{g: g, parents: g.cloneParents()}
	for _, name := range g.nodeKeys {
		if len(t.parents[name]) == 0 {
			t.ready = append(t.ready, name)
		}
	}
	return t
}

// Next pops the next ready step name in LIFO order, or ok=false if the
// traversal is complete. Callers must invoke Advance(name) after
// executing the step's side effect to relax its children.
func (t *Traversal) Next() (name string, ok bool) {
	if len(t.ready) == 0 {
		return "", false
	}
	name = t.ready[len(t.ready)-1]
	t.ready = t.ready[:len(t.ready)-1]
	return name, true
}

// Advance relaxes name's children: any child whose remaining parent set
// becomes empty joins the ready stack. Must be called exactly once per
// Next, after the step's side effect has run.
func (t *Traversal) Advance(name string) {
	delete(t.parents, name)
	for _, child := range t.g.children[name] {
		remaining := removeString(t.parents[child], name)
		if len(remaining) == 0 {
			delete(t.parents, child)
			t.ready = append(t.ready, child)
		} else {
			t.parents[child] = remaining
		}
	}
}

// Done reports whether every node has been popped.
func (t *Traversal) Done() bool {
	return len(t.ready) == 0 && len(t.parents) == 0
}

// Step looks up the Step value for a node name.
func (g *PlotGraph) Step(name string) (plot.Step, bool) {
	s, ok := g.nodes[name]
	return s, ok
}

// NodeNames returns step names in insertion order.
func (g *PlotGraph) NodeNames() []string {
	return g.nodeKeys
}
