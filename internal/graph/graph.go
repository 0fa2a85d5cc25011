// Package graph maintains the dependency relationships between named
// components. It provides cycle detection, topological ordering and a
// visualizer used for container diagnostics.
package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the adjacency structure over component names. Edges point from a
// component to the components it depends on.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string][]string

	sorted      []string
	sortedDirty bool
}

// Node is one component in the graph.
type Node struct {
	Name string

	InDegree  int // number of components depending on this one
	OutDegree int // number of dependencies
	Depth     int

	Dependencies []string
	Dependents   []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[string]*Node),
		edges:       make(map[string][]string),
		sortedDirty: true,
	}
}

// Add registers a component and its direct dependencies. Dependency nodes
// that have not been added yet are created implicitly. Adding a component
// whose edges close a cycle fails with a CycleError and leaves the graph
// unchanged.
func (g *Graph) Add(name string, dependencies []string) error {
	if name == "" {
		return fmt.Errorf("component name cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prevEdges, hadEdges := g.edges[name]
	_, hadNode := g.nodes[name]

	if !hadNode {
		g.nodes[name] = &Node{Name: name}
	}

	deps := make([]string, len(dependencies))
	copy(deps, dependencies)
	g.edges[name] = deps

	if path := g.findCycleFrom(name); path != nil {
		// Roll back only what this call introduced: the node may predate
		// the call as another component's implicit dependency.
		if hadEdges {
			g.edges[name] = prevEdges
		} else {
			delete(g.edges, name)
		}
		if !hadNode {
			delete(g.nodes, name)
		}
		g.recompute()
		return &CycleError{Name: name, Path: path}
	}

	for _, dep := range deps {
		if _, ok := g.nodes[dep]; !ok {
			g.nodes[dep] = &Node{Name: dep}
		}
	}

	g.recompute()
	g.sortedDirty = true
	return nil
}

// Remove deletes a component and every edge touching it.
func (g *Graph) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[name]; !ok {
		return
	}

	delete(g.nodes, name)
	delete(g.edges, name)

	for from, tos := range g.edges {
		filtered := tos[:0]
		for _, to := range tos {
			if to != name {
				filtered = append(filtered, to)
			}
		}
		g.edges[from] = filtered
	}

	g.recompute()
	g.sortedDirty = true
}

// recompute rebuilds degrees and adjacency lists. Caller holds the lock.
func (g *Graph) recompute() {
	for _, node := range g.nodes {
		node.InDegree = 0
		node.OutDegree = 0
		node.Dependencies = nil
		node.Dependents = nil
	}

	for from, tos := range g.edges {
		fromNode, ok := g.nodes[from]
		if !ok {
			continue
		}

		fromNode.OutDegree = len(tos)
		fromNode.Dependencies = append(fromNode.Dependencies, tos...)

		for _, to := range tos {
			if toNode, ok := g.nodes[to]; ok {
				toNode.InDegree++
				toNode.Dependents = append(toNode.Dependents, from)
			}
		}
	}
}

// TopologicalSort returns component names in dependency order: every
// component appears after all of its dependencies. The result is cached
// until the graph changes.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.sortedDirty && g.sorted != nil {
		out := make([]string, len(g.sorted))
		copy(out, g.sorted)
		return out, nil
	}

	// Kahn's algorithm over out-edges: start from components with no
	// dependencies and peel layer by layer.
	remaining := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		remaining[name] = node.OutDegree
	}

	queue := make([]string, 0, len(g.nodes))
	for name, deg := range remaining {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue) // deterministic order for ties

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		next := make([]string, 0)
		for _, dependent := range g.nodes[current].Dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected: %d of %d components could not be ordered",
			len(g.nodes)-len(result), len(g.nodes))
	}

	g.sorted = result
	g.sortedDirty = false

	out := make([]string, len(result))
	copy(out, result)
	return out, nil
}

// DetectCycles checks every component for participation in a cycle.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool, len(g.nodes))
	for name := range g.nodes {
		if visited[name] {
			continue
		}
		if path := g.findCycleFromMarking(name, visited); path != nil {
			return &CycleError{Name: path[0], Path: path}
		}
	}

	return nil
}

// findCycleFrom runs DFS from start and returns the cycle path if one is
// reachable. Caller holds the lock.
func (g *Graph) findCycleFrom(start string) []string {
	return g.findCycleFromMarking(start, make(map[string]bool))
}

func (g *Graph) findCycleFromMarking(start string, visited map[string]bool) []string {
	onStack := make(map[string]bool)
	var stack []string

	var walk func(name string) []string
	walk = func(name string) []string {
		if onStack[name] {
			// Trim the path down to the cycle itself.
			for i, n := range stack {
				if n == name {
					cycle := make([]string, len(stack)-i)
					copy(cycle, stack[i:])
					return cycle
				}
			}
			return []string{name}
		}
		if visited[name] {
			return nil
		}

		visited[name] = true
		onStack[name] = true
		stack = append(stack, name)

		for _, dep := range g.edges[name] {
			if path := walk(dep); path != nil {
				return path
			}
		}

		onStack[name] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	return walk(start)
}

// Dependencies returns the direct dependencies of a component.
func (g *Graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[name]
	if !ok {
		return nil
	}

	out := make([]string, len(node.Dependencies))
	copy(out, node.Dependencies)
	return out
}

// Dependents returns the components that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[name]
	if !ok {
		return nil
	}

	out := make([]string, len(node.Dependents))
	copy(out, node.Dependents)
	return out
}

// TransitiveDependencies returns all direct and indirect dependencies.
func (g *Graph) TransitiveDependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{name: true}
	var result []string

	var collect func(current string)
	collect = func(current string) {
		for _, dep := range g.edges[current] {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				collect(dep)
			}
		}
	}

	collect(name)
	return result
}

// Has reports whether a component is present.
func (g *Graph) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[name]
	return ok
}

// Node returns the node for a component, or nil.
func (g *Graph) Node(name string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes[name]
}

// Size returns the number of components in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// Roots returns components nothing depends on.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for name, node := range g.nodes {
		if node.InDegree == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns components with no dependencies.
func (g *Graph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var leaves []string
	for name, node := range g.nodes {
		if node.OutDegree == 0 {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// CalculateDepths assigns each node its distance from the dependency leaves.
func (g *Graph) CalculateDepths() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range g.nodes {
		node.Depth = 0
	}

	queue := make([]*Node, 0)
	for _, node := range g.nodes {
		if node.OutDegree == 0 {
			queue = append(queue, node)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, name := range current.Dependents {
			dep, ok := g.nodes[name]
			if !ok {
				continue
			}
			if newDepth := current.Depth + 1; dep.Depth < newDepth {
				dep.Depth = newDepth
				queue = append(queue, dep)
			}
		}
	}
}

// Clear removes every node and edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*Node)
	g.edges = make(map[string][]string)
	g.sorted = nil
	g.sortedDirty = true
}
