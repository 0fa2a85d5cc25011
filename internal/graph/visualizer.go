package graph

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// Visualizer renders the dependency graph for diagnostics.
type Visualizer struct {
	graph *Graph
}

// NewVisualizer creates a visualizer over g.
func NewVisualizer(g *Graph) *Visualizer {
	return &Visualizer{graph: g}
}

// WriteDOT writes the graph in Graphviz DOT format.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	if _, err := fmt.Fprintln(w, "digraph components {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box];")

	names := make([]string, 0, len(v.graph.nodes))
	for name := range v.graph.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]string, len(names))
	for i, name := range names {
		id := fmt.Sprintf("n%d", i)
		ids[name] = id

		node := v.graph.nodes[name]
		fmt.Fprintf(w, "  %s [label=%q, fillcolor=%q, style=filled];\n",
			id, name, nodeFill(node))
	}

	for _, from := range names {
		tos := append([]string(nil), v.graph.edges[from]...)
		sort.Strings(tos)
		for _, to := range tos {
			if toID, ok := ids[to]; ok {
				fmt.Fprintf(w, "  %s -> %s;\n", ids[from], toID)
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteText writes an indented text rendering grouped by dependency depth.
// Colors are applied when w is a terminal; color.NoColor disables them.
func (v *Visualizer) WriteText(w io.Writer) error {
	sorted, err := v.graph.TopologicalSort()
	if err != nil {
		fmt.Fprintf(w, "warning: graph contains cycles: %v\n", err)
		sorted = nil
		v.graph.mu.RLock()
		for name := range v.graph.nodes {
			sorted = append(sorted, name)
		}
		v.graph.mu.RUnlock()
		sort.Strings(sorted)
	}

	v.graph.CalculateDepths()

	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	header := color.New(color.Bold)
	rootStyle := color.New(color.FgGreen)
	leafStyle := color.New(color.FgCyan)

	header.Fprintln(w, "Component dependency graph")
	fmt.Fprintln(w, "==========================")
	fmt.Fprintln(w)

	depths := make(map[int][]string)
	maxDepth := 0
	for _, name := range sorted {
		node := v.graph.nodes[name]
		if node == nil {
			continue
		}
		depths[node.Depth] = append(depths[node.Depth], name)
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}

	for depth := 0; depth <= maxDepth; depth++ {
		names := depths[depth]
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)

		fmt.Fprintf(w, "Level %d:\n", depth)
		for _, name := range names {
			node := v.graph.nodes[name]
			label := name
			switch {
			case node.InDegree == 0:
				label = rootStyle.Sprint(name)
			case node.OutDegree == 0:
				label = leafStyle.Sprint(name)
			}

			fmt.Fprintf(w, "  %s", label)
			if len(node.Dependencies) > 0 {
				deps := append([]string(nil), node.Dependencies...)
				sort.Strings(deps)
				fmt.Fprintf(w, " -> %v", deps)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func nodeFill(node *Node) string {
	switch {
	case node.InDegree == 0 && node.OutDegree == 0:
		return "lightgray"
	case node.InDegree == 0:
		return "lightgreen"
	case node.OutDegree == 0:
		return "lightblue"
	default:
		return "white"
	}
}
