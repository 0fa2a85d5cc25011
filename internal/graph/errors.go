package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a circular dependency between components.
type CycleError struct {
	Name string
	Path []string
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	if len(e.Path) == 0 {
		b.WriteString(fmt.Sprintf("    %s\n", e.Name))
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Name))
	} else {
		for i, name := range e.Path {
			b.WriteString(fmt.Sprintf("    %s\n", name))
			if i < len(e.Path)-1 {
				b.WriteString("      ↓\n")
			}
		}
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Path[0]))
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Inject the dependency through a property binding instead of a constructor argument\n")
	b.WriteString("  • Enable AllowCircularReferences if an early reference is acceptable\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}
