package vessel

import (
	"github.com/vesselframework/vessel/internal/reflection"
)

// In marks a struct as a parameter object: a constructor taking a single
// struct that embeds In receives each exported field autowired instead of
// being treated as one opaque dependency.
//
//	type ServerParams struct {
//	    vessel.In
//
//	    Store  Store
//	    Logger *slog.Logger `optional:"true"`
//	    Cache  Cache        `name:"sessionCache"`
//	}
//
// Field tags: `optional:"true"` turns a miss into the zero value,
// `name:"..."` pins the field to a specific component, `inject:"-"` skips
// the field entirely. Structs embedding dig.In are honored the same way.
type In = reflection.In

// Out marks a constructor's return struct as a result object. The struct
// itself is the component; embedding Out documents intent and keeps
// constructors sharing code with dig-based wiring portable.
type Out = reflection.Out
