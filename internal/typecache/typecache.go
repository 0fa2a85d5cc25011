// Package typecache caches reflection metadata about Go types so the
// container does not repeat reflect walks for every resolution.
package typecache

import (
	"reflect"
	"strings"
	"sync"
)

// cache is the process-wide type info store. Entries are immutable once
// published, so a sync.Map without further locking is sufficient.
var cache sync.Map // map[reflect.Type]*TypeInfo

// TypeInfo holds pre-computed reflection information about a type.
type TypeInfo struct {
	Type    reflect.Type
	Kind    reflect.Kind
	PkgPath string
	Name    string
	String  string

	IsInterface bool
	IsPointer   bool
	IsSlice     bool
	IsStruct    bool
	IsFunc      bool
	IsPrimitive bool
	CanBeNil    bool

	// ElementType is set for pointer, slice, array, chan and map types.
	ElementType reflect.Type
	KeyType     reflect.Type

	// Function metadata.
	NumIn          int
	NumOut         int
	IsVariadic     bool
	InTypes        []reflect.Type
	OutTypes       []reflect.Type
	HasErrorReturn bool

	// Struct metadata.
	NumFields   int
	Fields      []*FieldInfo
	HasInField  bool // embeds a recognised In marker
	HasOutField bool // embeds a recognised Out marker
}

// FieldInfo describes one struct field together with its parsed wiring tags.
type FieldInfo struct {
	Index       int
	Name        string
	Type        reflect.Type
	Tag         reflect.StructTag
	IsExported  bool
	IsAnonymous bool
	Optional    bool   // optional:"true"
	NameTag     string // name:"..."
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Get returns cached type information, computing and storing it on first use.
func Get(t reflect.Type) *TypeInfo {
	if t == nil {
		return nil
	}

	if cached, ok := cache.Load(t); ok {
		return cached.(*TypeInfo)
	}

	info := newTypeInfo(t)
	actual, _ := cache.LoadOrStore(t, info)
	return actual.(*TypeInfo)
}

// Clear drops every cached entry. Intended for tests.
func Clear() {
	cache.Range(func(key, _ any) bool {
		cache.Delete(key)
		return true
	})
}

func newTypeInfo(t reflect.Type) *TypeInfo {
	info := &TypeInfo{
		Type:    t,
		Kind:    t.Kind(),
		PkgPath: t.PkgPath(),
		Name:    t.Name(),
		String:  t.String(),
	}

	info.IsInterface = info.Kind == reflect.Interface
	info.IsPointer = info.Kind == reflect.Pointer
	info.IsSlice = info.Kind == reflect.Slice
	info.IsStruct = info.Kind == reflect.Struct
	info.IsFunc = info.Kind == reflect.Func

	switch info.Kind {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128, reflect.String:
		info.IsPrimitive = true
	}

	switch info.Kind {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		info.CanBeNil = true
	}

	switch info.Kind {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan:
		info.ElementType = t.Elem()
	case reflect.Map:
		info.ElementType = t.Elem()
		info.KeyType = t.Key()
	}

	if info.IsFunc {
		info.NumIn = t.NumIn()
		info.NumOut = t.NumOut()
		info.IsVariadic = t.IsVariadic()

		info.InTypes = make([]reflect.Type, info.NumIn)
		for i := 0; i < info.NumIn; i++ {
			info.InTypes[i] = t.In(i)
		}

		info.OutTypes = make([]reflect.Type, info.NumOut)
		for i := 0; i < info.NumOut; i++ {
			info.OutTypes[i] = t.Out(i)
		}

		if info.NumOut > 0 {
			info.HasErrorReturn = info.OutTypes[info.NumOut-1].Implements(errType)
		}
	}

	if info.IsStruct {
		info.NumFields = t.NumField()
		info.Fields = make([]*FieldInfo, 0, info.NumFields)

		for i := 0; i < info.NumFields; i++ {
			field := t.Field(i)
			fi := &FieldInfo{
				Index:       i,
				Name:        field.Name,
				Type:        field.Type,
				Tag:         field.Tag,
				IsExported:  field.IsExported(),
				IsAnonymous: field.Anonymous,
			}

			if field.Tag.Get("optional") == "true" {
				fi.Optional = true
			}
			if name := field.Tag.Get("name"); name != "" {
				fi.NameTag = name
			}

			if field.Anonymous && field.Type != nil {
				if IsInMarker(field.Type) {
					info.HasInField = true
				}
				if IsOutMarker(field.Type) {
					info.HasOutField = true
				}
			}

			info.Fields = append(info.Fields, fi)
		}
	}

	return info
}

// IsInMarker reports whether t is a parameter-object marker. Both vessel's
// own reflection.In and dig.In are accepted so constructors written against
// dig keep working unchanged.
func IsInMarker(t reflect.Type) bool {
	return isMarker(t, "In")
}

// IsOutMarker reports whether t is a result-object marker (reflection.Out
// or dig.Out).
func IsOutMarker(t reflect.Type) bool {
	return isMarker(t, "Out")
}

func isMarker(t reflect.Type, name string) bool {
	if t == nil || t.Name() != name {
		return false
	}

	pkg := t.PkgPath()
	return strings.HasSuffix(pkg, "/internal/reflection") || strings.HasSuffix(pkg, "dig")
}

// FormatType renders a type the way error messages show it: short package
// segment plus name for named types, Go syntax for composites.
func FormatType(t reflect.Type) string {
	return formatTypeDepth(t, 0)
}

func formatTypeDepth(t reflect.Type, depth int) string {
	const maxDepth = 50

	if t == nil {
		return "<nil>"
	}
	if depth > maxDepth {
		return t.String()
	}

	switch t.Kind() {
	case reflect.Invalid:
		return "<invalid>"
	case reflect.Pointer:
		return "*" + formatTypeDepth(t.Elem(), depth+1)
	case reflect.Slice:
		return "[]" + formatTypeDepth(t.Elem(), depth+1)
	case reflect.Array:
		return t.String()
	case reflect.Map:
		return "map[" + formatTypeDepth(t.Key(), depth+1) + "]" + formatTypeDepth(t.Elem(), depth+1)
	case reflect.Func:
		return t.String()
	default:
		if t.PkgPath() == "" || t.Name() == "" {
			return t.String()
		}
		return lastSegment(t.PkgPath()) + "." + t.Name()
	}
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}

	return path
}
