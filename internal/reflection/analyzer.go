// Package reflection analyzes constructor functions: their parameters,
// parameter objects, return values and result objects. Analysis results are
// cached per function so repeated registrations stay cheap.
package reflection

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"

	"github.com/vesselframework/vessel/internal/typecache"
)

// In marks a struct as a parameter object. Embed it in a struct used as the
// sole constructor parameter to have each exported field injected
// individually. dig.In is accepted interchangeably.
type In struct{}

// Out marks a struct as a result object: each exported field of a returned
// Out struct is registered as its own component. dig.Out is accepted
// interchangeably.
type Out struct{}

var (
	inType     = reflect.TypeOf((*In)(nil)).Elem()
	outType    = reflect.TypeOf((*Out)(nil)).Elem()
	digInType  = reflect.TypeOf((*dig.In)(nil)).Elem()
	digOutType = reflect.TypeOf((*dig.Out)(nil)).Elem()
	errType    = reflect.TypeOf((*error)(nil)).Elem()
)

// Analyzer performs reflection-based analysis of constructors.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor function
// or a pre-built instance.
type ConstructorInfo struct {
	Type  reflect.Type
	Value reflect.Value

	Parameters []ParameterInfo
	Returns    []ReturnInfo

	IsFunc         bool
	InstanceValue  any
	IsParamObject  bool // single In-struct parameter
	IsResultObject bool // first return embeds Out
	HasErrorReturn bool
}

// ParameterInfo describes a constructor parameter or a field of an In struct.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string // field name for In structs
	Index    int
	Optional bool   // optional:"true" tag
	RefName  string // name:"..." tag, wires to a specific component
}

// ReturnInfo describes a return value or a field of an Out struct.
type ReturnInfo struct {
	Type    reflect.Type
	Name    string // field name for Out structs, component name via name:"..."
	Index   int
	IsError bool
}

// New creates an Analyzer with an empty cache.
func New() *Analyzer {
	return &Analyzer{cache: make(map[uintptr]*ConstructorInfo)}
}

// Analyze inspects a constructor and extracts parameter and return metadata.
// Non-function values are treated as pre-built instances.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if !val.IsValid() || (val.Kind() == reflect.Func && val.IsNil()) {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	typ := val.Type()

	var cacheKey uintptr
	if typ.Kind() == reflect.Func {
		cacheKey = val.Pointer()

		a.mu.RLock()
		if cached, ok := a.cache[cacheKey]; ok {
			a.mu.RUnlock()
			return cached, nil
		}
		a.mu.RUnlock()
	}

	info := &ConstructorInfo{Type: typ, Value: val}

	if typ.Kind() != reflect.Func {
		info.InstanceValue = constructor
		return info, nil
	}

	info.IsFunc = true

	if err := a.analyzeParameters(info); err != nil {
		return nil, fmt.Errorf("failed to analyze parameters: %w", err)
	}

	if err := a.analyzeReturns(info); err != nil {
		return nil, fmt.Errorf("failed to analyze returns: %w", err)
	}

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

func (a *Analyzer) analyzeParameters(info *ConstructorInfo) error {
	fnType := info.Type

	if fnType.NumIn() == 1 && hasEmbeddedMarker(fnType.In(0), inType, digInType) {
		info.IsParamObject = true
		return a.analyzeParamObject(info, fnType.In(0))
	}

	info.Parameters = make([]ParameterInfo, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		info.Parameters[i] = ParameterInfo{
			Type:  fnType.In(i),
			Index: i,
		}
	}

	return nil
}

func (a *Analyzer) analyzeParamObject(info *ConstructorInfo, structType reflect.Type) error {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("In parameter must be a struct, got %v", structType.Kind())
	}

	tInfo := typecache.Get(structType)
	params := make([]ParameterInfo, 0, len(tInfo.Fields))

	for _, field := range tInfo.Fields {
		if !field.IsExported {
			continue
		}
		if field.IsAnonymous && (typecache.IsInMarker(field.Type) || typecache.IsOutMarker(field.Type)) {
			continue
		}
		if field.Tag.Get("inject") == "-" {
			continue
		}

		params = append(params, ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Index:    field.Index,
			Optional: field.Optional,
			RefName:  field.NameTag,
		})
	}

	info.Parameters = params
	return nil
}

func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type
	if fnType.NumOut() == 0 {
		return nil
	}

	if hasEmbeddedMarker(fnType.Out(0), outType, digOutType) {
		info.IsResultObject = true
		return a.analyzeResultObject(info, fnType.Out(0))
	}

	info.Returns = make([]ReturnInfo, 0, fnType.NumOut())
	for i := 0; i < fnType.NumOut(); i++ {
		retType := fnType.Out(i)
		isError := retType.Implements(errType) && i == fnType.NumOut()-1

		if isError {
			info.HasErrorReturn = true
		}

		info.Returns = append(info.Returns, ReturnInfo{
			Type:    retType,
			Index:   i,
			IsError: isError,
		})
	}

	return nil
}

func (a *Analyzer) analyzeResultObject(info *ConstructorInfo, structType reflect.Type) error {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("Out result must be a struct, got %v", structType.Kind())
	}

	tInfo := typecache.Get(structType)
	returns := make([]ReturnInfo, 0, len(tInfo.Fields))

	for _, field := range tInfo.Fields {
		if !field.IsExported {
			continue
		}
		if field.IsAnonymous && (typecache.IsInMarker(field.Type) || typecache.IsOutMarker(field.Type)) {
			continue
		}

		name := field.Name
		if field.NameTag != "" {
			name = field.NameTag
		}

		returns = append(returns, ReturnInfo{
			Type:  field.Type,
			Name:  name,
			Index: field.Index,
		})
	}

	info.Returns = returns

	if info.Type.NumOut() == 2 && info.Type.Out(1).Implements(errType) {
		info.HasErrorReturn = true
	}

	return nil
}

// ComponentType determines the primary type produced by a constructor.
func (a *Analyzer) ComponentType(constructor any) (reflect.Type, error) {
	info, err := a.Analyze(constructor)
	if err != nil {
		return nil, err
	}

	if !info.IsFunc {
		return info.Type, nil
	}

	if info.IsResultObject {
		return info.Type.Out(0), nil
	}

	for _, ret := range info.Returns {
		if !ret.IsError {
			return ret.Type, nil
		}
	}

	return nil, fmt.Errorf("constructor has no usable return values")
}

// Clear drops the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.cache = make(map[uintptr]*ConstructorInfo)
	a.mu.Unlock()
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

func hasEmbeddedMarker(t reflect.Type, markers ...reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.Anonymous {
			continue
		}
		for _, marker := range markers {
			if field.Type == marker {
				return true
			}
		}
	}

	return false
}
