package reflection

import (
	"fmt"
	"reflect"
	"sync"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Analyzer performs reflection-based analysis of constructors and instances.
// Results are cached per function signature; the analysis of a constructor
// depends only on its type, so closures sharing a signature share an entry.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*signature
}

// ConstructorInfo contains analyzed information about a constructor
// function or an instance value.
type ConstructorInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Parameters     []ParameterInfo
	Returns        []ReturnInfo
	IsFunc         bool // false for instance values
	IsVariadic     bool
	HasErrorReturn bool // last return value is an error
	ServiceIndex   int  // index of the produced value in Returns, -1 if none
}

// ParameterInfo describes a constructor parameter.
type ParameterInfo struct {
	Type  reflect.Type
	Index int
}

// ReturnInfo describes a constructor return value.
type ReturnInfo struct {
	Type    reflect.Type
	Index   int
	IsError bool
}

// signature is the cached, type-derived part of a ConstructorInfo.
type signature struct {
	parameters     []ParameterInfo
	returns        []ReturnInfo
	isVariadic     bool
	hasErrorReturn bool
	serviceIndex   int
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[reflect.Type]*signature),
	}
}

// Analyze analyzes a constructor function or instance value.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if !val.IsValid() || (val.Kind() == reflect.Func && val.IsNil()) {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	typ := val.Type()

	if typ.Kind() != reflect.Func {
		return &ConstructorInfo{
			Type:         typ,
			Value:        val,
			Parameters:   []ParameterInfo{},
			Returns:      []ReturnInfo{{Type: typ}},
			ServiceIndex: 0,
		}, nil
	}

	sig, err := a.signatureOf(typ)
	if err != nil {
		return nil, err
	}

	return &ConstructorInfo{
		Type:           typ,
		Value:          val,
		Parameters:     sig.parameters,
		Returns:        sig.returns,
		IsFunc:         true,
		IsVariadic:     sig.isVariadic,
		HasErrorReturn: sig.hasErrorReturn,
		ServiceIndex:   sig.serviceIndex,
	}, nil
}

func (a *Analyzer) signatureOf(fnType reflect.Type) (*signature, error) {
	a.mu.RLock()
	if cached, ok := a.cache[fnType]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	sig := &signature{
		parameters:   make([]ParameterInfo, fnType.NumIn()),
		returns:      make([]ReturnInfo, 0, fnType.NumOut()),
		isVariadic:   fnType.IsVariadic(),
		serviceIndex: -1,
	}

	for i := range fnType.NumIn() {
		sig.parameters[i] = ParameterInfo{Type: fnType.In(i), Index: i}
	}

	for i := range fnType.NumOut() {
		retType := fnType.Out(i)

		// Only a trailing error is treated as the failure channel.
		isError := retType == errType && i == fnType.NumOut()-1
		if isError {
			sig.hasErrorReturn = true
		} else if sig.serviceIndex < 0 {
			sig.serviceIndex = i
		}

		sig.returns = append(sig.returns, ReturnInfo{
			Type:    retType,
			Index:   i,
			IsError: isError,
		})
	}

	if sig.serviceIndex < 0 {
		return nil, fmt.Errorf("constructor %v must return a value", fnType)
	}

	a.mu.Lock()
	a.cache[fnType] = sig
	a.mu.Unlock()

	return sig, nil
}

// ServiceType returns the type of the value the constructor produces.
func (info *ConstructorInfo) ServiceType() reflect.Type {
	if info.ServiceIndex < 0 || info.ServiceIndex >= len(info.Returns) {
		return nil
	}
	return info.Returns[info.ServiceIndex].Type
}

// Dependencies returns the parameter types the container has to supply when
// the first explicit parameters are given by the caller. A variadic tail is
// never resolved from the container.
func (info *ConstructorInfo) Dependencies(explicit int) []reflect.Type {
	params := info.Parameters
	if info.IsVariadic && len(params) > 0 {
		params = params[:len(params)-1]
	}

	if explicit >= len(params) {
		return nil
	}
	if explicit < 0 {
		explicit = 0
	}

	deps := make([]reflect.Type, 0, len(params)-explicit)
	for _, param := range params[explicit:] {
		deps = append(deps, param.Type)
	}
	return deps
}

// CacheSize returns the number of cached signatures.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}
