package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Kind identifies how a handler is invoked.
type Kind int

const (
	// KindFunc handlers are called directly with the job's params.
	KindFunc Kind = iota + 1
	// KindStructured handlers are constructors: the params build a
	// core.ShouldQueue whose Handle method is then invoked.
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

var (
	contextType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	shouldQueueType = reflect.TypeOf((*core.ShouldQueue)(nil)).Elem()
)

// Handler holds metadata about a registered job handler.
type Handler struct {
	Kind       Kind
	Fn         reflect.Value
	ArgTypes   []reflect.Type
	HasContext bool
	Variadic   bool

	valueOut int // index of the value result, -1 if none
	errOut   int // index of the error result, -1 if none
}

// NewHandler creates a Handler from a function.
//
// Accepted shapes, with an optional leading context.Context argument:
//
//	func(a A, b B, ...)                 // plain
//	func(a A, b B, ...) error
//	func(a A, b B, ...) (R, error)
//	func(a A, b B, ...) R
//	func(a A, b B, ...) (S, error)      // structured when S implements core.ShouldQueue
func NewHandler(fn any) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)

	// Check for typed nil (e.g., var fn func() = nil)
	if !fnVal.IsValid() || (fnVal.Kind() == reflect.Func && fnVal.IsNil()) {
		return nil, fmt.Errorf("handler function cannot be nil")
	}

	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function")
	}

	h := &Handler{
		Kind:     KindFunc,
		Fn:       fnVal,
		Variadic: fnType.IsVariadic(),
		valueOut: -1,
		errOut:   -1,
	}

	start := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		h.HasContext = true
		start = 1
	}
	for i := start; i < fnType.NumIn(); i++ {
		h.ArgTypes = append(h.ArgTypes, fnType.In(i))
	}

	switch fnType.NumOut() {
	case 0:
	case 1:
		if fnType.Out(0) == errorType {
			h.errOut = 0
		} else {
			h.valueOut = 0
		}
	case 2:
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("handler must return (T, error)")
		}
		h.valueOut = 0
		h.errOut = 1
	default:
		return nil, fmt.Errorf("handler must return at most (T, error)")
	}

	if h.valueOut >= 0 && fnType.Out(h.valueOut).Implements(shouldQueueType) {
		h.Kind = KindStructured
	}

	return h, nil
}

// Arity returns the number of params the handler expects, not counting the
// context argument. For variadic handlers it is the minimum.
func (h *Handler) Arity() int {
	if h.Variadic {
		return len(h.ArgTypes) - 1
	}
	return len(h.ArgTypes)
}

// Execute decodes params positionally and runs the handler. Structured
// handlers are constructed first and their Handle result is returned.
// Panics are recovered and returned as *core.PanicError.
func (h *Handler) Execute(ctx context.Context, params core.Params) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &core.PanicError{Value: r}
		}
	}()

	// Defensive check: ensure handler function is valid
	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return nil, fmt.Errorf("handler function is nil or invalid")
	}

	args, err := h.decodeArgs(ctx, params)
	if err != nil {
		return nil, err
	}

	results := h.Fn.Call(args)

	if h.errOut >= 0 && !results[h.errOut].IsNil() {
		return nil, results[h.errOut].Interface().(error)
	}

	var value any
	if h.valueOut >= 0 {
		value = results[h.valueOut].Interface()
	}

	if h.Kind != KindStructured {
		return value, nil
	}

	task, ok := value.(core.ShouldQueue)
	if !ok || task == nil || isNilPointer(results[h.valueOut]) {
		return nil, fmt.Errorf("%w: constructor returned nil", core.ErrInvalidHandler)
	}
	return task.Handle(ctx)
}

func (h *Handler) decodeArgs(ctx context.Context, params core.Params) ([]reflect.Value, error) {
	if h.Variadic {
		if len(params) < h.Arity() {
			return nil, fmt.Errorf("%w: expected at least %d params, got %d", core.ErrInvalidParams, h.Arity(), len(params))
		}
	} else if len(params) != h.Arity() {
		return nil, fmt.Errorf("%w: expected %d params, got %d", core.ErrInvalidParams, h.Arity(), len(params))
	}

	args := make([]reflect.Value, 0, len(params)+1)
	if h.HasContext {
		args = append(args, reflect.ValueOf(ctx))
	}

	for i, raw := range params {
		argType := h.argType(i)
		argVal := reflect.New(argType)
		if err := json.Unmarshal(raw, argVal.Interface()); err != nil {
			return nil, fmt.Errorf("%w: param %d: %v", core.ErrInvalidParams, i, err)
		}
		args = append(args, argVal.Elem())
	}
	return args, nil
}

// argType returns the target type for param i, expanding the variadic tail.
func (h *Handler) argType(i int) reflect.Type {
	if h.Variadic && i >= len(h.ArgTypes)-1 {
		return h.ArgTypes[len(h.ArgTypes)-1].Elem()
	}
	return h.ArgTypes[i]
}

func isNilPointer(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
