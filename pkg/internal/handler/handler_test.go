package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// ---------------------------------------------------------------------------
// Helper types used across multiple tests
// ---------------------------------------------------------------------------

type testArgs struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type testResult struct {
	Output string `json:"output"`
	Count  int    `json:"count"`
}

// reportTask is a structured handler built from two positional params.
type reportTask struct {
	name  string
	count int
}

func newReportTask(name string, count int) *reportTask {
	return &reportTask{name: name, count: count}
}

func (r *reportTask) Handle(_ context.Context) (any, error) {
	return testResult{Output: r.name, Count: r.count}, nil
}

type failingTask struct{}

func (failingTask) Handle(_ context.Context) (any, error) {
	return nil, errors.New("task failed")
}

func params(t *testing.T, values ...any) core.Params {
	t.Helper()
	p, err := core.NewParams(values...)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// NewHandler – nil / non-function rejection
// ---------------------------------------------------------------------------

func TestNewHandler_RejectsNil(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestNewHandler_RejectsTypedNil(t *testing.T) {
	var fn func(ctx context.Context, args string) error = nil
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestNewHandler_RejectsNonFunctions(t *testing.T) {
	for _, v := range []any{"not a function", 42, testArgs{Name: "x"}} {
		_, err := NewHandler(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "function")
	}
}

// ---------------------------------------------------------------------------
// NewHandler – return type validation
// ---------------------------------------------------------------------------

func TestNewHandler_RejectsTwoReturnsSecondNotError(t *testing.T) {
	fn := func(_ string) (string, string) { return "", "" }
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return")
}

func TestNewHandler_RejectsThreeReturnValues(t *testing.T) {
	fn := func(_ string) (string, string, error) { return "", "", nil }
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return")
}

// ---------------------------------------------------------------------------
// NewHandler – kind detection
// ---------------------------------------------------------------------------

func TestNewHandler_PlainFunction(t *testing.T) {
	h, err := NewHandler(func(_ context.Context, _ string, _ int) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, KindFunc, h.Kind)
	assert.True(t, h.HasContext)
	assert.Len(t, h.ArgTypes, 2)
	assert.Equal(t, 2, h.Arity())
}

func TestNewHandler_NoContext(t *testing.T) {
	h, err := NewHandler(func(_ string) {})
	require.NoError(t, err)

	assert.Equal(t, KindFunc, h.Kind)
	assert.False(t, h.HasContext)
	assert.Equal(t, 1, h.Arity())
}

func TestNewHandler_StructuredConstructor(t *testing.T) {
	h, err := NewHandler(newReportTask)
	require.NoError(t, err)
	assert.Equal(t, KindStructured, h.Kind)
	assert.Equal(t, 2, h.Arity())
}

func TestNewHandler_StructuredConstructorWithError(t *testing.T) {
	h, err := NewHandler(func(_ context.Context) (failingTask, error) { return failingTask{}, nil })
	require.NoError(t, err)
	assert.Equal(t, KindStructured, h.Kind)
	assert.Equal(t, 0, h.Arity())
}

func TestNewHandler_Variadic(t *testing.T) {
	h, err := NewHandler(func(_ string, _ ...int) {})
	require.NoError(t, err)
	assert.True(t, h.Variadic)
	assert.Equal(t, 1, h.Arity())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "func", KindFunc.String())
	assert.Equal(t, "structured", KindStructured.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

// ---------------------------------------------------------------------------
// Execute – plain functions
// ---------------------------------------------------------------------------

func TestHandler_Execute_ReturnsErrorForInvalidFn(t *testing.T) {
	h := &Handler{}
	_, err := h.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil or invalid")
}

func TestHandler_Execute_PositionalArgs(t *testing.T) {
	var gotName string
	var gotArgs testArgs
	fn := func(_ context.Context, name string, args testArgs) (testResult, error) {
		gotName = name
		gotArgs = args
		return testResult{Output: name, Count: args.Value}, nil
	}
	h, err := NewHandler(fn)
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), params(t, "first", testArgs{Name: "n", Value: 7}))
	require.NoError(t, err)

	assert.Equal(t, "first", gotName)
	assert.Equal(t, testArgs{Name: "n", Value: 7}, gotArgs)
	assert.Equal(t, testResult{Output: "first", Count: 7}, result)
}

func TestHandler_Execute_PassesContext(t *testing.T) {
	type key struct{}
	var got any
	h, err := NewHandler(func(ctx context.Context) { got = ctx.Value(key{}) })
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), key{}, "value")
	_, err = h.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestHandler_Execute_ErrorOnlyReturn(t *testing.T) {
	h, err := NewHandler(func(_ int) error { return errors.New("boom") })
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), params(t, 1))
	assert.EqualError(t, err, "boom")
	assert.Nil(t, result)
}

func TestHandler_Execute_ValueOnlyReturn(t *testing.T) {
	h, err := NewHandler(func(a, b int) int { return a + b })
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), params(t, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 5, result)
}

func TestHandler_Execute_Variadic(t *testing.T) {
	h, err := NewHandler(func(prefix string, nums ...int) (int, error) {
		sum := 0
		for _, n := range nums {
			sum += n
		}
		return sum, nil
	})
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), params(t, "sum", 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 6, result)

	result, err = h.Execute(context.Background(), params(t, "sum"))
	require.NoError(t, err)
	assert.Equal(t, 0, result)

	_, err = h.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidParams)
}

func TestHandler_Execute_ParamCountMismatch(t *testing.T) {
	h, err := NewHandler(func(_ string, _ int) {})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), params(t, "only-one"))
	require.ErrorIs(t, err, core.ErrInvalidParams)
	assert.Contains(t, err.Error(), "expected 2 params, got 1")
}

func TestHandler_Execute_BadParamJSON(t *testing.T) {
	h, err := NewHandler(func(_ testArgs) {})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), core.Params{json.RawMessage(`"not an object"`)})
	require.ErrorIs(t, err, core.ErrInvalidParams)
	assert.Contains(t, err.Error(), "param 0")
}

func TestHandler_Execute_RecoversPanic(t *testing.T) {
	h, err := NewHandler(func() { panic("kaboom") })
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), nil)
	var panicErr *core.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

// ---------------------------------------------------------------------------
// Execute – structured handlers
// ---------------------------------------------------------------------------

func TestHandler_Execute_StructuredBuildsThenHandles(t *testing.T) {
	h, err := NewHandler(newReportTask)
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), params(t, "daily", 3))
	require.NoError(t, err)
	assert.Equal(t, testResult{Output: "daily", Count: 3}, result)
}

func TestHandler_Execute_StructuredHandleError(t *testing.T) {
	h, err := NewHandler(func() failingTask { return failingTask{} })
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), nil)
	assert.EqualError(t, err, "task failed")
}

func TestHandler_Execute_StructuredConstructorError(t *testing.T) {
	h, err := NewHandler(func(_ string) (*reportTask, error) { return nil, errors.New("bad input") })
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), params(t, "x"))
	assert.EqualError(t, err, "bad input")
}

func TestHandler_Execute_StructuredNilInstance(t *testing.T) {
	h, err := NewHandler(func() *reportTask { return nil })
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidHandler)
}
