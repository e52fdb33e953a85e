package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/resource"
)

type fixture struct {
	ctx   context.Context
	host  *Host
	table *resource.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table := resource.NewTable()
	return &fixture{ctx: context.Background(), host: New(table), table: table}
}

func (f *fixture) call(t *testing.T, name string, args ...uint64) []uint64 {
	t.Helper()
	res, err := f.host.Call(f.ctx, name, args...)
	require.NoError(t, err)
	return res
}

func (f *fixture) newValue(t *testing.T, v int64) uint64 {
	t.Helper()
	res := f.call(t, "new", api.EncodeI64(v))
	require.NotZero(t, res[0])
	return res[0]
}

func status(res []uint64) Status {
	return Status(api.DecodeI32(res[len(res)-1]))
}

func TestHost_CopyAndAssignScenario(t *testing.T) {
	f := newFixture(t)

	h1 := f.newValue(t, 5)
	res := f.call(t, "clone", h1)
	require.Equal(t, StatusOK, status(res))
	h2 := res[0]
	h3 := f.call(t, "null")[0]

	assert.Equal(t, uint64(0), f.call(t, "valid", h3)[0])
	res = f.call(t, "get", h3)
	assert.Equal(t, StatusNullDereference, status(res))

	require.Equal(t, StatusOK, status(f.call(t, "assign", h3, h1)))

	for _, h := range []uint64{h1, h2, h3} {
		res := f.call(t, "get", h)
		require.Equal(t, StatusOK, status(res))
		assert.Equal(t, int64(5), int64(res[0]))
	}

	res = f.call(t, "count", h1)
	require.Equal(t, StatusOK, status(res))
	assert.Equal(t, uint32(3), api.DecodeU32(res[0]))

	assert.Equal(t, uint64(0), f.call(t, "drop", h1)[0])
	assert.Equal(t, uint64(0), f.call(t, "drop", h2)[0])
	res = f.call(t, "drop", h3)
	assert.Equal(t, StatusOK, status(res))
	assert.Equal(t, uint64(1), res[0], "last drop retires")
	assert.Zero(t, f.table.Len())
}

func TestHost_SelfAssign(t *testing.T) {
	f := newFixture(t)
	h := f.newValue(t, 5)

	require.Equal(t, StatusOK, status(f.call(t, "assign", h, h)))

	res := f.call(t, "get", h)
	assert.Equal(t, int64(5), int64(res[0]))
	assert.Equal(t, uint32(1), api.DecodeU32(f.call(t, "count", h)[0]))
}

func TestHost_AssignIndependentPairs(t *testing.T) {
	f := newFixture(t)
	retired := 0
	f.table.Subscribe(observerFunc(func(e resource.Event) {
		if e.Type == resource.EventRetired && e.Value == int64(5) {
			retired++
		}
	}))

	h1 := f.newValue(t, 5)
	h2 := f.newValue(t, 10)
	require.Equal(t, StatusOK, status(f.call(t, "assign", h1, h2)))
	assert.Equal(t, 1, retired)

	for _, h := range []uint64{h1, h2} {
		assert.Equal(t, int64(10), int64(f.call(t, "get", h)[0]))
	}
	assert.Equal(t, uint32(2), api.DecodeU32(f.call(t, "count", h2)[0]))
}

func TestHost_NegativeValues(t *testing.T) {
	f := newFixture(t)
	h := f.newValue(t, -42)
	res := f.call(t, "get", h)
	require.Equal(t, StatusOK, status(res))
	assert.Equal(t, int64(-42), int64(res[0]))
}

func TestHost_InvalidHandles(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, "clone", 99)
	assert.Equal(t, StatusInvalidHandle, status(res))
	assert.Zero(t, res[0])

	assert.Equal(t, StatusInvalidHandle, status(f.call(t, "get", 0)))
	assert.Equal(t, StatusInvalidHandle, status(f.call(t, "drop", 7)))
	assert.Equal(t, StatusInvalidHandle, status(f.call(t, "count", 7)))
	assert.Equal(t, StatusInvalidHandle, status(f.call(t, "assign", 1, 2)))
	assert.Equal(t, uint64(0), f.call(t, "valid", 3)[0])

	h := f.newValue(t, 1)
	f.call(t, "drop", h)
	assert.Equal(t, StatusInvalidHandle, status(f.call(t, "get", h)), "dropped handle")
}

func TestHost_ForeignSlotType(t *testing.T) {
	f := newFixture(t)
	foreign := f.table.Insert(TypeI64+1, "not an int")

	assert.Equal(t, StatusTypeMismatch, status(f.call(t, "get", uint64(foreign))))
	assert.Equal(t, StatusTypeMismatch, status(f.call(t, "drop", uint64(foreign))))
	assert.Equal(t, uint64(0), f.call(t, "valid", uint64(foreign))[0])

	res := f.call(t, "clone", uint64(foreign))
	assert.Equal(t, StatusTypeMismatch, status(res))
	assert.Zero(t, res[0])
	assert.Equal(t, StatusTypeMismatch, status(f.call(t, "count", uint64(foreign))))

	null := f.call(t, "null")[0]
	assert.Equal(t, StatusTypeMismatch, status(f.call(t, "assign", null, uint64(foreign))))
	assert.Equal(t, StatusTypeMismatch, status(f.call(t, "assign", uint64(foreign), null)))

	typeID, ok := f.table.TypeID(resource.Handle(null))
	require.True(t, ok)
	assert.Equal(t, TypeI64, typeID, "null slot keeps its type")
	assert.Equal(t, 2, f.table.Len(), "no slot cloned from the foreign one")
}

func TestHost_Call(t *testing.T) {
	f := newFixture(t)

	_, err := f.host.Call(f.ctx, "missing")
	require.ErrorIs(t, err, &errors.Error{Kind: errors.KindNotFound})

	_, err = f.host.Call(f.ctx, "assign", 1)
	require.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})

	res, err := f.host.Call(f.ctx, "null")
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestHost_Instantiate(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := New(resource.NewTable()).Instantiate(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, ModuleName, mod.Name())
	assert.NotNil(t, rt.Module(ModuleName))

	_, err = New(resource.NewTable()).Instantiate(ctx, rt)
	require.Error(t, err, "module name already taken")
}

func TestHost_Closed(t *testing.T) {
	f := newFixture(t)
	h := f.newValue(t, 1)
	require.NoError(t, f.table.Close())

	assert.Zero(t, f.call(t, "new", 3)[0])
	assert.Equal(t, StatusClosed, status(f.call(t, "clone", h)))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{errors.InvalidHandle(errors.PhaseTable, 1), StatusInvalidHandle},
		{errors.Released(errors.PhaseAccess, "int64"), StatusInvalidHandle},
		{errors.NullDereference(errors.PhaseAccess, "int64"), StatusNullDereference},
		{errors.Closed(errors.PhaseTable, "table"), StatusClosed},
		{errors.TypeMismatch(errors.PhaseTable, 1, 1, 2), StatusTypeMismatch},
		{errors.InvalidInput(errors.PhaseHost, "x"), StatusInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "null-dereference", StatusNullDereference.String())
	assert.Equal(t, "status(-9)", Status(-9).String())
}

func TestSignature(t *testing.T) {
	h := New(resource.NewTable())
	sigs := map[string]string{}
	for _, f := range h.Functions() {
		sigs[f.Name] = Signature(f)
	}

	assert.Equal(t, "new: func(value: s64) -> u32", sigs["new"])
	assert.Equal(t, "null: func() -> u32", sigs["null"])
	assert.Equal(t, "clone: func(handle: u32) -> (handle: u32, status: s32)", sigs["clone"])
	assert.Equal(t, "assign: func(dst: u32, src: u32) -> s32", sigs["assign"])
	assert.Len(t, sigs, 8)
}

func TestLower(t *testing.T) {
	vt, err := Lower(wit.U32{})
	require.NoError(t, err)
	assert.Equal(t, api.ValueTypeI32, vt)

	vt, err = Lower(wit.S64{})
	require.NoError(t, err)
	assert.Equal(t, api.ValueTypeI64, vt)

	_, err = Lower(wit.String{})
	require.ErrorIs(t, err, &errors.Error{Kind: errors.KindUnsupported})
}

type observerFunc func(resource.Event)

func (f observerFunc) OnResourceEvent(e resource.Event) { f(e) }
