package host

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/resource"
)

// ModuleName is the import module name guests use.
const ModuleName = "sharedref"

// TypeI64 is the resource type ID of values stored by the host.
const TypeI64 uint32 = 1

// Status is the result code of a host call.
type Status int32

const (
	StatusOK              Status = 0
	StatusInvalidHandle   Status = -1
	StatusNullDereference Status = -2
	StatusClosed          Status = -3
	StatusTypeMismatch    Status = -4
	StatusInternal        Status = -5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidHandle:
		return "invalid-handle"
	case StatusNullDereference:
		return "null-dereference"
	case StatusClosed:
		return "closed"
	case StatusTypeMismatch:
		return "type-mismatch"
	case StatusInternal:
		return "internal"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// StatusOf maps an error to the status reported to guests.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch errors.KindOf(err) {
	case errors.KindInvalidHandle, errors.KindReleased:
		return StatusInvalidHandle
	case errors.KindNullDereference:
		return StatusNullDereference
	case errors.KindClosed:
		return StatusClosed
	case errors.KindTypeMismatch:
		return StatusTypeMismatch
	default:
		return StatusInternal
	}
}

// Param is a named WIT-typed parameter or result.
type Param struct {
	Type wit.Type
	Name string
}

// Func describes one host function.
type Func struct {
	Handler api.GoModuleFunc
	Name    string
	Params  []Param
	Results []Param
}

// Host serves the sharedref module from a table.
type Host struct {
	table  *resource.Table
	values *resource.Typed[int64]
}

// New creates a host over table. Values are stored with type TypeI64.
func New(table *resource.Table) *Host {
	return &Host{
		table:  table,
		values: resource.NewTyped[int64](table, TypeI64),
	}
}

// Table returns the backing table.
func (h *Host) Table() *resource.Table {
	return h.table
}

// Functions returns the host function catalog in export order.
func (h *Host) Functions() []Func {
	u32 := func(name string) Param { return Param{Name: name, Type: wit.U32{}} }
	s32 := func(name string) Param { return Param{Name: name, Type: wit.S32{}} }
	s64 := func(name string) Param { return Param{Name: name, Type: wit.S64{}} }

	return []Func{
		{Name: "new", Handler: h.newValue, Params: []Param{s64("value")}, Results: []Param{u32("handle")}},
		{Name: "null", Handler: h.newNull, Results: []Param{u32("handle")}},
		{Name: "clone", Handler: h.clone, Params: []Param{u32("handle")}, Results: []Param{u32("handle"), s32("status")}},
		{Name: "assign", Handler: h.assign, Params: []Param{u32("dst"), u32("src")}, Results: []Param{s32("status")}},
		{Name: "drop", Handler: h.drop, Params: []Param{u32("handle")}, Results: []Param{u32("retired"), s32("status")}},
		{Name: "get", Handler: h.get, Params: []Param{u32("handle")}, Results: []Param{s64("value"), s32("status")}},
		{Name: "valid", Handler: h.valid, Params: []Param{u32("handle")}, Results: []Param{u32("ok")}},
		{Name: "count", Handler: h.count, Params: []Param{u32("handle")}, Results: []Param{u32("count"), s32("status")}},
	}
}

// Call runs the named host function on args and returns its results.
// It is the way to reach the functions from Go; wazero does not allow
// calling exports of a host module directly.
func (h *Host) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	for _, f := range h.Functions() {
		if f.Name != name {
			continue
		}
		if len(args) != len(f.Params) {
			return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
				Path(name).
				Detail("got %d argument(s), want %d", len(args), len(f.Params)).
				Build()
		}
		stack := make([]uint64, max(len(f.Params), len(f.Results)))
		copy(stack, args)
		f.Handler(ctx, nil, stack)
		return stack[:len(f.Results)], nil
	}
	return nil, errors.NotFound(errors.PhaseHost, "function", name)
}

// Instantiate registers the host module in rt.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, f := range h.Functions() {
		params, err := lowerAll(f.Params)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseHost, errors.KindUnsupported, err, "lower params of "+f.Name)
		}
		results, err := lowerAll(f.Results)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseHost, errors.KindUnsupported, err, "lower results of "+f.Name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Handler, params, results).
			WithParameterNames(names(f.Params)...).
			WithResultNames(names(f.Results)...).
			Export(f.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindUnsupported, err, "instantiate "+ModuleName)
	}
	return mod, nil
}

func (h *Host) newValue(_ context.Context, _ api.Module, stack []uint64) {
	hd := h.values.Insert(int64(stack[0]))
	stack[0] = api.EncodeU32(uint32(hd))
}

func (h *Host) newNull(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeU32(uint32(h.values.InsertNull()))
}

func (h *Host) clone(_ context.Context, _ api.Module, stack []uint64) {
	nh, err := h.values.Clone(resource.Handle(api.DecodeU32(stack[0])))
	stack[0] = api.EncodeU32(uint32(nh))
	stack[1] = h.status("clone", err)
}

func (h *Host) assign(_ context.Context, _ api.Module, stack []uint64) {
	dst := resource.Handle(api.DecodeU32(stack[0]))
	src := resource.Handle(api.DecodeU32(stack[1]))
	stack[0] = h.status("assign", h.values.Assign(dst, src))
}

func (h *Host) drop(_ context.Context, _ api.Module, stack []uint64) {
	retired, err := h.values.Remove(resource.Handle(api.DecodeU32(stack[0])))
	stack[0] = boolU32(retired)
	stack[1] = h.status("drop", err)
}

func (h *Host) get(_ context.Context, _ api.Module, stack []uint64) {
	v, err := h.values.Get(resource.Handle(api.DecodeU32(stack[0])))
	stack[0] = api.EncodeI64(v)
	stack[1] = h.status("get", err)
}

func (h *Host) valid(_ context.Context, _ api.Module, stack []uint64) {
	hd := resource.Handle(api.DecodeU32(stack[0]))
	typeID, ok := h.table.TypeID(hd)
	stack[0] = boolU32(ok && typeID == TypeI64 && h.table.Valid(hd))
}

func (h *Host) count(_ context.Context, _ api.Module, stack []uint64) {
	n, err := h.values.UseCount(resource.Handle(api.DecodeU32(stack[0])))
	if n < 0 {
		n = 0
	}
	stack[0] = api.EncodeU32(uint32(n))
	stack[1] = h.status("count", err)
}

func (h *Host) status(fn string, err error) uint64 {
	s := StatusOf(err)
	if s != StatusOK {
		Logger().Debug("host call failed",
			zap.String("func", fn),
			zap.Stringer("status", s),
			zap.Error(err))
	}
	return api.EncodeI32(int32(s))
}

func boolU32(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func names(ps []Param) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func lowerAll(ps []Param) ([]api.ValueType, error) {
	out := make([]api.ValueType, len(ps))
	for i, p := range ps {
		vt, err := Lower(p.Type)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

// Lower maps a primitive WIT type to its core wasm value type.
func Lower(t wit.Type) (api.ValueType, error) {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.U64, wit.S64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	default:
		return 0, errors.New(errors.PhaseHost, errors.KindUnsupported).
			Detail("no flat lowering for %s", TypeString(t)).
			Build()
	}
}

// TypeString renders a WIT type the way it is written in WIT.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// Signature renders f as a WIT function signature.
func Signature(f Func) string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(": func(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(TypeString(p.Type))
	}
	b.WriteByte(')')

	switch len(f.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(TypeString(f.Results[0].Type))
	default:
		b.WriteString(" -> (")
		for i, r := range f.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Name)
			b.WriteString(": ")
			b.WriteString(TypeString(r.Type))
		}
		b.WriteByte(')')
	}
	return b.String()
}
