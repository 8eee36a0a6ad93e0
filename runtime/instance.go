package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	bindgen "github.com/wippyai/native-bindgen"
	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/layout"
	"github.com/wippyai/native-bindgen/marshal"
	"github.com/wippyai/native-bindgen/memory"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
)

// Instance is a live patched assembly. Managed values that are not
// primitives cross the boundary as handles into the instance's object
// table.
type Instance struct {
	runtime *Runtime
	mod     api.Module
	native  *marshal.Native
	cells   []cellEntry
	once    sync.Once
	mu      sync.RWMutex
}

type cellEntry struct {
	codec      marshal.Codec
	marshaller string
}

type instanceKey struct{}

// withInstance routes host calls made under ctx to inst.
func withInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, instanceKey{}, inst)
}

// instanceOf returns the instance a host call belongs to, binding it to
// the calling module's memory on first use.
func instanceOf(ctx context.Context, mod api.Module) *Instance {
	inst, _ := ctx.Value(instanceKey{}).(*Instance)
	if inst == nil {
		trap(errors.InvalidInput(errors.PhaseHost, "host call outside an instance context"))
	}
	inst.bindMemory(mod)
	return inst
}

func (i *Instance) bindMemory(mod api.Module) {
	i.once.Do(func() {
		mem := mod.Memory()
		if mem == nil {
			trap(errors.InvalidInput(errors.PhaseHost, "assembly has no memory"))
		}
		i.native = marshal.NewNative(memory.Wrap(mem), memory.NewHeapAllocator(mem))
	})
}

func (i *Instance) attach(mod api.Module) {
	i.mod = mod
	i.bindMemory(mod)
}

// name reads a (ptr, len) string from the names segment.
func (i *Instance) name(ptr, length uint64) string {
	b, err := i.native.Mem.Read(uint32(ptr), uint32(length))
	if err != nil {
		trap(errors.Wrap(errors.PhaseHost, errors.KindOutOfBounds, err, "read name"))
	}
	return string(b)
}

func (i *Instance) addCell(marshaller string, c marshal.Codec) uint32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cells = append(i.cells, cellEntry{codec: c, marshaller: marshaller})
	return uint32(len(i.cells))
}

func (i *Instance) cell(idx uint32) marshal.Codec {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if idx == 0 || int(idx) > len(i.cells) {
		trap(errors.NotFound(errors.PhaseHost, "cell", fmt.Sprint(idx)))
	}
	return i.cells[idx-1].codec
}

// Cells returns the number of marshaller cells the resolution programs
// created.
func (i *Instance) Cells() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.cells)
}

// Call invokes an export of the assembly.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", name)
	}
	res, err := fn.Call(withInstance(ctx, i), args...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindBindingFailed, err, "call "+name)
	}
	return res, nil
}

// Put stores a managed value and returns the handle to pass to the
// assembly.
func (i *Instance) Put(v any) uint32 {
	return uint32(i.native.Objects.Insert(v))
}

// Value returns the managed value behind a handle. Handle zero is nil.
func (i *Instance) Value(h uint32) (any, bool) {
	return i.native.Objects.Get(bindgen.Handle(h))
}

// Release drops a handle returned by the assembly.
func (i *Instance) Release(h uint32) {
	i.native.Objects.Remove(bindgen.Handle(h))
}

// Memory is the assembly's linear memory, which doubles as native memory.
func (i *Instance) Memory() bindgen.Memory {
	return i.native.Mem
}

// Alloc claims zeroed native memory.
func (i *Instance) Alloc(size, align uint32) (uint32, error) {
	addr, err := i.native.Alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindAllocation, err, "allocate native memory")
	}
	if err := i.native.Mem.Write(addr, make([]byte, size)); err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindOutOfBounds, err, "zero native memory")
	}
	return addr, nil
}

// New allocates a zeroed native object of class. Class instances are
// registered so replicated functions resolve through them.
func (i *Instance) New(class string) (uint32, error) {
	db := i.runtime.db
	t, ok := db.Type(class)
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "type", class)
	}
	size, align, err := objectLayout(db, t)
	if err != nil {
		return 0, err
	}
	addr, err := i.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	if !t.IsStruct() {
		if err := db.RegisterInstance(addr, class); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

// objectLayout sizes a struct from its metadata and a class from the end
// of its last property, super types included.
func objectLayout(db *metadata.Database, t *metadata.TypeInfo) (uint32, uint32, error) {
	if t.Struct != nil {
		return max(t.Struct.Size, 1), max(t.Struct.Align, 1), nil
	}
	end := uint32(8)
	for t != nil {
		for _, p := range t.Properties {
			if p.Err != nil {
				continue
			}
			size, err := layout.Total(p.Type)
			if err != nil {
				return 0, 0, err
			}
			end = max(end, uint32(p.Offset)+size)
		}
		t, _ = db.Type(t.Super)
	}
	return layout.AlignTo(end, 8), 8, nil
}

// Property reads a member of the object at obj directly, the way native
// code sees it.
func (i *Instance) Property(obj uint32, class, member string) (any, error) {
	c, pi, err := i.member(class, member)
	if err != nil {
		return nil, err
	}
	return c.FromNative(i.native, obj+uint32(pi.Offset), 0)
}

// SetProperty writes a member of the object at obj directly.
func (i *Instance) SetProperty(obj uint32, class, member string, v any) error {
	c, pi, err := i.member(class, member)
	if err != nil {
		return err
	}
	return c.ToNative(i.native, obj+uint32(pi.Offset), 0, v)
}

func (i *Instance) member(class, member string) (marshal.Codec, *metadata.PropertyInfo, error) {
	db := i.runtime.db
	t, ok := db.Type(class)
	if !ok {
		return nil, nil, errors.NotFound(errors.PhaseHost, "type", class)
	}
	h, err := db.NativePropertyHandle(t.Handle, member)
	if err != nil {
		return nil, nil, err
	}
	owner := plan.OwnerClass
	if t.IsStruct() {
		owner = plan.OwnerStruct
	}
	return i.runtime.codec(h, owner)
}

// Close closes the module instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}
