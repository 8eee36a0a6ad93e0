package memory

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// memoryWASM has one page of memory exported as "memory".
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79,
	0x02, 0x00,
}

func instantiate(t *testing.T) api.Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod.ExportedMemory("memory")
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("expected nil for nil memory")
	}
	if WrapAllocator(context.Background(), nil) != nil {
		t.Error("expected nil for nil function")
	}
}

func TestWrapper_ReadWrite(t *testing.T) {
	mem := Wrap(instantiate(t))

	if err := mem.Write(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := mem.Read(0, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 1 || got[3] != 4 {
		t.Errorf("Read = %v", got)
	}

	if err := mem.WriteU16(8, 0xBEEF); err != nil {
		t.Fatal(err)
	}
	if v, _ := mem.ReadU16(8); v != 0xBEEF {
		t.Errorf("ReadU16 = %x", v)
	}
	if err := mem.WriteU64(16, 42); err != nil {
		t.Fatal(err)
	}
	if v, _ := mem.ReadU64(16); v != 42 {
		t.Errorf("ReadU64 = %d", v)
	}
}

func TestWrapper_OutOfBounds(t *testing.T) {
	mem := Wrap(instantiate(t))

	if _, err := mem.Read(pageSize-2, 4); err == nil {
		t.Error("expected read error")
	}
	if err := mem.WriteU32(pageSize, 1); err == nil {
		t.Error("expected write error")
	}
	if _, err := mem.ReadU8(pageSize); err == nil {
		t.Error("expected read error")
	}
}

func TestHeapAllocator_Grows(t *testing.T) {
	raw := instantiate(t)
	heap := NewHeapAllocator(raw)

	p, err := heap.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p != pageSize {
		t.Errorf("first allocation at %d, want %d", p, pageSize)
	}
	if raw.Size() != 2*pageSize {
		t.Errorf("memory size = %d, want two pages", raw.Size())
	}

	mem := Wrap(raw)
	if err := mem.WriteU64(p+8, 7); err != nil {
		t.Fatalf("write into grown page: %v", err)
	}

	heap.Free(p, 16, 8)
	p2, _ := heap.Alloc(16, 8)
	if p2 != p {
		t.Errorf("top allocation not reclaimed: %d != %d", p2, p)
	}
}
