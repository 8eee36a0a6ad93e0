package bindgen

// Memory is an addressable native buffer. All multi-byte accessors are
// little endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// Allocator allocates native memory for container and string payloads.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Handle is an opaque native handle. Zero is the null handle.
type Handle uint32

// Reflection is the query surface of the native reflection metadata system.
// Every call is synchronous and side-effect free from the caller's point of
// view; results for the same arguments never change during a process.
type Reflection interface {
	NativeTypeHandle(name string) (Handle, error)
	NativeFunctionHandle(typ Handle, name string) (Handle, error)
	NativePropertyHandle(owner Handle, name string) (Handle, error)
	PropertyOffset(property Handle) (int32, error)
	PropertyOffsetByName(owner Handle, name string) (int32, error)
	FunctionParamsSize(fn Handle) (int32, error)
	StructNativeSize(typ Handle) (int32, error)
	BoolFieldMask(owner Handle, name string) (uint8, error)

	// InstanceFunctionHandle resolves a function through a live object rather
	// than through the static type snapshot.
	InstanceFunctionHandle(object uint32, name string) (Handle, error)
}
