// Package memory provides native buffer implementations: Arena for
// in-process buffers and Wrapper/HeapAllocator for wazero guest memory.
package memory
