package marshal

import (
	"sync"

	bindgen "github.com/wippyai/native-bindgen"
)

// ObjectTable maps native object addresses to unique managed proxies and
// hands out handles for host-side managed values.
type ObjectTable struct {
	proxies  map[uint64]*Object
	entries  []entry
	freeList []bindgen.Handle
	mu       sync.RWMutex
}

type entry struct {
	value any
	valid bool
}

func NewObjectTable() *ObjectTable {
	return &ObjectTable{
		proxies:  make(map[uint64]*Object),
		entries:  make([]entry, 0, 64),
		freeList: make([]bindgen.Handle, 0, 16),
	}
}

// Proxy returns the proxy for a native address, creating it on first use.
// Address 0 yields nil.
func (t *ObjectTable) Proxy(address uint64, class string) *Object {
	if address == 0 {
		return nil
	}
	t.mu.RLock()
	obj, ok := t.proxies[address]
	t.mu.RUnlock()
	if ok {
		return obj
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if obj, ok := t.proxies[address]; ok {
		return obj
	}
	obj = &Object{Address: address, Class: class}
	t.proxies[address] = obj
	return obj
}

// Forget drops the proxy of a destroyed native object.
func (t *ObjectTable) Forget(address uint64) {
	t.mu.Lock()
	delete(t.proxies, address)
	t.mu.Unlock()
}

// Insert stores a managed value and returns its handle.
func (t *ObjectTable) Insert(value any) bindgen.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry{value: value, valid: true}
	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
		return h
	}
	t.entries = append(t.entries, e)
	return bindgen.Handle(len(t.entries))
}

// Get retrieves a value by handle.
func (t *ObjectTable) Get(h bindgen.Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h) > len(t.entries) {
		return nil, false
	}
	e := t.entries[h-1]
	return e.value, e.valid
}

// Remove drops a handle and returns its value.
func (t *ObjectTable) Remove(h bindgen.Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil, false
	}
	v := e.value
	*e = entry{}
	t.freeList = append(t.freeList, h)
	return v, true
}

// Len returns the number of live handles.
func (t *ObjectTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// NameTable interns native names. Index 0 is the empty name.
type NameTable struct {
	index map[string]uint32
	names []string
	mu    sync.RWMutex
}

func NewNameTable() *NameTable {
	return &NameTable{
		index: map[string]uint32{"": 0},
		names: []string{""},
	}
}

// Intern returns the index of s, adding it if needed.
func (t *NameTable) Intern(s string) uint32 {
	t.mu.RLock()
	idx, ok := t.index[s]
	t.mu.RUnlock()
	if ok {
		return idx
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.index[s]; ok {
		return idx
	}
	idx = uint32(len(t.names))
	t.names = append(t.names, s)
	t.index[s] = idx
	return idx
}

// Lookup returns the string at idx.
func (t *NameTable) Lookup(idx uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(idx) >= len(t.names) {
		return "", false
	}
	return t.names[idx], true
}
