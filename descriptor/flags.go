package descriptor

import (
	"math/bits"
	"strings"
)

// Flags is the property flag bitset carried by every descriptor.
type Flags uint64

const (
	FlagConst Flags = 1 << iota
	FlagReference
	FlagOut
	FlagReturn
	FlagReplicated
	FlagEditorOnly
	FlagInstancedReference
	FlagBlueprintVisible
	FlagBlueprintCallable
	FlagExportObject
	FlagPersistentInstance
	FlagContainsInstancedReference
	FlagConfig
	FlagEditConst
	FlagDeprecated
	FlagAutoWeak
	FlagWrapper
	FlagEditable
	FlagBitfield
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagConst, "const"},
	{FlagReference, "reference"},
	{FlagOut, "out"},
	{FlagReturn, "return"},
	{FlagReplicated, "replicated"},
	{FlagEditorOnly, "editor-only"},
	{FlagInstancedReference, "instanced-reference"},
	{FlagBlueprintVisible, "blueprint-visible"},
	{FlagBlueprintCallable, "blueprint-callable"},
	{FlagExportObject, "export-object"},
	{FlagPersistentInstance, "persistent-instance"},
	{FlagContainsInstancedReference, "contains-instanced-reference"},
	{FlagConfig, "config"},
	{FlagEditConst, "edit-const"},
	{FlagDeprecated, "deprecated"},
	{FlagAutoWeak, "auto-weak"},
	{FlagWrapper, "wrapper"},
	{FlagEditable, "editable"},
	{FlagBitfield, "bitfield"},
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Any reports whether any bit of mask is set.
func (f Flags) Any(mask Flags) bool {
	return f&mask != 0
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, bits.OnesCount64(uint64(f)))
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlag returns the flag with the given name.
func ParseFlag(name string) (Flags, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}

// Names returns the flag names set in f, in declaration order.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// Role is the position a child descriptor takes inside its container.
type Role uint8

const (
	RoleArrayElement Role = iota
	RoleMapKey
	RoleMapValue
	RoleSetElement
	RoleOptionalValue
)

// inherited is the subset of container flags every child receives.
const inherited = FlagExportObject | FlagPersistentInstance | FlagInstancedReference |
	FlagContainsInstancedReference | FlagConfig | FlagEditConst | FlagDeprecated |
	FlagEditorOnly | FlagAutoWeak | FlagWrapper

// PropagateFlags returns the flags a container passes to a child in role.
// Editable is passed to map keys, map values and set elements only.
func PropagateFlags(container Flags, role Role) Flags {
	out := container & inherited
	switch role {
	case RoleMapKey, RoleMapValue, RoleSetElement:
		out |= container & FlagEditable
	}
	return out
}
