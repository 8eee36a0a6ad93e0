package descriptor

// Kind is the closed set of native type variants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat
	KindDouble
	KindBool
	KindString
	KindName
	KindText
	KindEnum
	KindStruct
	KindObject
	KindWeakObject
	KindSoftObject
	KindInterface
	KindClass
	KindDelegate
	KindMulticastDelegate
	KindArray
	KindMap
	KindSet
	KindOptional
	KindPointer

	kindCount
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindInt8:              "int8",
	KindInt16:             "int16",
	KindInt32:             "int32",
	KindInt64:             "int64",
	KindUint8:             "uint8",
	KindUint16:            "uint16",
	KindUint32:            "uint32",
	KindUint64:            "uint64",
	KindFloat:             "float",
	KindDouble:            "double",
	KindBool:              "bool",
	KindString:            "string",
	KindName:              "name",
	KindText:              "text",
	KindEnum:              "enum",
	KindStruct:            "struct",
	KindObject:            "object",
	KindWeakObject:        "weak-object",
	KindSoftObject:        "soft-object",
	KindInterface:         "interface",
	KindClass:             "class",
	KindDelegate:          "delegate",
	KindMulticastDelegate: "multicast-delegate",
	KindArray:             "array",
	KindMap:               "map",
	KindSet:               "set",
	KindOptional:          "optional",
	KindPointer:           "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Kinds returns every variant in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := KindUnknown; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// IsNumeric reports integer and floating point kinds.
func (k Kind) IsNumeric() bool {
	return k >= KindInt8 && k <= KindDouble
}

// IsSigned reports signed integer kinds.
func (k Kind) IsSigned() bool {
	return k >= KindInt8 && k <= KindInt64
}

func (k Kind) IsFloat() bool {
	return k == KindFloat || k == KindDouble
}

// IsContainer reports kinds with element descriptors.
func (k Kind) IsContainer() bool {
	switch k {
	case KindArray, KindMap, KindSet, KindOptional:
		return true
	}
	return false
}

// IsReference reports kinds that hold a native object identity.
func (k Kind) IsReference() bool {
	switch k {
	case KindObject, KindWeakObject, KindSoftObject, KindInterface, KindClass:
		return true
	}
	return false
}

// Width returns the byte width of numeric and bool kinds, 0 otherwise.
func (k Kind) Width() int {
	switch k {
	case KindInt8, KindUint8, KindBool:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat:
		return 4
	case KindInt64, KindUint64, KindDouble:
		return 8
	}
	return 0
}
