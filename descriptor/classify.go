package descriptor

import (
	"strings"

	"github.com/wippyai/native-bindgen/errors"
)

// Category is the structural category reported by reflection metadata for a
// named native type.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryPrimitive
	CategoryClass
	CategoryStruct
	CategoryEnum
	CategoryInterface
	CategoryDelegate
	CategoryMulticastDelegate
	CategoryPointer
)

var categoryNames = [...]string{
	CategoryNone:              "",
	CategoryPrimitive:         "primitive",
	CategoryClass:             "class",
	CategoryStruct:            "struct",
	CategoryEnum:              "enum",
	CategoryInterface:         "interface",
	CategoryDelegate:          "delegate",
	CategoryMulticastDelegate: "multicast-delegate",
	CategoryPointer:           "pointer",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// ParseCategory maps a metadata category name to a Category.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "multicast" {
		return CategoryMulticastDelegate, true
	}
	for i, n := range categoryNames {
		if n == s {
			return Category(i), true
		}
	}
	return CategoryNone, false
}

// Spec is the raw, name-based form of a type as found at the metadata
// boundary. Classify turns it into a Type.
type Spec struct {
	Struct    *StructInfo
	Enum      *EnumInfo
	Signature *Signature
	Name      string
	Args      []Spec
	// ArrayDim is the static array dimension; zero means 1.
	ArrayDim int
	Flags    Flags
	Category Category
}

// Lookup supplies the category and layout of user-defined native types.
type Lookup interface {
	LookupSpec(name string) (Spec, bool)
}

type builtin struct {
	kind  Kind
	arity int
}

var builtins = map[string]builtin{
	"void":   {KindUnknown, 0},
	"int8":   {KindInt8, 0},
	"int16":  {KindInt16, 0},
	"int32":  {KindInt32, 0},
	"int":    {KindInt32, 0},
	"int64":  {KindInt64, 0},
	"uint8":  {KindUint8, 0},
	"byte":   {KindUint8, 0},
	"uint16": {KindUint16, 0},
	"uint32": {KindUint32, 0},
	"uint64": {KindUint64, 0},
	"float":  {KindFloat, 0},
	"double": {KindDouble, 0},
	"bool":   {KindBool, 0},

	"String":  {KindString, 0},
	"FString": {KindString, 0},
	"Name":    {KindName, 0},
	"FName":   {KindName, 0},
	"Text":    {KindText, 0},
	"FText":   {KindText, 0},

	"Array":           {KindArray, 1},
	"TArray":          {KindArray, 1},
	"Map":             {KindMap, 2},
	"TMap":            {KindMap, 2},
	"Set":             {KindSet, 1},
	"TSet":            {KindSet, 1},
	"Option":          {KindOptional, 1},
	"Optional":        {KindOptional, 1},
	"TOptional":       {KindOptional, 1},
	"WeakObject":      {KindWeakObject, 1},
	"TWeakObjectPtr":  {KindWeakObject, 1},
	"SoftObject":      {KindSoftObject, 1},
	"TSoftObjectPtr":  {KindSoftObject, 1},
	"SubclassOf":      {KindClass, 1},
	"TSubclassOf":     {KindClass, 1},
	"ScriptInterface": {KindInterface, 1},
}

// Classify converts a Spec into a descriptor: the name table is consulted
// first, then the structural category.
func Classify(s Spec) (*Type, error) {
	return ClassifyWith(s, nil)
}

// ClassifyWith is Classify with user-defined names resolved through l when
// the Spec carries no category.
func ClassifyWith(s Spec, l Lookup) (*Type, error) {
	if s.ArrayDim < 0 {
		return nil, errors.New(errors.PhaseClassify, errors.KindInvalidComposite).
			NativeType(s.Name).
			Detail("invalid array dimension %d", s.ArrayDim).
			Build()
	}
	dim := s.ArrayDim
	if dim == 0 {
		dim = 1
	}

	if b, ok := builtins[s.Name]; ok {
		if len(s.Args) != b.arity {
			return nil, errors.New(errors.PhaseClassify, errors.KindInvalidComposite).
				NativeType(s.Name).
				Detail("expects %d template argument(s), got %d", b.arity, len(s.Args)).
				Build()
		}
		t := &Type{Kind: b.kind, Name: s.Name, Flags: s.Flags, ArrayDim: dim}
		if b.arity > 0 {
			if err := classifyArgs(t, s, l); err != nil {
				return nil, err
			}
		}
		return t, nil
	}

	if len(s.Args) > 0 {
		return nil, errors.UnsupportedType(errors.PhaseClassify, s.Name, "unknown template")
	}

	if s.Category == CategoryNone && l != nil {
		if found, ok := l.LookupSpec(s.Name); ok {
			found.Flags |= s.Flags
			if s.ArrayDim != 0 {
				found.ArrayDim = s.ArrayDim
			}
			s = found
		}
	}
	if s.Category == CategoryNone && strings.HasSuffix(s.Name, "*") {
		s.Category = CategoryPointer
	}

	t := &Type{Name: s.Name, Class: s.Name, Flags: s.Flags, ArrayDim: dim}
	switch s.Category {
	case CategoryClass:
		t.Kind = KindObject
	case CategoryInterface:
		t.Kind = KindInterface
	case CategoryPointer:
		t.Kind = KindPointer
		t.Class = ""
	case CategoryStruct:
		if s.Struct == nil {
			return nil, errors.InvalidComposite(errors.PhaseClassify, s.Name, "struct without layout")
		}
		t.Kind = KindStruct
		t.Struct = s.Struct
		t.Class = ""
		if err := t.VerifyBlittable(); err != nil {
			return nil, err
		}
	case CategoryEnum:
		if s.Enum == nil {
			return nil, errors.InvalidComposite(errors.PhaseClassify, s.Name, "enum without underlying type")
		}
		t.Kind = KindEnum
		t.Enum = s.Enum
		t.Class = ""
	case CategoryDelegate, CategoryMulticastDelegate:
		t.Kind = KindDelegate
		if s.Category == CategoryMulticastDelegate {
			t.Kind = KindMulticastDelegate
		}
		t.Signature = s.Signature
		t.Class = ""
	default:
		return nil, errors.New(errors.PhaseClassify, errors.KindUnsupportedType).
			NativeType(s.Name).
			Detail("no classification for category %q", s.Category.String()).
			Build()
	}
	return t, nil
}

func classifyArgs(t *Type, s Spec, l Lookup) error {
	roles := childRoles(t.Kind)
	t.Args = make([]*Type, len(s.Args))
	for i, as := range s.Args {
		if roles != nil {
			as.Flags |= PropagateFlags(s.Flags, roles[i])
		}
		child, err := ClassifyWith(as, l)
		if err != nil {
			return err
		}
		t.Args[i] = child
	}

	switch t.Kind {
	case KindWeakObject, KindSoftObject, KindClass, KindInterface:
		ref := t.Args[0]
		if ref.Kind != KindObject && ref.Kind != KindInterface {
			return errors.InvalidComposite(errors.PhaseClassify, s.Name,
				"template argument "+ref.Name+" is not a class")
		}
		t.Class = ref.Class
	}
	return nil
}

func childRoles(k Kind) []Role {
	switch k {
	case KindArray:
		return []Role{RoleArrayElement}
	case KindSet:
		return []Role{RoleSetElement}
	case KindOptional:
		return []Role{RoleOptionalValue}
	case KindMap:
		return []Role{RoleMapKey, RoleMapValue}
	}
	return nil
}

// ParseSpec parses template syntax such as "Map<int32, Array<String>>".
// Parsed names carry no category.
func ParseSpec(s string) (Spec, error) {
	p := specParser{src: s}
	spec, err := p.parse()
	if err != nil {
		return Spec{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Spec{}, p.fail("unexpected %q", p.src[p.pos:])
	}
	return spec, nil
}

type specParser struct {
	src string
	pos int
}

func (p *specParser) parse() (Spec, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return Spec{}, p.fail("expected type name")
	}
	spec := Spec{Name: p.src[start:p.pos]}
	p.skipSpace()

	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return Spec{}, err
			}
			spec.Args = append(spec.Args, arg)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return Spec{}, p.fail("unterminated template")
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == '>' {
				p.pos++
				break
			}
			return Spec{}, p.fail("unexpected %q", p.src[p.pos])
		}
	}

	for p.pos < len(p.src) && p.src[p.pos] == '*' {
		spec.Name += "*"
		p.pos++
	}
	return spec, nil
}

func (p *specParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *specParser) fail(format string, args ...any) error {
	return errors.New(errors.PhaseClassify, errors.KindInvalidInput).
		Value(p.src).
		Detail("parse %q at %d: "+format, append([]any{p.src, p.pos}, args...)...).
		Build()
}

func isNameByte(c byte) bool {
	return c == '_' || c == ':' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
