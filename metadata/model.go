package metadata

// Dump is a reflection dump as produced by the native runtime's metadata
// exporter. YAML and JSON are both accepted.
type Dump struct {
	Types []TypeDef `yaml:"types"`
}

// TypeDef is one native type. For structs, Properties are the fields.
type TypeDef struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Namespace  string         `yaml:"namespace"`
	Super      string         `yaml:"super"`
	Location   string         `yaml:"location"`
	Return     string         `yaml:"return"`
	Flags      []string       `yaml:"flags"`
	Values     []EnumValueDef `yaml:"values"`
	Properties []PropertyDef  `yaml:"properties"`
	Functions  []FunctionDef  `yaml:"functions"`
	// Params is the signature of a delegate type.
	Params    []PropertyDef `yaml:"params"`
	Size      uint32        `yaml:"size"`
	Align     uint32        `yaml:"align"`
	Width     int           `yaml:"width"`
	Blittable bool          `yaml:"blittable"`
}

// PropertyDef is a property, struct field or function parameter.
type PropertyDef struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Location string   `yaml:"location"`
	Flags    []string `yaml:"flags"`
	Offset   int32    `yaml:"offset"`
	ArrayDim int      `yaml:"array_dim"`
	Mask     uint8    `yaml:"mask"`
}

// FunctionDef is a reflected function. ParamsSize may be omitted and is
// then computed from the parameter layout.
type FunctionDef struct {
	Name       string        `yaml:"name"`
	Return     string        `yaml:"return"`
	Location   string        `yaml:"location"`
	Flags      []string      `yaml:"flags"`
	Params     []PropertyDef `yaml:"params"`
	ParamsSize int32         `yaml:"params_size"`
}

// EnumValueDef is one enumerator.
type EnumValueDef struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}
