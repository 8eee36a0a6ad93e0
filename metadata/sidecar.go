package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	toml "github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/errors"
)

// SidecarVersion is the current sidecar schema version.
const SidecarVersion = 1

// Sidecar describes the managed surface exported by one assembly. Other
// runs import it to refer to these types without regenerating them.
type Sidecar struct {
	Assembly string        `json:"assembly" yaml:"assembly" toml:"assembly"`
	Types    []SidecarType `json:"types" yaml:"types" toml:"types"`
	Version  int           `json:"version" yaml:"version" toml:"version"`
}

// SidecarType is one exported type.
type SidecarType struct {
	Name      string          `json:"name" yaml:"name" toml:"name"`
	Namespace string          `json:"namespace,omitempty" yaml:"namespace,omitempty" toml:"namespace,omitempty"`
	Kind      string          `json:"kind" yaml:"kind" toml:"kind"`
	Flags     []string        `json:"flags,omitempty" yaml:"flags,omitempty" toml:"flags,omitempty"`
	Members   []SidecarMember `json:"members,omitempty" yaml:"members,omitempty" toml:"members,omitempty"`
	// Templates lists the distinct template instantiations used by members,
	// e.g. "Map<int32,String>".
	Templates []string `json:"templates,omitempty" yaml:"templates,omitempty" toml:"templates,omitempty"`
	Size      uint32   `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Align     uint32   `json:"align,omitempty" yaml:"align,omitempty" toml:"align,omitempty"`
	Width     int      `json:"width,omitempty" yaml:"width,omitempty" toml:"width,omitempty"`
	Blittable bool     `json:"blittable,omitempty" yaml:"blittable,omitempty" toml:"blittable,omitempty"`
}

// SidecarMember is one exported property, field or function.
type SidecarMember struct {
	Name       string          `json:"name" yaml:"name" toml:"name"`
	Kind       string          `json:"kind" yaml:"kind" toml:"kind"`
	Type       string          `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Managed    string          `json:"managed,omitempty" yaml:"managed,omitempty" toml:"managed,omitempty"`
	Marshaller string          `json:"marshaller,omitempty" yaml:"marshaller,omitempty" toml:"marshaller,omitempty"`
	Flags      []string        `json:"flags,omitempty" yaml:"flags,omitempty" toml:"flags,omitempty"`
	Params     []SidecarMember `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Offset     int32           `json:"offset,omitempty" yaml:"offset,omitempty" toml:"offset,omitempty"`
}

// Member kinds used in sidecars.
const (
	MemberProperty = "property"
	MemberField    = "field"
	MemberFunction = "function"
)

// Format is a sidecar encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatCBOR Format = "cbor"
)

// ParseFormat normalises a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return "", errors.InvalidInput(errors.PhaseIngest, fmt.Sprintf("unsupported sidecar format %q", s))
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("metadata: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes sc in format f.
func (sc *Sidecar) Marshal(f Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = json.MarshalIndent(sc, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(sc)
	case FormatTOML:
		data, err = toml.Marshal(*sc)
	case FormatCBOR:
		data, err = cborEncMode.Marshal(sc)
	default:
		return nil, errors.InvalidInput(errors.PhaseEmit, fmt.Sprintf("unsupported sidecar format %q", f))
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidData, err, "encode sidecar as "+string(f))
	}
	return data, nil
}

// Encode writes sc to w in format f.
func (sc *Sidecar) Encode(w io.Writer, f Format) error {
	data, err := sc.Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadSidecar decodes a sidecar in format f.
func ReadSidecar(r io.Reader, f Format) (*Sidecar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIngest, errors.KindInvalidData, err, "read sidecar")
	}
	var sc Sidecar
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&sc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &sc)
	case FormatTOML:
		err = toml.Unmarshal(data, &sc)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &sc)
	default:
		return nil, errors.InvalidInput(errors.PhaseIngest, fmt.Sprintf("unsupported sidecar format %q", f))
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIngest, errors.KindInvalidData, err, "decode "+string(f)+" sidecar")
	}
	if sc.Version > SidecarVersion {
		return nil, errors.InvalidInput(errors.PhaseIngest,
			fmt.Sprintf("sidecar version %d is newer than supported version %d", sc.Version, SidecarVersion))
	}
	return &sc, nil
}

// Import registers the types of another assembly's sidecar as external
// types. They classify like local types but are never generated and have
// no native handles. Names already present are left untouched.
func (db *Database) Import(sc *Sidecar) error {
	var added []*TypeInfo
	var defs []*SidecarType
	for i := range sc.Types {
		st := &sc.Types[i]
		if _, ok := db.byName[st.Name]; ok {
			continue
		}
		cat, ok := descriptor.ParseCategory(st.Kind)
		if !ok || cat == descriptor.CategoryNone {
			return errors.New(errors.PhaseIngest, errors.KindInvalidInput).
				Symbol(st.Name).
				Detail("sidecar %s: unknown type kind %q", sc.Assembly, st.Kind).
				Build()
		}
		flags, err := parseFlags(st.Flags)
		if err != nil {
			return withSymbol(err, st.Name, "")
		}
		t := &TypeInfo{
			Name:      st.Name,
			Namespace: st.Namespace,
			Location:  sc.Assembly,
			Category:  cat,
			Flags:     flags,
			External:  true,
		}
		switch cat {
		case descriptor.CategoryStruct:
			t.Struct = &descriptor.StructInfo{Name: st.Name, Size: st.Size, Align: st.Align, Blittable: st.Blittable}
		case descriptor.CategoryEnum:
			width := st.Width
			if width == 0 {
				width = 1
			}
			t.Enum = &descriptor.EnumInfo{Name: st.Name, Width: width}
		case descriptor.CategoryDelegate, descriptor.CategoryMulticastDelegate:
			t.Signature = &descriptor.Signature{Name: st.Name}
		}
		db.byName[t.Name] = t
		db.types = append(db.types, t)
		added = append(added, t)
		defs = append(defs, st)
	}

	// Struct fields may refer to any imported type, so they are classified
	// once every name is known.
	for i, t := range added {
		if t.Struct == nil {
			continue
		}
		for _, m := range defs[i].Members {
			if m.Kind != MemberField {
				continue
			}
			ft, err := db.Classify(m.Type, 0, 0)
			if err != nil {
				t.Err = err
				continue
			}
			t.Struct.Fields = append(t.Struct.Fields, descriptor.Field{Type: ft, Name: m.Name, Offset: uint32(m.Offset)})
		}
	}
	return nil
}
