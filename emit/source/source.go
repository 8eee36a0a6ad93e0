package source

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/plan"
)

// RootClass is the managed base of classes without a native super type.
const RootClass = "ManagedObject"

const header = `// <auto-generated>
// Generated by bindgen from native type {{.Native}}. Do not edit.
// </auto-generated>
using System;
using System.Collections.Generic;
using NativeBindings.Runtime;
{{if .Namespace}}
namespace {{.Namespace}};
{{end}}`

const classTemplate = header + `
public unsafe partial {{.Keyword}} {{.Name}}{{if .Super}} : {{.Super}}{{end}}
{
{{- range .Fields}}
    {{if .Public}}public {{end}}static readonly {{.Type}} {{.Name}};
{{- end}}

    static {{.Name}}()
    {
{{- range .Program}}
        {{.}}
{{- end}}
    }
{{- if .Struct}}
{{range .Properties}}
    public {{.Type}} {{.Name}};
{{- end}}

    public {{.Name}}(IntPtr Buffer)
    {
{{- range .Properties}}
        {{.Name}} = {{.Get}};
{{- end}}
    }

    public void ToNative(IntPtr Buffer)
    {
{{- range .Properties}}
        {{.Set}}
{{- end}}
    }
{{- else}}
{{- range .Properties}}

    public {{.Type}} {{.Name}}
    {
        get { return {{.Get}}; }
{{- if not .ReadOnly}}
        set { {{.Set}} }
{{- end}}
    }
{{- end}}
{{- end}}
{{- range .Functions}}

    public {{.Return}} {{.Name}}({{join .Params ", "}})
    {
        byte* paramsMemory = stackalloc byte[{{.SizeField}}];
        IntPtr ParamsBuffer = (IntPtr)paramsMemory;
{{- if .HasReturn}}
        byte* returnMemory = stackalloc byte[{{.ReturnSize}}];
        IntPtr ReturnBuffer = (IntPtr)returnMemory;
{{- else}}
        IntPtr ReturnBuffer = IntPtr.Zero;
{{- end}}
{{- range .Marshal}}
        {{.}}
{{- end}}
        NativeReflection.InvokeFunction(NativeObject, {{.Handle}}, ParamsBuffer, ReturnBuffer);
{{- range .WriteBack}}
        {{.}}
{{- end}}
{{- if .HasReturn}}
        {{.Return}} result = {{.Result}};
{{- end}}
{{- range .Cleanup}}
        {{.}}
{{- end}}
{{- if .HasReturn}}
        return result;
{{- end}}
    }
{{- end}}
}
`

const enumTemplate = header + `
public enum {{.Name}} : {{.Underlying}}
{
{{- range .Values}}
    {{.Name}} = {{.Value}},
{{- end}}
}
`

const delegateTemplate = header + `
public delegate {{.Return}} {{.Name}}({{join .Params ", "}});
`

var templates = template.Must(template.New("class").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(classTemplate))

func init() {
	template.Must(templates.New("enum").Parse(enumTemplate))
	template.Must(templates.New("delegate").Parse(delegateTemplate))
}

type fieldView struct {
	Type   string
	Name   string
	Public bool
}

type propertyView struct {
	Type     string
	Name     string
	Get      string
	Set      string
	ReadOnly bool
}

type functionView struct {
	Return     string
	Name       string
	Handle     string
	SizeField  string
	Result     string
	Params     []string
	Marshal    []string
	WriteBack  []string
	Cleanup    []string
	ReturnSize uint32
	HasReturn  bool
}

type enumValue struct {
	Name  string
	Value int64
}

type fileView struct {
	Native     string
	Namespace  string
	Keyword    string
	Name       string
	Super      string
	Underlying string
	Return     string
	Fields     []fieldView
	Program    []string
	Properties []propertyView
	Functions  []functionView
	Values     []enumValue
	Params     []string
	Struct     bool
}

// File is one rendered source file.
type File struct {
	Name    string
	Content []byte
}

// FileName is the output path of a type, relative to the output root.
func FileName(tp *plan.TypePlan) string {
	dir := strings.ReplaceAll(tp.Namespace, ".", "/")
	if dir == "" {
		return tp.Name + ".g.cs"
	}
	return dir + "/" + tp.Name + ".g.cs"
}

// Render renders the managed source of one type.
func Render(tp *plan.TypePlan) (File, error) {
	v := fileView{Native: tp.NativeName, Namespace: tp.Namespace, Name: tp.Name}

	name := "class"
	var err error
	switch {
	case tp.Enum != nil:
		name = "enum"
		v.Underlying = underlying(tp.Enum.Width)
		for _, ev := range tp.Enum.Values {
			v.Values = append(v.Values, enumValue{Name: ev.Name, Value: ev.Value})
		}
	case tp.Delegate != nil:
		name = "delegate"
		v.Return, v.Params = signature(tp.Delegate)
	default:
		err = classView(tp, &v)
	}
	if err != nil {
		return File{}, err
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return File{}, errors.Wrap(errors.PhaseEmit, errors.KindInvalidData, err, "render "+tp.Name)
	}
	return File{Name: FileName(tp), Content: buf.Bytes()}, nil
}

func classView(tp *plan.TypePlan, v *fileView) error {
	v.Keyword = "class"
	v.Super = tp.Super
	if tp.Owner == plan.OwnerStruct {
		v.Keyword = "struct"
		v.Struct = true
		v.Super = ""
	} else if v.Super == "" {
		v.Super = RootClass
	}

	for _, s := range tp.Fields() {
		f := fieldView{Type: fieldType(s)}
		switch st := s.(type) {
		case plan.Resolve:
			f.Name = st.Field
		case plan.CellInit:
			f.Name = st.Field
		}
		f.Public = f.Name == plan.TypeSizeField
		v.Fields = append(v.Fields, f)
	}
	for _, s := range tp.Program() {
		line, err := static(s)
		if err != nil {
			return attribute(err, tp.Name)
		}
		v.Program = append(v.Program, line)
	}

	for _, pp := range tp.Properties {
		p := printer{managed: pp.ManagedType, symbol: tp.Name + "." + pp.Name}
		get, err := p.expr(pp.Get)
		if err != nil {
			return err
		}
		set, err := p.stmt(pp.Set)
		if err != nil {
			return err
		}
		v.Properties = append(v.Properties, propertyView{
			Type: pp.ManagedType, Name: pp.Name, Get: get, Set: set, ReadOnly: pp.ReadOnly,
		})
	}

	for i := range tp.Functions {
		fv, err := function(tp, &tp.Functions[i])
		if err != nil {
			return err
		}
		v.Functions = append(v.Functions, fv)
	}
	return nil
}

func function(tp *plan.TypePlan, fp *plan.FunctionPlan) (functionView, error) {
	fv := functionView{
		Name:      fp.Name,
		Handle:    fp.HandleField,
		SizeField: fp.SizeField,
	}
	fv.Return, fv.Params = signature(fp)
	if fp.Replicated {
		fv.Handle = fmt.Sprintf("NativeReflection.GetInstanceFunctionHandle(NativeObject, %q)", fp.Name)
	}

	for _, pp := range fp.Params {
		p := printer{managed: pp.ManagedType, symbol: tp.Name + "." + fp.Name + "." + pp.Name}
		if pp.ToNative != nil {
			s, err := p.stmt(pp.ToNative)
			if err != nil {
				return fv, err
			}
			fv.Marshal = append(fv.Marshal, s)
		}
		if pp.WriteBack != nil {
			s, err := p.stmt(pp.WriteBack)
			if err != nil {
				return fv, err
			}
			fv.WriteBack = append(fv.WriteBack, s)
		}
		for _, c := range pp.Cleanup {
			s, err := p.stmt(c)
			if err != nil {
				return fv, err
			}
			fv.Cleanup = append(fv.Cleanup, s)
		}
	}

	if rp := fp.Return; rp != nil {
		p := printer{managed: rp.ManagedType, symbol: tp.Name + "." + fp.Name}
		res, err := p.expr(rp.FromNative)
		if err != nil {
			return fv, err
		}
		fv.HasReturn = true
		fv.Result = res
		fv.ReturnSize = fp.ReturnSize
		for _, c := range rp.Cleanup {
			s, err := p.stmt(c)
			if err != nil {
				return fv, err
			}
			fv.Cleanup = append(fv.Cleanup, s)
		}
	}
	return fv, nil
}

func signature(fp *plan.FunctionPlan) (string, []string) {
	ret := "void"
	if fp.Return != nil {
		ret = fp.Return.ManagedType
	}
	params := make([]string, 0, len(fp.Params))
	for _, pp := range fp.Params {
		decl := pp.ManagedType + " " + pp.Name
		switch pp.Direction {
		case plan.Out:
			decl = "out " + decl
		case plan.Ref:
			decl = "ref " + decl
		}
		params = append(params, decl)
	}
	return ret, params
}

func attribute(err error, symbol string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.At(symbol, "")
	}
	return err
}
