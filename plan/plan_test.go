package plan

import (
	"testing"

	"github.com/wippyai/native-bindgen/descriptor"
)

func TestAt(t *testing.T) {
	direct := At(Direct, BaseObject, "Health_Offset")
	if direct.OffsetField != "Health_Offset" {
		t.Errorf("direct address lost its offset: %+v", direct)
	}
	ret := At(ReturnBuffer, BaseReturn, "ReturnValue_Offset")
	if ret.OffsetField != "" {
		t.Errorf("return buffer must not carry an offset: %+v", ret)
	}
}

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		flags descriptor.Flags
		want  Direction
	}{
		{0, In},
		{descriptor.FlagConst | descriptor.FlagReference, In},
		{descriptor.FlagOut, Out},
		{descriptor.FlagOut | descriptor.FlagReference, Ref},
		{descriptor.FlagReference, Ref},
		{descriptor.FlagReturn | descriptor.FlagOut, Return},
	}
	for _, tt := range tests {
		if got := DirectionOf(tt.flags); got != tt.want {
			t.Errorf("DirectionOf(%s) = %s, want %s", tt.flags, got, tt.want)
		}
	}
}

func TestProgramOrder(t *testing.T) {
	tp := TypePlan{
		Statics: []Static{Resolve{Field: TypeHandleField, Query: QueryTypeHandle, Cached: true}},
		Properties: []PropertyPlan{
			{Statics: []Static{Resolve{Field: "A_Offset", Query: QueryOffsetByName, Cached: true}}},
			{Statics: []Static{
				Resolve{Field: "B_NativeProperty", Query: QueryPropertyHandle, Cached: true},
				CellInit{Field: "B_Marshaller"},
			}},
		},
		Functions: []FunctionPlan{{
			Statics: []Static{Resolve{Field: "Fire_NativeFunction", Query: QueryFunctionHandle}},
			Params: []ParamPlan{
				{Statics: []Static{Resolve{Field: "Fire_X_Offset", Query: QueryOffsetByName, Cached: true}}},
			},
		}},
	}

	prog := tp.Program()
	want := []string{TypeHandleField, "A_Offset", "B_NativeProperty", "B_Marshaller", "Fire_NativeFunction", "Fire_X_Offset"}
	if len(prog) != len(want) {
		t.Fatalf("program has %d steps, want %d", len(prog), len(want))
	}
	for i, s := range prog {
		var field string
		switch v := s.(type) {
		case Resolve:
			field = v.Field
		case CellInit:
			field = v.Field
		}
		if field != want[i] {
			t.Errorf("step %d = %s, want %s", i, field, want[i])
		}
	}

	fields := tp.Fields()
	if len(fields) != 5 {
		t.Errorf("Fields = %d, uncached handles must not be declared", len(fields))
	}
}

func TestFieldNames(t *testing.T) {
	if OffsetField("Health") != "Health_Offset" {
		t.Error(OffsetField("Health"))
	}
	if CellField(ParamMember("Fire", "Targets")) != "Fire_Targets_Marshaller" {
		t.Error(CellField(ParamMember("Fire", "Targets")))
	}
}
