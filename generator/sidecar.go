package generator

import (
	"sort"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
)

// BuildSidecar describes the surface generated by plans. Members that
// failed to translate are absent from the plans and so from the sidecar.
func BuildSidecar(assembly string, db *metadata.Database, plans []*plan.TypePlan) *metadata.Sidecar {
	sc := &metadata.Sidecar{Assembly: assembly, Version: metadata.SidecarVersion}
	for _, tp := range plans {
		ti, ok := db.Type(tp.NativeName)
		if !ok {
			continue
		}
		sc.Types = append(sc.Types, sidecarType(ti, tp))
	}
	return sc
}

func sidecarType(ti *metadata.TypeInfo, tp *plan.TypePlan) metadata.SidecarType {
	st := metadata.SidecarType{
		Name:      tp.Name,
		Namespace: tp.Namespace,
		Kind:      ti.Category.String(),
		Flags:     ti.Flags.Names(),
	}
	switch {
	case ti.Struct != nil:
		st.Size, st.Align, st.Blittable = ti.Struct.Size, ti.Struct.Align, ti.Struct.Blittable
	case ti.Enum != nil:
		st.Width = ti.Enum.Width
	}

	templates := map[string]bool{}
	note := func(t *descriptor.Type) {
		if t != nil && (t.Kind.IsContainer() || t.Dim() > 1) {
			templates[t.String()] = true
		}
	}

	kind := metadata.MemberProperty
	if tp.Owner == plan.OwnerStruct {
		kind = metadata.MemberField
	}
	offsets := make(map[string]int32, len(ti.Properties))
	for _, pi := range ti.Properties {
		offsets[pi.Name] = pi.Offset
	}
	for _, pp := range tp.Properties {
		note(pp.Type)
		st.Members = append(st.Members, metadata.SidecarMember{
			Name:       pp.Name,
			Kind:       kind,
			Type:       pp.Type.String(),
			Managed:    pp.ManagedType,
			Marshaller: pp.Marshaller,
			Flags:      pp.Type.Flags.Names(),
			Offset:     offsets[pp.Name],
		})
	}

	for _, fp := range tp.Functions {
		m := metadata.SidecarMember{Name: fp.Name, Kind: metadata.MemberFunction}
		if fp.Replicated {
			m.Flags = descriptor.FlagReplicated.Names()
		}
		if fp.Return != nil {
			note(fp.Return.Type)
			m.Type = fp.Return.Type.String()
			m.Managed = fp.Return.ManagedType
			m.Marshaller = fp.Return.Marshaller
		}
		for _, pp := range fp.Params {
			note(pp.Type)
			m.Params = append(m.Params, metadata.SidecarMember{
				Name:       pp.Name,
				Kind:       pp.Direction.String(),
				Type:       pp.Type.String(),
				Managed:    pp.ManagedType,
				Marshaller: pp.Marshaller,
				Flags:      pp.Type.Flags.Names(),
			})
		}
		st.Members = append(st.Members, m)
	}

	if tp.Delegate != nil {
		for _, pp := range tp.Delegate.Params {
			st.Members = append(st.Members, metadata.SidecarMember{
				Name:    pp.Name,
				Kind:    pp.Direction.String(),
				Type:    pp.Type.String(),
				Managed: pp.ManagedType,
			})
		}
	}

	for t := range templates {
		st.Templates = append(st.Templates, t)
	}
	sort.Strings(st.Templates)
	return st
}
