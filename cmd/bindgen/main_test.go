package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/plan"
)

func gameGenerator(t *testing.T) *generator.Generator {
	t.Helper()
	in := Input{Metadata: "../../metadata/testdata/game.yaml", Namespace: "Bindings", Assembly: "Game"}
	g, _, err := in.generator()
	require.NoError(t, err)
	return g
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		flags descriptor.Flags
	}{
		{"int32", "int32", 0},
		{"const reference String", "String", descriptor.FlagConst | descriptor.FlagReference},
		{"out Map<int32, String>", "Map<int32, String>", descriptor.FlagOut},
		{"const", "const", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, flags := parseQuery(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.flags, flags)
		})
	}
}

func TestInspect_ClassProperty(t *testing.T) {
	in := inspect(gameGenerator(t), "int32", plan.OwnerClass)
	require.NoError(t, in.err)
	assert.Equal(t, "int32", in.kind)
	assert.Equal(t, "int", in.managed)
	assert.True(t, strings.HasPrefix(in.accessor, "public int Value\n{"), in.accessor)
	assert.Contains(t, in.accessor, "get { return *(int*)(NativeObject + Value_Offset); }")
	assert.True(t, strings.HasSuffix(in.accessor, "}"))
}

func TestInspect_StructField(t *testing.T) {
	in := inspect(gameGenerator(t), "float", plan.OwnerStruct)
	require.NoError(t, in.err)
	assert.Contains(t, in.accessor, "public float Value;")
	assert.Contains(t, in.accessor, "Value = *(float*)(Buffer + Value_Offset);")
	assert.Contains(t, in.accessor, "*(float*)(Buffer + Value_Offset) = Value;")
	assert.NotContains(t, in.accessor, "static readonly")
}

func TestInspect_UserTypesAndFailures(t *testing.T) {
	g := gameGenerator(t)

	in := inspect(g, "EColor", plan.OwnerClass)
	require.NoError(t, in.err)
	assert.Equal(t, "EColor", in.managed)

	in = inspect(g, "void*", plan.OwnerClass)
	require.Error(t, in.err)
	assert.Empty(t, in.accessor)
	assert.Contains(t, in.render(), "error:")
}

func TestInspectLines(t *testing.T) {
	src := "# comment\n\nString\nbool\n"
	var out bytes.Buffer
	require.NoError(t, inspectLines(strings.NewReader(src), &out, gameGenerator(t), plan.OwnerClass))
	assert.Contains(t, out.String(), "String")
	assert.Contains(t, out.String(), "bool")
	assert.NotContains(t, out.String(), "comment")
}

func TestConfigCandidates(t *testing.T) {
	json, yaml, toml := configCandidates("my.toml")
	assert.Empty(t, json)
	assert.Empty(t, yaml)
	assert.Equal(t, []string{"my.toml"}, toml)

	json, yaml, toml = configCandidates("")
	assert.Contains(t, json, filepath.Join(".", "bindgen.json"))
	assert.Contains(t, yaml, filepath.Join(".", "bindgen.yml"))
	assert.Contains(t, toml, filepath.Join(".", "bindgen.toml"))
}

func TestFindUserConfig(t *testing.T) {
	t.Setenv("BINDGEN_CONFIG", "")
	assert.Equal(t, "a.yaml", findUserConfig([]string{"generate", "--config=a.yaml"}))
	assert.Equal(t, "b.toml", findUserConfig([]string{"--config", "b.toml", "patch"}))
	assert.Equal(t, "", findUserConfig([]string{"inspect"}))
}

func TestGenerateCmd_WritesSourcesAndSidecar(t *testing.T) {
	out := t.TempDir()
	var cli CLI
	parser, err := kong.New(&cli)
	require.NoError(t, err)
	kctx, err := parser.Parse([]string{
		"generate", "--metadata", "../../metadata/testdata/counter.yaml",
		"--assembly", "Demo", "-o", out, "--format", "yaml",
	})
	require.NoError(t, err)

	logger, err := setupLogger("error", false)
	require.NoError(t, err)
	kctx.Bind(logger)
	require.NoError(t, kctx.Run())

	assert.FileExists(t, filepath.Join(out, "Demo", "Counter.g.cs"))
	sidecar := filepath.Join(out, "Demo.bindings.yaml")
	require.FileExists(t, sidecar)
	sc, err := readSidecar(sidecar)
	require.NoError(t, err)
	assert.Equal(t, "Demo", sc.Assembly)
	assert.Equal(t, metadata.SidecarVersion, sc.Version)
}

func TestSetupLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := setupLogger("loud", false)
	require.Error(t, err)
}
