package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// CLI is the bindgen command line. Every flag may also come from a JSON,
// YAML or TOML configuration file; flags override file values.
type CLI struct {
	Config string `help:"Configuration file (JSON, YAML or TOML)." type:"path" env:"BINDGEN_CONFIG"`
	Log    struct {
		Level string `help:"Log level." enum:"debug,info,warn,error" default:"info"`
		Dev   bool   `help:"Human readable development logging."`
	} `embed:"" prefix:"log."`

	Generate GenerateCmd `cmd:"" help:"Generate managed sources and the sidecar from a reflection dump."`
	Patch    PatchCmd    `cmd:"" help:"Rewrite the member stubs of a compiled assembly."`
	Sidecar  SidecarCmd  `cmd:"" help:"Write only the sidecar describing the exported surface."`
	Inspect  InspectCmd  `cmd:"" help:"Show how a native type name is classified and translated."`
}

func main() {
	json, yaml, toml := configCandidates(findUserConfig(os.Args[1:]))

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bindgen"),
		kong.Description("Native reflection to managed binding generator"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, json...),
		kong.Configuration(kongyaml.Loader, yaml...),
		kong.Configuration(kongtoml.Loader, toml...),
	)

	logger, err := setupLogger(cli.Log.Level, cli.Log.Dev)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx.Bind(logger)
	ctx.FatalIfErrorf(ctx.Run())
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("BINDGEN_CONFIG")
}
