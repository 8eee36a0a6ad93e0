package main

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/metadata"
)

// GenerateCmd writes one managed source file per type plus the sidecar.
type GenerateCmd struct {
	Input `embed:""`

	Out    string `help:"Output directory." type:"path" short:"o" default:"generated"`
	Format string `help:"Sidecar format." enum:"json,yaml,toml,cbor" default:"json"`
}

func (c *GenerateCmd) Run(logger *zap.Logger) error {
	g, _, err := c.generator()
	if err != nil {
		return err
	}
	res, genErr := g.Generate(context.Background())
	if res == nil {
		return genErr
	}
	report(logger, res.Diagnostics)

	for _, f := range res.Files {
		path := filepath.Join(c.Out, filepath.FromSlash(f.Name))
		if err := writeFile(path, f.Content); err != nil {
			return err
		}
		logger.Debug("wrote source", zap.String("path", path))
	}
	if res.Sidecar != nil {
		path, err := writeSidecar(c.Out, res.Sidecar, c.Format)
		if err != nil {
			return err
		}
		logger.Info("generated bindings",
			zap.Int("files", len(res.Files)),
			zap.String("sidecar", path))
	}
	return genErr
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeSidecar(dir string, sc *metadata.Sidecar, format string) (string, error) {
	f, err := metadata.ParseFormat(format)
	if err != nil {
		return "", err
	}
	data, err := sc.Marshal(f)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, sc.Assembly+".bindings."+string(f))
	return path, writeFile(path, data)
}
