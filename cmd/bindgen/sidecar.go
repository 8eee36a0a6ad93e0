package main

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/metadata"
)

// SidecarCmd plans every type and writes only the sidecar.
type SidecarCmd struct {
	Input `embed:""`

	Out    string `help:"Output file; the extension picks the format unless --format is set." type:"path" short:"o" required:""`
	Format string `help:"Sidecar format (json, yaml, toml or cbor)."`
}

func (c *SidecarCmd) Run(logger *zap.Logger) error {
	g, db, err := c.generator()
	if err != nil {
		return err
	}
	plans, diags, err := g.Plan(context.Background())
	if err != nil {
		return err
	}
	report(logger, diags)

	format := c.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(c.Out), ".")
	}
	f, err := metadata.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := generator.BuildSidecar(c.Input.Assembly, db, plans).Marshal(f)
	if err != nil {
		return err
	}
	if err := writeFile(c.Out, data); err != nil {
		return err
	}
	logger.Info("wrote sidecar", zap.String("path", c.Out), zap.Int("types", len(plans)))
	return diags.Err()
}
