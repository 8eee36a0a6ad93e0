package main

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/emit/patch"
)

// PatchCmd rewrites the stubs of a compiled assembly in place of a
// managed compiler's output.
type PatchCmd struct {
	Input `embed:""`

	Binary    string `arg:"" help:"Compiled assembly with member stubs." type:"existingfile"`
	Out       string `help:"Output path; defaults to <assembly>.patched.wasm." type:"path" short:"o"`
	StackSize uint32 `help:"Shadow stack reserved for parameter buffers, in bytes." default:"65536"`
	Verify    bool   `help:"Compile the result to validate every rewritten body." default:"true" negatable:""`
}

func (c *PatchCmd) Run(logger *zap.Logger) error {
	ctx := context.Background()
	g, _, err := c.generator()
	if err != nil {
		return err
	}
	bin, err := os.ReadFile(c.Binary)
	if err != nil {
		return err
	}

	res, patchErr := g.Patch(ctx, bin, patch.Options{StackSize: c.StackSize})
	if res == nil {
		return patchErr
	}
	report(logger, res.Diagnostics)
	for _, name := range res.Unbound {
		logger.Warn("no stub in assembly", zap.String("member", name))
	}

	if c.Verify {
		if err := patch.Verify(ctx, res.Binary); err != nil {
			return err
		}
	}
	out := c.Out
	if out == "" {
		out = strings.TrimSuffix(c.Binary, ".wasm") + ".patched.wasm"
	}
	if err := writeFile(out, res.Binary); err != nil {
		return err
	}
	logger.Info("patched assembly",
		zap.String("path", out),
		zap.Int("stubs", len(res.Patched)),
		zap.Strings("binders", res.Binders))
	return patchErr
}
