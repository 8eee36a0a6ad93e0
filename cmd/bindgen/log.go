package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/native-bindgen/binding"
	"github.com/wippyai/native-bindgen/emit/patch"
	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/runtime"
	"github.com/wippyai/native-bindgen/translator"
)

// setupLogger builds the process logger and installs it in every package
// that logs.
func setupLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	binding.SetLogger(logger.Named("binding"))
	translator.SetLogger(logger.Named("translator"))
	generator.SetLogger(logger.Named("generator"))
	patch.SetLogger(logger.Named("patch"))
	runtime.SetLogger(logger.Named("runtime"))
	return logger, nil
}
