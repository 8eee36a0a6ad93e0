package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/native-bindgen/errors"
	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/metadata"
	"github.com/wippyai/native-bindgen/translator"
)

// Input is the reflection source shared by every command.
type Input struct {
	Metadata    string   `help:"Reflection dump (YAML or JSON)." type:"existingfile" short:"m"`
	Import      []string `help:"Sidecars of other assemblies whose types are referenced but not generated."`
	Namespace   string   `help:"Namespace for types that declare none." default:"Bindings"`
	Assembly    string   `help:"Name of the assembly the sidecar describes." default:"Bindings"`
	Parallelism int      `help:"Types translated at once; 0 uses every CPU." default:"0"`
	Debug       bool     `help:"Warn when more than one translator accepts a descriptor."`
}

// database loads the dump and the imported sidecars. Without a dump the
// database is empty, so only built-in names classify.
func (in *Input) database() (*metadata.Database, error) {
	var (
		db  *metadata.Database
		err error
	)
	if in.Metadata != "" {
		db, err = metadata.LoadFile(in.Metadata)
	} else {
		db, err = metadata.New(&metadata.Dump{})
	}
	if err != nil {
		return nil, err
	}
	for _, path := range in.Import {
		sc, err := readSidecar(path)
		if err != nil {
			return nil, err
		}
		if err := db.Import(sc); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func readSidecar(path string) (*metadata.Sidecar, error) {
	f, err := metadata.FormatOf(path)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIngest, errors.KindNotFound, err, "open "+path)
	}
	defer r.Close()
	return metadata.ReadSidecar(r, f)
}

func (in *Input) generator() (*generator.Generator, *metadata.Database, error) {
	if in.Metadata == "" {
		return nil, nil, fmt.Errorf("--metadata is required")
	}
	db, err := in.database()
	if err != nil {
		return nil, nil, err
	}
	g, err := in.generatorFor(db)
	return g, db, err
}

func (in *Input) generatorFor(db *metadata.Database) (*generator.Generator, error) {
	opts := generator.Options{
		Namespace:   in.Namespace,
		Assembly:    in.Assembly,
		Parallelism: in.Parallelism,
	}
	if in.Debug {
		reg, err := translator.NewRegistry(translator.DefaultEntries(), translator.WithDebug(true))
		if err != nil {
			return nil, err
		}
		opts.Registry = reg
	}
	return generator.New(db, opts), nil
}

// report logs every diagnostic of a run.
func report(logger *zap.Logger, d *errors.Diagnostics) {
	if d == nil {
		return
	}
	for _, it := range d.Items() {
		if it.Severity == errors.SeverityError {
			logger.Error("member not bound", zap.Error(it.Err))
		} else {
			logger.Warn("diagnostic", zap.Error(it.Err))
		}
	}
}
