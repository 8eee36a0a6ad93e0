package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/native-bindgen/descriptor"
	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/plan"
)

// InspectCmd explains the translation of native type names. With no names
// on a terminal it starts an interactive session; otherwise it reads one
// name per line from stdin.
type InspectCmd struct {
	Input `embed:""`

	Struct bool     `help:"Plan the member on a struct instead of a class."`
	Types  []string `arg:"" optional:"" help:"Native type names, optionally preceded by flags, e.g. \"const reference String\"."`
}

func (c *InspectCmd) Run(logger *zap.Logger) error {
	db, err := c.database()
	if err != nil {
		return err
	}
	g, err := c.generatorFor(db)
	if err != nil {
		return err
	}
	owner := plan.OwnerClass
	if c.Struct {
		owner = plan.OwnerStruct
	}

	if len(c.Types) > 0 {
		for _, t := range c.Types {
			fmt.Println(inspect(g, t, owner).render())
		}
		return nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Debug("starting interactive inspector", zap.String("metadata", c.Metadata))
		return runInteractive(g, c.Metadata, owner)
	}
	return inspectLines(os.Stdin, os.Stdout, g, owner)
}

func inspectLines(r io.Reader, w io.Writer, g *generator.Generator, owner plan.OwnerKind) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := fmt.Fprintln(w, inspect(g, line, owner).render()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// inspection is everything shown for one query.
type inspection struct {
	err        error
	query      string
	kind       string
	flags      string
	translator string
	managed    string
	marshaller string
	accessor   string
	candidates []string
	dim        int
}

// parseQuery splits leading flag names from the type name.
func parseQuery(q string) (string, descriptor.Flags) {
	var flags descriptor.Flags
	fields := strings.Fields(q)
	for len(fields) > 1 {
		f, ok := descriptor.ParseFlag(fields[0])
		if !ok {
			break
		}
		flags |= f
		fields = fields[1:]
	}
	return strings.Join(fields, " "), flags
}

func inspect(g *generator.Generator, query string, owner plan.OwnerKind) inspection {
	in := inspection{query: query}
	name, flags := parseQuery(query)
	pr, err := g.Probe(name, flags, owner)
	in.err = err
	if pr == nil {
		return in
	}
	in.kind = pr.Type.Kind.String()
	in.flags = pr.Type.Flags.String()
	in.dim = pr.Type.Dim()
	in.candidates = pr.Candidates
	if err != nil {
		return in
	}
	in.translator = pr.Property.Translator
	in.managed = pr.Property.ManagedType
	in.marshaller = pr.Property.Marshaller
	in.accessor = accessor(pr.Source, pr.Property.ManagedType)
	return in
}

// accessor cuts the probed member out of the rendered owner: the property
// block of a class, or the field with its copy-in and copy-out bodies of a
// struct.
func accessor(src, managed string) string {
	lines := strings.Split(src, "\n")
	decl := " " + managed + " " + generator.ProbeMember
	var out []string
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		switch {
		case strings.HasSuffix(trimmed, decl):
			return block(lines, i)
		case strings.HasSuffix(trimmed, decl+";"):
			out = append(out, block(lines, i))
		case strings.HasPrefix(trimmed, "public "+generator.ProbeType+"("),
			strings.HasPrefix(trimmed, "public void ToNative("):
			out = append(out, block(lines, i))
		}
	}
	if len(out) == 0 {
		return strings.TrimSpace(src)
	}
	return strings.Join(out, "\n\n")
}

// block returns the declaration at lines[i] through its closing brace at
// the same indentation, or the single line when it has no body.
func block(lines []string, i int) string {
	l := lines[i]
	indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
	if strings.HasSuffix(strings.TrimSpace(l), ";") {
		return dedent(lines[i:i+1], indent)
	}
	for j := i + 1; j < len(lines); j++ {
		if lines[j] == indent+"}" {
			return dedent(lines[i:j+1], indent)
		}
	}
	return dedent(lines[i:i+1], indent)
}

func dedent(lines []string, indent string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimPrefix(l, indent)
	}
	return strings.Join(out, "\n")
}

func (in inspection) render() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(in.query))
	b.WriteString("\n")
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("kind", in.kind)
	if in.flags != "none" {
		row("flags", in.flags)
	}
	if in.dim > 1 {
		row("dimension", fmt.Sprint(in.dim))
	}
	row("candidates", strings.Join(in.candidates, ", "))
	row("translator", funcStyle.Render(in.translator))
	row("managed", typeStyle.Render(in.managed))
	row("marshaller", typeStyle.Render(in.marshaller))
	if in.err != nil {
		b.WriteString(errorStyle.Render("error: " + in.err.Error()))
		b.WriteString("\n")
	}
	if in.accessor != "" {
		b.WriteString("\n")
		b.WriteString(resultStyle.Render(in.accessor))
		b.WriteString("\n")
	}
	return b.String()
}
