package pregen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/tools/imports"
)

const pkgPath = "github.com/syssam/csmap/pregen"

// Option configures source generation.
type Option func(*config) error

type config struct {
	pkg     string
	varName string
	header  string
}

// WithPackage sets the package name of the generated file. Default "views".
func WithPackage(name string) Option {
	return func(c *config) error {
		if name == "" {
			return fmt.Errorf("pregen: package name cannot be empty")
		}
		c.pkg = name
		return nil
	}
}

// WithVarName sets the name of the generated variable. The default is the
// camel-cased container name followed by "Views".
func WithVarName(name string) Option {
	return func(c *config) error {
		if name == "" {
			return fmt.Errorf("pregen: variable name cannot be empty")
		}
		c.varName = name
		return nil
	}
}

// WithHeader sets the header comment of the generated file.
func WithHeader(header string) Option {
	return func(c *config) error {
		c.header = header
		return nil
	}
}

// Generate renders v as a Go source file registering the views on init.
//
//	src, err := pregen.Generate(views, pregen.WithPackage("mappingviews"))
func Generate(v *Views, opts ...Option) ([]byte, error) {
	cfg := &config{
		pkg:     "views",
		varName: inflect.Camelize(v.Container) + "Views",
		header:  "Code generated by csmap. DO NOT EDIT.",
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	f := jen.NewFile(cfg.pkg)
	if cfg.header != "" {
		f.HeaderComment(cfg.header)
	}
	f.Commentf("%s holds the pre-computed %s view cell groups of container %s.", cfg.varName, v.Mode, v.Container)
	f.Var().Id(cfg.varName).Op("=").Op("&").Qual(pkgPath, "Views").Values(jen.Dict{
		jen.Id("Container"):   jen.Lit(v.Container),
		jen.Id("Signature"):   jen.Lit(v.Signature),
		jen.Id("Mode"):        jen.Lit(v.Mode),
		jen.Id("Groups"):      groups(v.Groups),
		jen.Id("Identifiers"): stringSlice(v.Identifiers),
	})
	f.Func().Id("init").Params().Block(
		jen.Qual(pkgPath, "Register").Call(jen.Id(cfg.varName)),
	)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("pregen: render %s: %w", v.Container, err)
	}
	return imports.Process(cfg.pkg+".go", buf.Bytes(), nil)
}

// WriteFile generates v into path, creating the directory if needed.
func WriteFile(path string, v *Views, opts ...Option) error {
	src, err := Generate(v, opts...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func groups(gs []Group) jen.Code {
	values := make([]jen.Code, len(gs))
	for i, g := range gs {
		cells := make([]jen.Code, len(g.Cells))
		for j, c := range g.Cells {
			cells[j] = jen.Values(jen.Dict{
				jen.Id("Number"): jen.Lit(c.Number),
				jen.Id("Extent"): jen.Lit(c.Extent),
				jen.Id("Table"):  jen.Lit(c.Table),
				jen.Id("Types"):  stringSlice(c.Types),
				jen.Id("CSlots"): stringSlice(c.CSlots),
				jen.Id("SSlots"): stringSlice(c.SSlots),
			})
		}
		values[i] = jen.Values(jen.Dict{
			jen.Id("Cells"):   jen.Index().Qual(pkgPath, "Cell").Values(cells...),
			jen.Id("Extents"): stringSlice(g.Extents),
		})
	}
	return jen.Index().Qual(pkgPath, "Group").Values(values...)
}

func stringSlice(s []string) jen.Code {
	if s == nil {
		return jen.Nil()
	}
	values := make([]jen.Code, len(s))
	for i, v := range s {
		values[i] = jen.Lit(v)
	}
	return jen.Index().String().Values(values...)
}
