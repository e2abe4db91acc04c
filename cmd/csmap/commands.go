package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/internal/fixture"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/pregen"
	"github.com/syssam/csmap/signature"
	"github.com/syssam/csmap/viewgen"
)

// loadAll loads and freezes the descriptors at paths.
func loadAll(paths []string) ([]*mapping.ContainerMapping, error) {
	cms := make([]*mapping.ContainerMapping, len(paths))
	for i, path := range paths {
		cm, err := fixture.Load(path)
		if err != nil {
			return nil, err
		}
		cm.Freeze()
		cms[i] = cm
	}
	return cms, nil
}

func (c *cli) addWatchFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&c.watch, "watch", "w", false, "Recompute whenever a descriptor changes")
}

// run calls fn once, or on every change of paths in watch mode.
func (c *cli) run(ctx context.Context, paths []string, fn func() error) error {
	if !c.watch {
		return fn()
	}
	return watch(ctx, c.log, paths, fn)
}

func (c *cli) cellgroupsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "cellgroups <descriptor>...",
		Short: "Compute the cell groups of mapping descriptors",
		Long: "Partitions the cells of every descriptor into groups of cells connected through shared " +
			"extents or store foreign keys.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "yaml":
			default:
				return fmt.Errorf("unknown output format %q; use text or yaml", format)
			}
			return c.run(cmd.Context(), args, func() error {
				return c.cellgroups(cmd.Context(), cmd.OutOrStdout(), args, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "Output format: text or yaml")
	c.addWatchFlag(cmd)
	return cmd
}

func (c *cli) cellgroups(ctx context.Context, w io.Writer, paths []string, format string) error {
	cms, err := loadAll(paths)
	if err != nil {
		return err
	}
	cfg, err := c.cfg.viewConfig()
	if err != nil {
		return err
	}
	cache := c.newCache()
	if err := cache.Warm(ctx, cfg, cms...); err != nil {
		return err
	}
	var enc *yaml.Encoder
	if format == "yaml" {
		enc = yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
	}
	for i, cm := range cms {
		out, err := cache.GetCellgroups(cm, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		if enc == nil {
			printCellGroups(w, cm, cfg, out)
			continue
		}
		views, err := pregen.FromOutput(cm, cfg, out)
		if err != nil {
			return err
		}
		if err := enc.Encode(views); err != nil {
			return fmt.Errorf("encode views of %s: %w", paths[i], err)
		}
	}
	return nil
}

func printCellGroups(w io.Writer, cm *mapping.ContainerMapping, cfg viewgen.Config, out *viewgen.Output) {
	fmt.Fprintf(w, "%s (%s views)\n", cm.Identity(), cfg.Mode)
	if !out.Success {
		fmt.Fprintln(w, "  no cells")
		return
	}
	for i, g := range out.CellGroups {
		names := make([]string, len(g.Extents))
		for j, e := range g.Extents {
			names[j] = e.SetName()
		}
		fmt.Fprintf(w, "group %d: %s\n", i+1, strings.Join(names, ", "))
		for _, cell := range g.Cells {
			fmt.Fprintf(w, "  %s\n", cell)
		}
	}
	for _, fk := range out.ForeignKeyConstraints {
		fmt.Fprintf(w, "foreign key %s\n", fk)
	}
	for _, tv := range out.TypeViews {
		name := tv.Type.FullName()
		if tv.IncludeSubtypes {
			name = "IsTypeOf(" + name + ")"
		}
		fmt.Fprintf(w, "type view %s %s\n", tv.Set.Name, name)
	}
}

func (c *cli) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <descriptor>...",
		Short: "Validate mapping descriptors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), args, func() error {
				return c.validate(cmd.OutOrStdout(), args)
			})
		},
	}
	c.addWatchFlag(cmd)
	return cmd
}

func (c *cli) validate(w io.Writer, paths []string) error {
	var errs []error
	for _, path := range paths {
		cm, err := fixture.Load(path)
		if err != nil {
			return err
		}
		res := mapping.Validate(cm, mapping.ValidateAmbiguity())
		fmt.Fprintf(w, "%s: %s\n", path, strings.TrimSuffix(res.String(), "\n"))
		if res.HasErrors() {
			errs = append(errs, fmt.Errorf("%s: %w", path, res.Err()))
		}
	}
	return csmap.NewAggregateError(errs...)
}

func (c *cli) signatureCmd() *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "signature <descriptor>...",
		Short: "Print the mapping signatures of descriptors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expect != "" && len(args) != 1 {
				return fmt.Errorf("--expect takes exactly one descriptor")
			}
			return c.run(cmd.Context(), args, func() error {
				return c.signature(cmd.OutOrStdout(), args, expect)
			})
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "Fail unless the signature equals this hex signature")
	c.addWatchFlag(cmd)
	return cmd
}

func (c *cli) signature(w io.Writer, paths []string, expect string) error {
	cms, err := loadAll(paths)
	if err != nil {
		return err
	}
	for i, cm := range cms {
		sig, err := signature.Compute(cm)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", paths[i], sig, sig.Version())
		if expect == "" {
			continue
		}
		want, err := signature.Parse(expect)
		if err != nil {
			return err
		}
		if want != sig {
			return &csmap.StaleViewsError{Container: cm.Identity(), Expected: want.String(), Actual: sig.String()}
		}
	}
	return nil
}

func (c *cli) pregenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pregen <descriptor>",
		Short: "Generate Go source holding the cell groups of a descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), args, func() error {
				return c.pregen(args[0])
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default views_gen.go)")
	cmd.Flags().String("package", "", "Package name of the generated file (default views)")
	c.addWatchFlag(cmd)
	return cmd
}

func (c *cli) pregen(path string) error {
	cms, err := loadAll([]string{path})
	if err != nil {
		return err
	}
	cm := cms[0]
	cfg, err := c.cfg.viewConfig()
	if err != nil {
		return err
	}
	out, err := c.newCache().GetCellgroups(cm, cfg)
	if err != nil {
		return err
	}
	views, err := pregen.FromOutput(cm, cfg, out)
	if err != nil {
		return err
	}
	if err := pregen.WriteFile(c.cfg.Pregen.Output, views, pregen.WithPackage(c.cfg.Pregen.Package)); err != nil {
		return err
	}
	c.log.Info("wrote pre-generated views",
		"container", views.Container,
		"signature", views.Signature,
		"groups", len(views.Groups),
		"path", c.cfg.Pregen.Output,
	)
	return nil
}

func (c *cli) discriminateCmd() *cobra.Command {
	var resultSet int
	cmd := &cobra.Command{
		Use:   "discriminate <descriptor> <function> [value]...",
		Short: "Resolve the entity type of a function import result row",
		Long: "Resolves the entity type of a row from the values of its discriminator columns, in the order " +
			"the columns are first referenced by the result mappings. NULL stands for a null value.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.discriminate(cmd.OutOrStdout(), args[0], args[1], args[2:], resultSet)
		},
	}
	cmd.Flags().IntVar(&resultSet, "result-set", 0, "Result set index")
	return cmd
}

func (c *cli) discriminate(w io.Writer, path, function string, args []string, resultSet int) error {
	cms, err := loadAll([]string{path})
	if err != nil {
		return err
	}
	fim := cms[0].FunctionImportMapping(function)
	if fim == nil {
		return fmt.Errorf("%s: unknown function import %q", path, function)
	}
	kb, err := fim.KB(resultSet)
	if err != nil {
		return err
	}
	if len(args) != len(kb.DiscriminatorColumns) {
		return fmt.Errorf("function import %s takes %d discriminator values (%s), got %d",
			function, len(kb.DiscriminatorColumns), strings.Join(kb.DiscriminatorColumns, ", "), len(args))
	}
	values := make([]any, len(args))
	for i, a := range args {
		if a != "NULL" {
			values[i] = a
		}
	}
	t, err := kb.Discriminate(values)
	if err != nil {
		return err
	}
	c.log.Debug("discriminated row", "function", function, "result_set", resultSet, "type", t.FullName())
	fmt.Fprintln(w, t.FullName())
	return nil
}
