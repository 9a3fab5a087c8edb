package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/medallion-catalog/internal/catalog"
	"github.com/rpattn/medallion-catalog/internal/config"
	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/export"
	"github.com/rpattn/medallion-catalog/internal/logging"
	"github.com/rpattn/medallion-catalog/internal/query"
)

// app carries the state resolved by the root command for its subcommands.
type app struct {
	configPath string
	catalogDir string
	verbose    bool

	cfg      config.Config
	logger   *zap.Logger
	registry *catalog.Registry
}

// queryFlags are shared by every command that narrows a catalog.
type queryFlags struct {
	filters []string
	search  string
	sort    string
	desc    bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "Facet filter as facet=value (repeatable)")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Free-text search term")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Field to sort by")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
}

func (f *queryFlags) apply(engine *query.Engine) error {
	for _, raw := range f.filters {
		facet, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(facet) == "" {
			return fmt.Errorf("invalid filter %q, expected facet=value", raw)
		}
		engine.SetFilter(facet, value)
	}
	if f.search != "" {
		engine.SetSearchTerm(f.search)
	}
	if f.sort != "" {
		direction := domain.SortDirectionAsc
		if f.desc {
			direction = domain.SortDirectionDesc
		}
		engine.SetSort(f.sort, direction)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Query and export data catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", ".", "Directory containing config.yaml")
	root.PersistentFlags().StringVar(&a.catalogDir, "catalogs", "", "Catalog directory (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.listCmd(),
		a.queryCmd(),
		a.facetsCmd(),
		a.exportCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, _, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.catalogDir != "" {
		cfg.Catalog.Dir = a.catalogDir
	}
	a.cfg = cfg

	a.logger = zap.NewNop()
	if a.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
		if a.logger, err = logging.New(cfg.Log); err != nil {
			return err
		}
	}

	a.registry, err = catalog.LoadDir(cfg.Catalog.Dir, a.logger)
	return err
}

func (a *app) engine(name string, flags *queryFlags, opts ...query.Option) (*catalog.Catalog, *query.Engine, error) {
	c, err := a.registry.Get(name)
	if err != nil {
		return nil, nil, err
	}
	engine := c.Engine(opts...)
	if err := flags.apply(engine); err != nil {
		return nil, nil, err
	}
	return c, engine, nil
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries := a.registry.List()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tDOMAIN\tRECORDS")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name, s.Title, s.Domain, s.Records)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print summaries as JSON")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var (
		flags queryFlags
		page  domain.Page
	)
	cmd := &cobra.Command{
		Use:   "query <catalog>",
		Short: "Print the records of a catalog matching filters and search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := a.engine(args[0], &flags)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), engine.Page(page))
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&page.Limit, "limit", 20, "Maximum records to print (0 for all)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "Records to skip")
	return cmd
}

func (a *app) facetsCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "facets <catalog> [facet]",
		Short: "List a catalog's facets, or the values of one facet with match counts",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := a.engine(args[0], &flags)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 1 {
				fmt.Fprintln(tw, "FACET\tFIELD\tKIND")
				for _, f := range engine.Facets() {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Field, f.Kind)
				}
				return tw.Flush()
			}
			for _, v := range engine.FacetValues(args[1]) {
				fmt.Fprintf(tw, "%s\t%d\n", v.Value, v.Count)
			}
			return tw.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		flags     queryFlags
		format    string
		outDir    string
		filename  string
		clipboard bool
		bom       bool
	)
	cmd := &cobra.Command{
		Use:   "export <catalog>",
		Short: "Export the filtered records of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, ok := domain.ParseExportFormat(format)
			if !ok {
				return fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, format)
			}
			var opts []query.Option
			if bom || a.cfg.Export.ByteOrderMark {
				opts = append(opts, query.WithCSVOptions(export.CSVOptions{ByteOrderMark: true}))
			}
			c, engine, err := a.engine(args[0], &flags, opts...)
			if err != nil {
				return err
			}
			if filename == "" {
				filename = c.Name
			}
			file, err := engine.Export(exportFormat, c.Columns(), filename)
			if err != nil {
				return err
			}

			var sink export.Sink
			if clipboard {
				sink = export.NewClipboardSink()
			} else {
				dir := outDir
				if dir == "" {
					dir = a.cfg.Export.Dir
				}
				sink = export.NewFileSink(dir)
			}
			receipt, err := export.NewService(sink, export.WithLogger(a.logger)).Deliver(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", receipt.Rows, receipt.Location)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(domain.ExportFormatCSV), "Export format: csv, json or xlsx")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to the configured export dir)")
	cmd.Flags().StringVar(&filename, "filename", "", "File name without extension (defaults to the catalog name)")
	cmd.Flags().BoolVar(&clipboard, "clipboard", false, "Copy the export to the clipboard instead of writing a file")
	cmd.Flags().BoolVar(&bom, "bom", false, "Prefix CSV exports with a UTF-8 byte order mark")
	return cmd
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
