package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	verbose    bool
	format     string // "text" | "json"

	cfg Config
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "odatafmt",
		Short: "Format expressions into OData query options",
		Long: `odatafmt turns expression and query documents written in YAML into the
$filter, $select, $orderby, $expand and custom query options of an OData URI.

Property names are resolved against a schema document (--schema) or a
database (--dsn) when one is given, and emitted verbatim otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return opts.resolveConfig(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.StringVar(&opts.format, "format", "text", "output format (text|json)")
	flags.StringVar(&opts.cfg.Namespace, "namespace", "", "default namespace")
	flags.StringVar(&opts.cfg.Protocol, "protocol", "", "OData protocol version (1.0 to 4.01)")
	flags.BoolVar(&opts.cfg.EnumPrefixFree, "enum-prefix-free", false, "render enum members without the type name")
	flags.BoolVar(&opts.cfg.IgnoreUnmappedProperties, "ignore-unmapped", false, "keep unknown properties verbatim")
	flags.BoolVar(&opts.cfg.Geospatial, "geospatial", false, "enable geo.* functions")
	flags.StringVar(&opts.cfg.Schema, "schema", "", "schema document")
	flags.StringVar(&opts.cfg.DSN, "dsn", "", "database to introspect (sqlite:<path> or postgres://...)")

	cmd.AddCommand(newFilterCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))

	return cmd
}

// resolveConfig merges the config file into the flags that were not set
// explicitly.
func (o *rootOptions) resolveConfig(cmd *cobra.Command) error {
	if o.configPath == "" {
		return nil
	}
	file, err := loadConfigFile(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("namespace") {
		o.cfg.Namespace = file.Namespace
	}
	if !flags.Changed("protocol") {
		o.cfg.Protocol = file.Protocol
	}
	if !flags.Changed("enum-prefix-free") {
		o.cfg.EnumPrefixFree = file.EnumPrefixFree
	}
	if !flags.Changed("ignore-unmapped") {
		o.cfg.IgnoreUnmappedProperties = file.IgnoreUnmappedProperties
	}
	if !flags.Changed("geospatial") {
		o.cfg.Geospatial = file.Geospatial
	}
	if !flags.Changed("schema") {
		o.cfg.Schema = file.Schema
	}
	if !flags.Changed("dsn") {
		o.cfg.DSN = file.DSN
	}
	return nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
