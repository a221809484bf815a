package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	odata "github.com/nlstn/go-odata-client"
)

func newFilterCommand(opts *rootOptions) *cobra.Command {
	var collection string
	var queryOption bool

	cmd := &cobra.Command{
		Use:   "filter [expression.yaml]",
		Short: "Format an expression document",
		Long: `Format an expression document as a $filter expression, or as custom
query options with --query-option. The document is read from stdin when no
file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			node, err := odata.DecodeExpressionYAML(bytes.NewReader(data))
			if err != nil {
				return err
			}
			client, err := opts.cfg.newClient(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			var result string
			if queryOption {
				result, err = client.FormatQueryOption(cmd.Context(), node)
			} else {
				result, err = client.Format(cmd.Context(), collection, node)
			}
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), map[string]string{"filter": result}, result)
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection the references are rooted at")
	cmd.Flags().BoolVar(&queryOption, "query-option", false, "format as custom query options")
	return cmd
}

// queryDocument describes one request:
//
//	collection: Products
//	key: [1]
//	filter: {eq: [{ref: ProductName}, Chai]}
//	select: [ProductName, Price]
//	orderby: [Price desc]
//	expand: [Category]
//	options: {level: 2}
type queryDocument struct {
	Collection       string         `yaml:"collection"`
	Function         string         `yaml:"function"`
	Action           string         `yaml:"action"`
	Key              []any          `yaml:"key"`
	NamedKey         map[string]any `yaml:"namedKey"`
	Filter           yaml.Node      `yaml:"filter"`
	Select           []string       `yaml:"select"`
	OrderBy          []string       `yaml:"orderby"`
	Expand           []string       `yaml:"expand"`
	Custom           yaml.Node      `yaml:"custom"`
	Options          map[string]any `yaml:"options"`
	DynamicContainer string         `yaml:"dynamicContainer"`
}

func decodeQueryDocument(data []byte) (*queryDocument, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var doc queryDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("query document is empty")
		}
		return nil, fmt.Errorf("failed to decode query document: %w", err)
	}
	return &doc, nil
}

// build applies the document to q.
func (d *queryDocument) build(q *odata.Query) error {
	if d.Function != "" {
		q.Function(d.Function)
	}
	if d.Action != "" {
		q.Action(d.Action)
	}
	if len(d.Key) > 0 {
		q.Key(d.Key...)
	}
	if len(d.NamedKey) > 0 {
		q.NamedKey(d.NamedKey)
	}
	if d.DynamicContainer != "" {
		q.WithDynamicContainer(d.DynamicContainer)
	}

	filter, err := decodeExpression(&d.Filter)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if filter != nil {
		q.Filter(filter)
	}
	custom, err := decodeExpression(&d.Custom)
	if err != nil {
		return fmt.Errorf("custom: %w", err)
	}
	if custom != nil {
		q.Custom(custom)
	}
	if len(d.Options) > 0 {
		q.CustomOptions(d.Options)
	}

	q.Select(d.Select...)
	q.Expand(d.Expand...)
	for _, item := range d.OrderBy {
		path, direction, _ := strings.Cut(strings.TrimSpace(item), " ")
		switch strings.ToLower(strings.TrimSpace(direction)) {
		case "", "asc":
			q.OrderBy(path)
		case "desc":
			q.OrderByDescending(path)
		default:
			return fmt.Errorf("orderby: invalid direction %q", direction)
		}
	}
	return nil
}

// decodeExpression decodes an embedded expression node. An absent node is nil.
func decodeExpression(n *yaml.Node) (odata.Node, error) {
	if n.IsZero() {
		return nil, nil
	}
	data, err := yaml.Marshal(n)
	if err != nil {
		return nil, err
	}
	return odata.DecodeExpressionYAML(bytes.NewReader(data))
}

type queryResult struct {
	Resource string   `json:"resource"`
	Key      string   `json:"key,omitempty"`
	Options  []string `json:"options,omitempty"`
	URL      string   `json:"url"`
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [query.yaml]",
		Short: "Format a query document into a relative request URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc, err := decodeQueryDocument(data)
			if err != nil {
				return err
			}
			client, err := opts.cfg.newClient(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			q := client.Query(doc.Collection)
			if err := doc.build(q); err != nil {
				return err
			}
			clauses, err := q.Build(cmd.Context())
			if err != nil {
				return err
			}

			result := queryResult{
				Resource: clauses.Resource,
				Key:      clauses.Key,
				Options:  clauses.Options(),
			}
			result.URL = result.Resource + result.Key
			if len(result.Options) > 0 {
				result.URL += "?" + strings.Join(result.Options, "&")
			}
			return opts.write(cmd.OutOrStdout(), result, result.URL)
		},
	}
	return cmd
}

func newSchemaCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema resolved from --schema or --dsn as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := opts.cfg.Namespace
			if namespace == "" {
				namespace = odata.DefaultNamespace
			}
			model, err := opts.cfg.loadModel(namespace)
			if err != nil {
				return err
			}
			if model == nil {
				return fmt.Errorf("no schema source: use --schema or --dsn")
			}
			return model.WriteYAML(cmd.OutOrStdout())
		},
	}
	return cmd
}

// readInput returns the contents of the file argument, or of stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

// write prints value as JSON or text as plain text.
func (o *rootOptions) write(w io.Writer, value any, text string) error {
	if o.format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
