package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/pdc/internal/pipeline"
)

type generateFlags struct {
	text   string
	file   string
	out    string
	asJSON bool
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.text, "text", "", "description text (default: read --file or stdin)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the description from a file, - for stdin")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full result as JSON")
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a diagram, draw.io document or integration plan",
	}
	cmd.AddCommand(
		newGenerateDiagramCmd(opts),
		newGenerateDrawioCmd(opts),
		newGenerateIntegrationCmd(opts),
	)
	return cmd
}

func newGenerateDiagramCmd(opts *rootOptions) *cobra.Command {
	var (
		f           generateFlags
		diagramType string
		scene       string
	)
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Generate a Mermaid diagram (flow, sequence, state, cmic_report)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd, f.text, f.file)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger(cmd), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.generator.GenerateDiagram(cmd.Context(), pipeline.DiagramRequest{Type: diagramType, Text: text, Scene: scene})
			if err != nil {
				return err
			}
			return emit(cmd, f, res, res.Mermaid)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&diagramType, "type", "t", "flow", "diagram type")
	cmd.Flags().StringVar(&scene, "scene", "", "optional scenario hint")
	return cmd
}

func newGenerateDrawioCmd(opts *rootOptions) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "drawio",
		Short: "Generate a draw.io document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd, f.text, f.file)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger(cmd), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.generator.GenerateDrawio(cmd.Context(), pipeline.DrawioRequest{Text: text})
			if err != nil {
				return err
			}
			return emit(cmd, f, res, res.XML)
		},
	}
	f.register(cmd)
	return cmd
}

func newGenerateIntegrationCmd(opts *rootOptions) *cobra.Command {
	var (
		f       generateFlags
		swagger string
	)
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Generate a Markdown integration plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd, f.text, f.file)
			if err != nil {
				return err
			}
			var swaggerText string
			if swagger != "" {
				if swaggerText, err = readInput(cmd, "", swagger); err != nil {
					return fmt.Errorf("swagger: %w", err)
				}
			}
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger(cmd), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.generator.GenerateIntegration(cmd.Context(), pipeline.IntegrationRequest{Text: text, SwaggerText: swaggerText})
			if err != nil {
				return err
			}
			return emit(cmd, f, res, res.Markdown)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&swagger, "swagger", "", "OpenAPI/Swagger document of the target system")
	return cmd
}

// emit writes either the full result as JSON or just its primary text.
func emit(cmd *cobra.Command, f generateFlags, result any, text string) error {
	if !f.asJSON {
		return writeOutput(cmd, f.out, withNewline(text))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return writeOutput(cmd, f.out, buf.Bytes())
}
