package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/pdc/internal/diagram"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		diagramType string
		format      string
		out         string
	)
	cmd := &cobra.Command{
		Use:   "render [spec-file]",
		Short: "Validate a diagram spec and render it without calling a backend",
		Long: `Validate a diagram spec and render it. The input may be bare JSON or model
output with the spec inside prose or a code fence. Formats: mermaid (any
type), ascii, svg and png (flow and state only).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(cmd, "", path)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger(cmd), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.generator.RenderSpec(cmd.Context(), raw, diagramType)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				a.logger.Warn("spec warning", "issue", w.String(), "code", w.Code)
			}

			switch strings.ToLower(format) {
			case "mermaid":
				return writeOutput(cmd, out, withNewline(res.Mermaid))
			case "ascii", "svg", "png":
			default:
				return fmt.Errorf("unknown format %q (mermaid, ascii, svg, png)", format)
			}

			model, err := diagram.FromSpec(res.Spec)
			if err != nil {
				return err
			}
			if strings.EqualFold(format, "ascii") {
				return writeOutput(cmd, out, withNewline(diagram.RenderASCIIAuto(cmd.Context(), model, a.cfg.BinDir)))
			}
			img, err := diagram.RenderImage(cmd.Context(), model, diagram.ImageFormat(strings.ToLower(format)))
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, img)
		},
	}
	cmd.Flags().StringVarP(&diagramType, "type", "t", "", "intended diagram type when the spec omits one")
	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid, ascii, svg, png")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	return cmd
}
