package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/pdc/internal/validation"
)

func newValidateDrawioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-drawio [file]",
		Short: "Check a draw.io document's structure",
		Long: `Check that a draw.io document is non-empty, under the size limit, well-formed
XML, rooted at <mxfile> and has a <diagram> child. Reads stdin without a file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			doc, err := readSource(cmd, path)
			if err != nil {
				return err
			}
			if err := validation.ValidateDrawio(doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
