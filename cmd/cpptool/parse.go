package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ousttrue/pycpptool/internal/driver"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] [root.h]",
	Short: "Analyze headers and report diagnostics without generating",
	Long:  "Run the full analysis pipeline over the header tree and report what it found: missing includes, layout problems, unsupported interface shapes. Nothing is written.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runParse,
}

func init() {
	registerHeaderFlags(parseCmd)
	parseCmd.Flags().String("format", "", "output format (pretty|json|sarif|short)")
	parseCmd.Flags().Bool("cache", false, "reuse parsed headers from the user cache")
	parseCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	parseCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

func runParse(cmd *cobra.Command, args []string) error {
	req, manifest, err := requestFor(cmd, args)
	if err != nil {
		return err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format == "" && manifest != nil {
		format = manifest.Config.Parse.Format
	}
	if format == "" {
		format = "pretty"
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	if err := attachCache(cmd, &req, false); err != nil {
		return err
	}

	res, runErr := driver.Parse(cmd.Context(), req)

	if err := renderDiagnostics(cmd, format, res.Bag, res.Files, withNotes, fullPath); err != nil {
		return err
	}
	if runErr != nil {
		if res.Bag.HasErrors() {
			return silentExit(cmd)
		}
		return fmt.Errorf("parse failed: %w", runErr)
	}

	if format == "pretty" && !quietEnabled(cmd) {
		fmt.Fprintf(os.Stdout, "parsed %d headers: %d types, %d interfaces\n",
			len(res.Headers), res.Graph.Len()-1, res.Table.Len())
	}
	if res.Bag.HasErrors() {
		return silentExit(cmd)
	}
	return nil
}
