package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ousttrue/pycpptool/internal/driver"
)

var genCmd = &cobra.Command{
	Use:   "gen [flags] [root.h]",
	Short: "Generate bindings from a C++ header tree",
	Long:  "Generate D and C# bindings and a JSON model from the root header and every owned header it includes. All targets are staged in memory first; nothing is written when any of them fails.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGen,
}

func init() {
	registerHeaderFlags(genCmd)
	genCmd.Flags().String("out", "", "output directory, one subdirectory per target")
	genCmd.Flags().String("targets", "", "comma-separated generation targets (d|csharp|json)")
	genCmd.Flags().String("prefix", "", "module prefix and namespace for generated code")
	genCmd.Flags().Int("jobs", 0, "max parallel emitters (0=auto)")
	genCmd.Flags().Bool("cache", false, "reuse parsed headers from the user cache")
	genCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	genCmd.Flags().Bool("fullpath", false, "emit absolute file paths in diagnostics")
}

func runGen(cmd *cobra.Command, args []string) error {
	req, manifest, err := requestFor(cmd, args)
	if err != nil {
		return err
	}

	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	targetsValue, err := cmd.Flags().GetString("targets")
	if err != nil {
		return fmt.Errorf("failed to get targets flag: %w", err)
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return fmt.Errorf("failed to get prefix flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}

	// manifest [gen] defaults fill whatever the flags left alone
	cacheDefault := false
	if manifest != nil {
		g := manifest.Config.Gen
		if out == "" {
			out = manifest.Resolve(g.Out)
		}
		if targetsValue == "" {
			req.Targets = g.Targets
		}
		if jobs == 0 {
			jobs = g.Jobs
		}
		cacheDefault = g.Cache
	}
	if out == "" {
		out = "generated"
	}
	req.OutDir = out
	if targetsValue != "" {
		req.Targets = splitTargets(targetsValue)
	}
	if len(req.Targets) == 0 {
		req.Targets = []string{"d", "csharp", "json"}
	}
	req.Jobs = jobs
	if prefix != "" {
		req.Prefix = prefix
	}
	if err := attachCache(cmd, &req, cacheDefault); err != nil {
		return err
	}

	res, runErr := driver.Generate(cmd.Context(), req)

	if err := renderDiagnostics(cmd, "pretty", res.Bag, res.Files, withNotes, fullPath); err != nil {
		return err
	}
	if runErr != nil {
		if res.Bag.HasErrors() {
			return silentExit(cmd)
		}
		return fmt.Errorf("generation failed: %w", runErr)
	}

	if !quietEnabled(cmd) {
		for _, rel := range res.Written {
			fmt.Fprintf(os.Stdout, "wrote %s\n", path.Join(filepath.ToSlash(out), rel))
		}
	}
	return nil
}

func splitTargets(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
