package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ousttrue/pycpptool/internal/config"
	"github.com/ousttrue/pycpptool/internal/diag"
	"github.com/ousttrue/pycpptool/internal/diagfmt"
	"github.com/ousttrue/pycpptool/internal/driver"
	"github.com/ousttrue/pycpptool/internal/ingest"
	"github.com/ousttrue/pycpptool/internal/layout"
	"github.com/ousttrue/pycpptool/internal/source"
	"github.com/ousttrue/pycpptool/internal/version"
)

// registerHeaderFlags wires the flags shared by every command that
// runs the pipeline.
func registerHeaderFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("include", "i", nil, "owned header basename or glob, repeatable")
	cmd.Flags().StringArrayP("include-dir", "I", nil, "directory searched for quoted includes, repeatable")
	cmd.Flags().String("profile", "", "layout profile (x64|x86 or a [profiles] entry)")
}

// requestFor merges the nearest cpptool.toml with the command line into
// a driver request. Precedence: flag over manifest over built-in
// default. The returned manifest is nil when none was found.
func requestFor(cmd *cobra.Command, args []string) (driver.Request, *config.Manifest, error) {
	var req driver.Request

	manifest, found, err := config.LoadFrom(".")
	if err != nil {
		return req, nil, reportConfigError(cmd, diag.CfgBadManifest, err.Error())
	}
	if found {
		p := manifest.Config.Project
		req.Root = manifest.Resolve(p.Root)
		req.Owned = p.Owned
		req.IncludeDirs = manifest.ResolveAll(p.IncludeDirs)
		req.Noise = p.Noise
		req.Prefix = p.Prefix
		req.WellKnown = manifest.Config.Types
		req.DLLs = manifest.Config.DLL
		if p.Profile != "" {
			// Load validated the name already
			if prof, ok := manifest.Profile(p.Profile); ok {
				req.Profile = prof
			}
		}
	} else {
		manifest = nil
	}

	if len(args) > 0 {
		req.Root = args[0]
	}
	if req.Root == "" {
		return req, manifest, reportConfigError(cmd, diag.CfgBadRootHeader,
			"no root header: pass one as an argument or set [project].root in cpptool.toml")
	}

	owned, err := cmd.Flags().GetStringArray("include")
	if err != nil {
		return req, manifest, fmt.Errorf("failed to get include flag: %w", err)
	}
	if len(owned) > 0 {
		req.Owned = owned
	}
	dirs, err := cmd.Flags().GetStringArray("include-dir")
	if err != nil {
		return req, manifest, fmt.Errorf("failed to get include-dir flag: %w", err)
	}
	if len(dirs) > 0 {
		req.IncludeDirs = dirs
	}

	profileName, err := cmd.Flags().GetString("profile")
	if err != nil {
		return req, manifest, fmt.Errorf("failed to get profile flag: %w", err)
	}
	if profileName != "" {
		prof, ok := resolveProfileName(manifest, profileName)
		if !ok {
			return req, manifest, reportConfigError(cmd, diag.CfgBadProfile,
				fmt.Sprintf("unknown profile %q (known profiles: %v)", profileName, knownProfiles(manifest)))
		}
		req.Profile = prof
	}

	req.MaxDiagnostics, err = cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return req, manifest, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	req.Timings, err = cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return req, manifest, fmt.Errorf("failed to get timings flag: %w", err)
	}
	return req, manifest, nil
}

func resolveProfileName(m *config.Manifest, name string) (layout.Profile, bool) {
	if m != nil {
		return m.Profile(name)
	}
	return layout.ByName(name)
}

func knownProfiles(m *config.Manifest) []string {
	if m != nil {
		return m.ProfileNames()
	}
	return layout.Names()
}

// attachCache opens the user parse cache when --cache is set, or when
// the manifest asks for it and the flag was left alone.
func attachCache(cmd *cobra.Command, req *driver.Request, manifestDefault bool) error {
	on, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return fmt.Errorf("failed to get cache flag: %w", err)
	}
	if !cmd.Flags().Changed("cache") && manifestDefault {
		on = true
	}
	if !on {
		return nil
	}
	c, err := ingest.OpenCache("cpptool")
	if err != nil {
		return fmt.Errorf("cannot open parse cache: %w", err)
	}
	req.Cache = c
	return nil
}

func colorEnabled(cmd *cobra.Command) bool {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false
	}
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))
}

func quietEnabled(cmd *cobra.Command) bool {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return false
	}
	return quiet
}

// renderDiagnostics writes the bag in the requested format.
func renderDiagnostics(cmd *cobra.Command, format string, bag *diag.Bag, fs *source.FileSet, withNotes, fullPath bool) error {
	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	switch format {
	case "pretty":
		diagfmt.Pretty(os.Stdout, bag, fs, diagfmt.PrettyOpts{
			Color:     colorEnabled(cmd),
			Context:   2,
			PathMode:  pathMode,
			ShowNotes: withNotes,
		})
	case "short":
		output := diag.FormatShort(bag.Items(), fs, withNotes)
		if output != "" {
			fmt.Fprintln(os.Stdout, output)
		}
	case "json":
		opts := diagfmt.JSONOpts{IncludePositions: true, PathMode: pathMode, IncludeNotes: withNotes}
		if err := diagfmt.JSON(os.Stdout, bag, fs, opts); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	case "sarif":
		meta := diagfmt.SarifRunMeta{ToolName: "cpptool", ToolVersion: version.Number}
		if err := diagfmt.Sarif(os.Stdout, bag, fs, meta); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}

// reportConfigError renders a configuration failure through the same
// diagnostics path a run would use, then exits non-zero without cobra
// re-printing anything.
func reportConfigError(cmd *cobra.Command, code diag.Code, msg string) error {
	bag := diag.NewBag(1)
	rep := &diag.BagReporter{Bag: bag}
	rep.Report(code, diag.SevError, source.Span{}, msg, nil)
	diagfmt.Pretty(os.Stdout, bag, source.NewFileSet(), diagfmt.PrettyOpts{Color: colorEnabled(cmd)})
	return silentExit(cmd)
}

// silentExit forces a non-zero exit after diagnostics already went to
// the terminal.
func silentExit(cmd *cobra.Command) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return errors.New("")
}
