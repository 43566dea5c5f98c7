// Package main implements the cpptool CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ousttrue/pycpptool/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "cpptool",
	Short: "C++ header binding generator",
	Long:  `cpptool parses annotated C++ headers and generates D and C# bindings plus a JSON model of everything it resolved`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "attach pipeline timing information to the diagnostics")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to keep")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
