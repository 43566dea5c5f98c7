package version

import "github.com/fatih/color"

// Version information for the cpptool CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Number is the plain semantic version, for JSON and SARIF output.
	Number = "0.4.0-dev"

	// Version is the colorized form behind the --version flag.
	Version = versionMajorColor.Sprint("0") + "." + versionMinorColor.Sprint("4") + "." + versionPatchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)
