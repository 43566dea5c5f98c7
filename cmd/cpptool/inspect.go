package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ousttrue/pycpptool/internal/driver"
	"github.com/ousttrue/pycpptool/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] [root.h]",
	Short: "Browse parsed declarations interactively",
	Long:  "Parse the header tree and open a terminal browser over every type, free function and vtable the run resolved. Without a terminal the listing prints as plain text.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	registerHeaderFlags(inspectCmd)
	inspectCmd.Flags().String("ui", "auto", "interactive browser (auto|on|off)")
	inspectCmd.Flags().Bool("cache", false, "reuse parsed headers from the user cache")
}

func runInspect(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	req, _, err := requestFor(cmd, args)
	if err != nil {
		return err
	}
	if err := attachCache(cmd, &req, false); err != nil {
		return err
	}

	res, runErr := driver.Parse(cmd.Context(), req)
	if runErr != nil {
		if err := renderDiagnostics(cmd, "pretty", res.Bag, res.Files, true, false); err != nil {
			return err
		}
		if res.Bag.HasErrors() {
			return silentExit(cmd)
		}
		return fmt.Errorf("parse failed: %w", runErr)
	}

	if shouldUseTUI(mode) {
		model := ui.NewInspectModel(res)
		program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithAltScreen())
		_, uiErr := program.Run()
		return uiErr
	}

	if res.Bag.Len() > 0 && !quietEnabled(cmd) {
		if err := renderDiagnostics(cmd, "pretty", res.Bag, res.Files, false, false); err != nil {
			return err
		}
	}
	ui.WriteListing(os.Stdout, res)
	return nil
}
