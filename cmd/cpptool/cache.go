package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ousttrue/pycpptool/internal/ingest"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the parsed-header cache",
	Long:  "Inspect or reset the on-disk cache of parsed headers that gen, parse and inspect reuse when --cache is on.",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached header",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache directory",
	Args:  cobra.NoArgs,
	RunE:  runCacheDir,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheDirCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := ingest.OpenCache("cpptool")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := c.DropAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if !quietEnabled(cmd) {
		fmt.Fprintf(os.Stdout, "cleared %s\n", c.Dir())
	}
	return nil
}

func runCacheDir(cmd *cobra.Command, args []string) error {
	c, err := ingest.OpenCache("cpptool")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	fmt.Fprintln(os.Stdout, c.Dir())
	return nil
}
