/*
Package main is the entry point for the conductor CLI.

conductor maintains a per-project memory of distilled knowledge items and
curates it: deduplication by embedding similarity, link inference from
co-occurrence evidence, domain classification, confidence scoring, and
ranking for prompt injection.

Usage:
  conductor [command]

Available Commands:
  add            Add a learning item
  pin            Pin an item (always injected, never decayed)
  mute           Mute an item (never surfaced)
  unpin          Clear pin and mute
  verify         Mark an item as externally verified
  feedback       Record interaction feedback for an item
  compact        Merge semantically duplicate items
  backfill-links Infer links from co-occurrence evidence
  confidence     Recompute the project confidence score
  classify       Compute the project domain signal
  rank           Rank items for injection
  maintain       Run compact, backfill, and confidence in sequence
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "conductor",
		Short:   "Curation engine for per-project LLM memory",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(
		newAddCmd(&configPath),
		newPinCmd(&configPath),
		newMuteCmd(&configPath),
		newUnpinCmd(&configPath),
		newVerifyCmd(&configPath),
		newFeedbackCmd(&configPath),
		newCompactCmd(&configPath),
		newBackfillLinksCmd(&configPath),
		newConfidenceCmd(&configPath),
		newClassifyCmd(&configPath),
		newRankCmd(&configPath),
		newMaintainCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
