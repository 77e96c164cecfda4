package cmd

import (
	"github.com/covtrail/covtrail/core"
	"github.com/covtrail/covtrail/internal/outwriter"
	"github.com/spf13/cobra"
)

// backendsCmd lists the registered backends and what they can do.
var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the available backends and their capabilities.",
	Long: `Show every backend compiled into covtrail together with the item
categories it produces and whether it supports archiving or resuming.

Examples:
  covtrail backends
  covtrail backends --output text`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return outwriter.NewOutWriter().WriteBackends(core.Backends(), cfg)
	},
}
