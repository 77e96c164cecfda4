// Package cmd defines the command-line interface for covtrail.
package cmd

import (
	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(coverallsCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("output", string(schema.JSONOut), "Output format: json or csv or text or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Human-readable console logs instead of JSON")
	rootCmd.PersistentFlags().String("run-backend", string(schema.NoneBackend), "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("run-db-connect", "", "Database connection string for run tracking (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of coverallsCmd to Viper
	coverallsCmd.Flags().String("tag", "", "Label attached to every item (defaults to the repository)")
	coverallsCmd.Flags().String("category", string(schema.TestCoverageCategory), "Category of items to fetch")
	coverallsCmd.Flags().Bool("no-ssl-verify", false, "Disable TLS certificate verification")
	coverallsCmd.Flags().String("base-url", contract.DefaultBaseURL, "Coveralls-compatible origin")
	coverallsCmd.Flags().String("kafka-brokers", "", "Comma-separated Kafka brokers to publish items to")
	coverallsCmd.Flags().String("kafka-topic", contract.DefaultKafkaTopic, "Kafka topic for published items")
	if err := viper.BindPFlags(coverallsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding coveralls flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
