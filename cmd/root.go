package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/covtrail/covtrail/core"
	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/obs"
	"github.com/covtrail/covtrail/internal/runstore"
	"github.com/covtrail/covtrail/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// runManager is the global run ledger instance.
var runManager contract.RunManager

// logger is replaced by sharedSetup once the log level is known.
var logger = zap.NewNop()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "covtrail",
	Short:              "Fetch the build coverage history of a repository.",
	Long:               `Covtrail retrieves every build coverage report Coveralls holds for a repository and emits it as uniform items.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".covtrail") // Name of config file (without extension)
		viper.SetConfigType("yaml")      // We'll use YAML format
		viper.AddConfigPath(".")         // Look in the current directory
		viper.AddConfigPath("$HOME")     // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("COVTRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("output", string(schema.JSONOut))
	viper.SetDefault("category", string(schema.TestCoverageCategory))
	viper.SetDefault("base-url", contract.DefaultBaseURL)
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("run-backend", string(schema.NoneBackend))
	viper.SetDefault("run-db-connect", "")
	viper.SetDefault("kafka-topic", contract.DefaultKafkaTopic)
	viper.SetDefault("color", "yes")
}

// configSetup unmarshals config, runs validation and builds the logger.
func configSetup(_ *cobra.Command, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.Repo = args[0]
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	l, err := obs.NewLogger(obs.LogConfig{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		App:     "covtrail",
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = l
	core.Version = version
	return nil
}

// sharedSetup runs configSetup and opens the run ledger.
func sharedSetup(_ context.Context, cmd *cobra.Command, args []string) error {
	if err := configSetup(cmd, args); err != nil {
		return err
	}

	// Initialize the run ledger with validated config
	backend := cfg.RunBackend
	if backend == schema.NoneBackend {
		backend = ""
	}
	if err := runstore.InitStores(backend, cfg.RunDBConnect); err != nil {
		return fmt.Errorf("failed to initialize run tracking: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadConfigFile loads the config file if one is present.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return contract.NewConfigurationError("error reading config file: %v", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetRunManager sets the global run ledger manager.
func SetRunManager(mgr contract.RunManager) {
	runManager = mgr
}

// Shutdown flushes the logger and closes the run ledger.
func Shutdown() {
	_ = logger.Sync()
	runstore.CloseStores()
}
