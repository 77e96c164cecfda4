package cmd

import (
	"github.com/covtrail/covtrail/core"
	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/coveralls"
	"github.com/covtrail/covtrail/internal/publish"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// coverallsCmd fetches the coverage history of one repository.
var coverallsCmd = &cobra.Command{
	Use:   "coveralls <repo>",
	Short: "Fetch every build coverage report of a repository from Coveralls.",
	Long: `Retrieve the full build history Coveralls holds for a repository and emit one
item per build, newest first.

The repository is given as <host>/<owner>/<name>, exactly as it appears in
the Coveralls URL. Every page is fetched; a failure on any page aborts the
whole fetch and nothing is emitted.

Each item carries:
- The build record (commit, branch, coverage, change, message, ...)
- A stable uuid derived from the repository and the commit SHA
- The moment the history was retrieved

Examples:
  # Print the history as JSON
  covtrail coveralls github/chaoss/grimoirelab-perceval

  # Show a table in the terminal
  covtrail coveralls github/chaoss/grimoirelab-perceval --output text

  # Write a Parquet file for DuckDB or pandas
  covtrail coveralls github/user/repo --output parquet --output-file coverage.parquet

  # Track the run and publish every item to Kafka
  covtrail coveralls github/user/repo --run-backend sqlite --kafka-brokers localhost:19092`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg.BackendName = coveralls.BackendName

		var sink contract.ItemSink
		if len(cfg.KafkaBrokers) > 0 {
			kafkaSink, err := publish.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := kafkaSink.Close(); err != nil {
					logger.Warn("Failed to close kafka sink", zap.Error(err))
				}
			}()
			sink = kafkaSink
		}

		return core.ExecuteFetch(rootCtx, cfg, runManager, sink, logger)
	},
}
