// Package main provides a benchmarking tool for the covtrail CLI.
// It times full history fetches for a set of public repositories, once with the
// run ledger disabled and once recording into SQLite, and writes the results as CSV.
//
// Prerequisites:
// - covtrail binary installed and available in PATH
// - Network access to the Coveralls origin
//
// Usage: go run benchmark/main.go [repo ...]
//
//	repo: Repositories as <host>/<owner>/<name> (defaults to a built-in list)
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// BenchmarkResult holds the averaged timings of one repository.
type BenchmarkResult struct {
	Repository string
	Items      int
	NoneTime   string
	SQLiteTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Timeout time.Duration
	Runs    int
	Repos   []string
	DBPath  string
}

func main() {
	config := BenchmarkConfig{
		Timeout: 5 * time.Minute,
		Runs:    3,
		Repos: []string{
			"github/chaoss/grimoirelab-perceval",
			"github/chaoss/grimoirelab-elk",
			"github/psf/requests",
		},
		DBPath: filepath.Join(os.TempDir(), "covtrail_benchmark.db"),
	}
	if len(os.Args) > 1 {
		config.Repos = os.Args[1:]
	}

	if _, err := exec.LookPath("covtrail"); err != nil {
		fmt.Printf("Prerequisites check failed: covtrail binary not found in PATH\n")
		os.Exit(1)
	}

	// Start from an empty ledger
	_ = os.Remove(config.DBPath)
	defer func() { _ = os.Remove(config.DBPath) }()

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// runBenchmarks executes both phases for every configured repository.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %v timeout, %d runs per phase\n",
		len(config.Repos), config.Timeout, config.Runs)

	for _, repo := range config.Repos {
		fmt.Printf("Benchmarking %s\n", repo)

		noneAvg, items := runPhase(config, repo, "none")
		sqliteAvg, _ := runPhase(config, repo, "sqlite")

		fmt.Printf("  Items: %d, Ledger none: %s, Ledger sqlite: %s\n", items, noneAvg, sqliteAvg)
		results = append(results, BenchmarkResult{
			Repository: repo,
			Items:      items,
			NoneTime:   noneAvg,
			SQLiteTime: sqliteAvg,
		})
	}

	return results
}

// runPhase fetches repo config.Runs times with the given ledger backend.
// It returns the average wall time and the item count of the last successful run.
func runPhase(config BenchmarkConfig, repo, runBackend string) (string, int) {
	var sum float64
	var ok, items int
	for range config.Runs {
		elapsed, n, err := runFetch(config, repo, runBackend)
		if err != nil {
			fmt.Printf("  %s run failed: %v\n", runBackend, err)
			continue
		}
		sum += elapsed.Seconds()
		items = n
		ok++
	}
	if ok == 0 {
		return "FAILED", 0
	}
	return fmt.Sprintf("%.3fs", sum/float64(ok)), items
}

// runFetch runs one CSV fetch and counts the emitted rows.
func runFetch(config BenchmarkConfig, repo, runBackend string) (time.Duration, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	args := []string{"coveralls", repo, "--output", "csv", "--run-backend", runBackend}
	if runBackend == "sqlite" {
		args = append(args, "--run-db-connect", config.DBPath)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "covtrail", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, 0, err
	}
	records, readErr := csv.NewReader(stdout).ReadAll()
	if err := cmd.Wait(); err != nil {
		return 0, 0, err
	}
	if readErr != nil {
		return 0, 0, readErr
	}
	elapsed := time.Since(start)

	// Minus the header row
	return elapsed, max(len(records)-1, 0), nil
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("covtrail_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "items", "ledger_none_avg", "ledger_sqlite_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		row := []string{result.Repository, fmt.Sprint(result.Items), result.NoneTime, result.SQLiteTime}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-40s: %5d items, none: %s, sqlite: %s\n", result.Repository, result.Items, result.NoneTime, result.SQLiteTime)
	}
}
