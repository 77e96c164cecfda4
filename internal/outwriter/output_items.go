package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/parquet"
	"github.com/covtrail/covtrail/schema"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// itemCSVHeader lists the CSV columns of an item row.
var itemCSVHeader = []string{
	"uuid",
	"origin",
	"tag",
	"category",
	"commit_sha",
	"branch",
	"covered_percent",
	"coverage_change",
	"created_at",
	"retrieved_on",
}

// WriteItemResults outputs fetched items, dispatching based on the output format configured.
func WriteItemResults(items []schema.Item, cfg *contract.Config, duration time.Duration) error {
	var successMsg string
	switch cfg.Output {
	case schema.ParquetOut:
		if err := writeItemsParquet(items, cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		return nil
	case schema.JSONOut:
		successMsg = "Wrote JSON"
	case schema.CSVOut:
		successMsg = "Wrote CSV"
	default:
		successMsg = "Wrote table"
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeItems(w, items, cfg, duration)
	}, successMsg)
}

// writeItems renders the stream formats to w.
func writeItems(w io.Writer, items []schema.Item, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeItemsJSON(w, items); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeItemsCSV(w, items); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeItemsTable(w, items, cfg, duration)
	}
	return nil
}

// writeItemsJSON writes the items as one indented JSON array.
func writeItemsJSON(w io.Writer, items []schema.Item) error {
	if items == nil {
		items = []schema.Item{}
	}
	return writeJSON(w, items)
}

// writeItemsCSV writes one row per item.
func writeItemsCSV(w io.Writer, items []schema.Item) error {
	return writeCSVWithHeader(w, itemCSVHeader, func(cw *csv.Writer) error {
		for _, item := range items {
			rec := []string{
				item.UUID,
				item.Origin,
				item.Tag,
				string(item.Category),
				item.Data.CommitSHA,
				item.Data.String(schema.BranchField),
				numberText(item.Data, schema.CoveredPercentField),
				numberText(item.Data, schema.CoverageChangeField),
				item.Data.String(schema.CreatedAtField),
				item.Data.RetrievedOn.UTC().Format(time.RFC3339Nano),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeItemsParquet flattens the items and writes them to outputFile.
func writeItemsParquet(items []schema.Item, outputFile string) error {
	if outputFile == "" {
		return contract.NewConfigurationError("--output-file is required for parquet output")
	}
	rows, err := parquet.ConvertItems(items)
	if err != nil {
		return err
	}
	if err := parquet.WriteCoverageItemsParquet(rows, outputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", outputFile)
	return nil
}

// writeItemsTable generates and writes the human-readable table.
func writeItemsTable(w io.Writer, items []schema.Item, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := createFormatters(2)
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Commit", "Branch", "Coverage", "Change", "Created", "Message"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var up, down func(...any) string
	if cfg.UseColors {
		up = color.New(color.FgGreen).SprintFunc()
		down = color.New(color.FgRed).SprintFunc()
	} else {
		up = fmt.Sprint
		down = fmt.Sprint
	}

	msgWidth := getMaxMessageWidth(cfg)
	var data [][]string
	for i, item := range items {
		b := item.Data

		coverage := schema.UnknownLabel
		if pct, ok := b.Float(schema.CoveredPercentField); ok {
			label := schema.GetCoverageLabel(pct)
			if cfg.UseColors {
				label = contract.GetColorLabel(pct)
			}
			coverage = fmtFloat(pct) + "% " + label
		}

		change := ""
		if delta, ok := b.Float(schema.CoverageChangeField); ok {
			switch {
			case delta > 0:
				change = up("+" + fmtFloat(delta) + " ▲")
			case delta < 0:
				change = down(fmtFloat(delta) + " ▼")
			default:
				change = fmtFloat(0)
			}
		}

		data = append(data, []string{
			strconv.Itoa(i + 1),
			schema.ShortSHA(b.CommitSHA, 7),
			b.String(schema.BranchField),
			coverage,
			change,
			formatCreatedAt(b.String(schema.CreatedAtField)),
			contract.TruncateText(b.String(schema.CommitMessageField), msgWidth),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	origin := cfg.Repo
	if len(items) > 0 {
		origin = items[0].Origin
	}
	if _, err := fmt.Fprintf(w, "Showing %d builds of %s\n", len(items), origin); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Fetch completed in %v. Run backend: %s\n", duration, cfg.RunBackend); err != nil {
		return err
	}
	return nil
}

// formatCreatedAt renders an RFC 3339 origin timestamp in the table date format.
// Unparseable values are shown as-is.
func formatCreatedAt(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(contract.DateTimeFormat)
}
