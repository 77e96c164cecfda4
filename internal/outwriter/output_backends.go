package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/olekukonko/tablewriter"
)

// WriteBackendList outputs the registered backends.
func WriteBackendList(infos []schema.BackendInfo, cfg *contract.Config) error {
	if cfg.Output == schema.ParquetOut {
		return contract.NewConfigurationError("parquet output is not supported for backend listings")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeBackends(w, infos, cfg.Output)
	}, "Wrote backends")
}

func writeBackends(w io.Writer, infos []schema.BackendInfo, mode schema.OutputMode) error {
	switch mode {
	case schema.JSONOut:
		if infos == nil {
			infos = []schema.BackendInfo{}
		}
		return writeJSON(w, infos)
	case schema.CSVOut:
		header := []string{"name", "version", "categories", "has_archiving", "has_resuming"}
		return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
			for _, info := range infos {
				if err := cw.Write([]string{
					info.Name,
					info.Version,
					joinCategories(info.Categories, "|"),
					strconv.FormatBool(info.HasArchiving),
					strconv.FormatBool(info.HasResuming),
				}); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Name", "Version", "Categories", "Archiving", "Resuming"})
		var data [][]string
		for _, info := range infos {
			data = append(data, []string{
				info.Name,
				info.Version,
				joinCategories(info.Categories, ", "),
				yesNo(info.HasArchiving),
				yesNo(info.HasResuming),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		return table.Render()
	}
}

func joinCategories(cats []schema.Category, sep string) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, sep)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
