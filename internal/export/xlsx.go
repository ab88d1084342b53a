package export

import (
	"context"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/territory-cli/internal/model"
)

// XLSX writes an Assignments sheet and a Summary sheet.
type XLSX struct {
	Path string
}

// Name implements Exporter.
func (x XLSX) Name() string { return "xlsx" }

// Export implements Exporter.
func (x XLSX) Export(_ context.Context, res *model.RunResult) error {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Assignments")
	if err != nil {
		return eris.Wrap(err, "export: add assignments sheet")
	}
	addStringRow(sheet, Columns)
	for _, a := range res.Assignments {
		row := sheet.AddRow()
		row.AddCell().SetString(a.Zip)
		row.AddCell().SetFloat(a.Latitude)
		row.AddCell().SetFloat(a.Longitude)
		row.AddCell().SetString(a.City)
		row.AddCell().SetString(a.State)
		row.AddCell().SetString(string(a.Status))
		row.AddCell().SetString(a.Owner())
		row.AddCell().SetString(a.OwnerName)
		row.AddCell().SetString(a.Reason)
		setOptionalFloat(row.AddCell(), a.SourceScore)
		setOptionalFloat(row.AddCell(), a.DominanceRatio)
		row.AddCell().SetInt(a.NeighborCount)
		row.AddCell().SetInt64(a.DealCount)
	}

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range summaryRows(res.Summary) {
		addStringRow(summary, kv)
	}

	return writeAtomic(x.Path, func(w io.Writer) error {
		return eris.Wrap(file.Write(w), "export: write xlsx")
	})
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setOptionalFloat(cell *xlsx.Cell, f *float64) {
	if f != nil {
		cell.SetFloat(*f)
	}
}

// summaryRows flattens a run summary into key/value pairs.
func summaryRows(s model.RunSummary) [][]string {
	rows := [][]string{
		{"run_id", s.RunID},
		{"started_at", s.StartedAt.Format(time.RFC3339)},
		{"finished_at", s.FinishedAt.Format(time.RFC3339)},
		{"radius_miles", formatFloat(s.Params.RadiusMiles)},
		{"max_neighbors", strconv.Itoa(s.Params.MaxNeighbors)},
		{"dominance_threshold", formatFloat(s.Params.DominanceThreshold)},
		{"require_active_status", strconv.FormatBool(s.Params.RequireActiveStatus)},
		{"zips_considered", strconv.Itoa(s.ZipsConsidered)},
		{"active", strconv.Itoa(s.Active)},
		{"prospective", strconv.Itoa(s.Prospective)},
		{"unassigned", strconv.Itoa(s.Unassigned)},
		{"zip_master_rows", strconv.Itoa(s.ZipMasterRows)},
		{"activity_rows", strconv.Itoa(s.ActivityRows)},
		{"activity_pairs", strconv.Itoa(s.ActivityPairs)},
		{"zero_count_pairs", strconv.Itoa(s.ZeroCountPairs)},
	}

	sources := make([]string, 0, len(s.Rejected))
	for src := range s.Rejected {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		reasons := make([]string, 0, len(s.Rejected[src]))
		for r := range s.Rejected[src] {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			rows = append(rows, []string{"rejected." + src + "." + r, strconv.Itoa(s.Rejected[src][r])})
		}
	}
	return rows
}
