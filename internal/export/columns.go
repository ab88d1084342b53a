package export

import (
	"strconv"

	"github.com/sells-group/territory-cli/internal/model"
)

// Columns is the column order of tabular exports.
var Columns = []string{
	"zip",
	"lat",
	"lng",
	"city",
	"state",
	"status",
	"owner_email",
	"owner_name",
	"reason",
	"source_score",
	"dominance_ratio",
	"neighbor_count",
	"deal_count",
}

// Row renders an assignment in Columns order. Null values are empty.
func Row(a model.TerritoryAssignment) []string {
	return []string{
		a.Zip,
		formatFloat(a.Latitude),
		formatFloat(a.Longitude),
		a.City,
		a.State,
		string(a.Status),
		a.Owner(),
		a.OwnerName,
		a.Reason,
		formatOptional(a.SourceScore),
		formatOptional(a.DominanceRatio),
		strconv.Itoa(a.NeighborCount),
		strconv.FormatInt(a.DealCount, 10),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}
