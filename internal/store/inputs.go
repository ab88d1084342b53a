package store

import (
	"database/sql"
	"strings"

	"github.com/sells-group/territory-cli/internal/model"
)

// The normalized inputs of the latest run are kept next to the assignment
// table so any row can be traced back to the master entry and the rep
// activity it came from.
const (
	zipMasterTable   = "zip_master"
	repActivityTable = "rep_activity"
)

var zipMasterColumns = []string{
	"zip", "lat", "lng", "city", "state", "state_name", "county", "population", "timezone", "run_id",
}

var repActivityColumns = []string{
	"zip", "rep_email", "rep_name", "deal_count", "status", "run_id",
}

var selectRepActivity = "SELECT " + strings.Join(repActivityColumns[:len(repActivityColumns)-1], ", ") + " FROM " + repActivityTable

func zipMasterRows(records []model.ZipRecord, runID string) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.Zip, r.Latitude, r.Longitude, r.City, r.State,
			r.StateName, r.County, r.Population, r.Timezone, runID,
		}
	}
	return rows
}

func repActivityRows(records []model.RepActivityRecord, runID string) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Zip, r.RepEmail, r.RepName, r.DealCount, r.Status, runID}
	}
	return rows
}

// scanRepActivity reads the columns of selectRepActivity.
func scanRepActivity(row scannable) (model.RepActivityRecord, error) {
	var (
		rec  model.RepActivityRecord
		name sql.NullString
	)
	if err := row.Scan(&rec.Zip, &rec.RepEmail, &name, &rec.DealCount, &rec.Status); err != nil {
		return rec, err
	}
	rec.RepName = name.String
	return rec, nil
}
