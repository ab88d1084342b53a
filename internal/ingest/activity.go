package ingest

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/territory-cli/internal/activity"
	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

var activityColumns = []column{
	{name: "zip", aliases: []string{"d.Property Zip", "property_zip", "zip", "zipcode", "zip_code"}, required: true},
	{name: "email", aliases: []string{"User Email", "rep_email", "owner_email", "email"}, required: true},
	{name: "count", aliases: []string{"Deal Count", "deal_count", "deals"}, required: true},
	{name: "status", aliases: []string{"Deal Owner Status", "status", "owner_status"}},
	{name: "name", aliases: []string{"U.Full Name", "rep_name", "owner_name", "name"}},
}

// ActivityOptions configures LoadActivity.
type ActivityOptions struct {
	Sheet        string
	PadShortZips bool
}

// LoadActivity reads rep activity rows, resolving each ZIP against master.
// Unknown ZIPs, unusable counts and rows without a rep are skipped and
// counted.
func LoadActivity(ctx context.Context, path string, master *zipcode.Master, opts ActivityOptions) ([]activity.Row, LoadStats, error) {
	stats := LoadStats{Rejected: &zipcode.Rejections{}}
	if master == nil {
		return nil, stats, eris.New("ingest: load activity: zip master is required")
	}

	tbl, err := Open(ctx, path, ReadOptions{Sheet: opts.Sheet})
	if err != nil {
		return nil, stats, err
	}
	idx, err := resolveColumns(model.SourceRepActivity, tbl.Header, activityColumns)
	if err != nil {
		drain(tbl)
		return nil, stats, err
	}

	var rows []activity.Row
	for rec := range tbl.Rows {
		stats.Rows++
		row, reason := parseActivityRow(rec, idx, master, opts.PadShortZips)
		if reason != zipcode.ReasonOK {
			stats.Rejected.Add(reason)
			continue
		}
		rows = append(rows, row)
	}
	if err := <-tbl.Errs; err != nil {
		return nil, stats, eris.Wrap(err, "ingest: load activity")
	}
	stats.Kept = len(rows)

	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", model.SourceRepActivity))
	log.Info("ingest: rep activity loaded",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("kept", stats.Kept),
	)
	if n := stats.Rejected.Total(); n > 0 {
		log.Warn("ingest: rep activity rows rejected", zap.Int("rejected", n), zap.Any("reasons", stats.Rejected.Map()))
	}
	return rows, stats, nil
}

func parseActivityRow(rec Record, idx columnIndex, master *zipcode.Master, padShort bool) (activity.Row, zipcode.Reason) {
	zc := rec.Get(idx["zip"])
	zip, reason := master.Resolve(zc.Text, zc.Numeric, padShort)
	if reason != zipcode.ReasonOK {
		return activity.Row{}, reason
	}

	email := activity.NormalizeEmail(rec.Get(idx["email"]).Text)
	if email == "" {
		return activity.Row{}, zipcode.ReasonMissingRep
	}

	count, reason := parseDealCount(rec.Get(idx["count"]).Text)
	if reason != zipcode.ReasonOK {
		return activity.Row{}, reason
	}

	return activity.Row{
		Zip:       zip,
		RepEmail:  email,
		RepName:   rec.Get(idx["name"]).Text,
		DealCount: count,
		Status:    rec.Get(idx["status"]).Text,
	}, zipcode.ReasonOK
}

// parseDealCount accepts integers and decimals (truncated). An empty cell
// counts as zero deals.
func parseDealCount(s string) (int64, zipcode.Reason) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, zipcode.ReasonOK
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, zipcode.ReasonNegativeDealCount
		}
		return n, zipcode.ReasonOK
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, zipcode.ReasonNonNumericDealCount
	}
	if f < 0 {
		return 0, zipcode.ReasonNegativeDealCount
	}
	return int64(f), zipcode.ReasonOK
}
