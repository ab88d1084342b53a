// Package territory runs the inference engine: it aggregates activity, builds
// the seed index, scores every ZIP without direct activity and assembles the
// final assignment table.
package territory

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/territory-cli/internal/activity"
	"github.com/sells-group/territory-cli/internal/geo"
	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/scorer"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

// chunkSize is the number of target ZIPs scored per worker task.
const chunkSize = 512

// Input is everything a run needs, already loaded and normalized.
type Input struct {
	Master   *zipcode.Master
	Activity []activity.Row

	// Raw row counts and rejections gathered while loading, copied into the
	// run summary.
	ZipMasterRows int
	ActivityRows  int
	Rejected      map[string]*zipcode.Rejections
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the scoring parallelism. Values < 1 mean runtime.NumCPU().
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		e.workers = n
	}
}

// WithRequireActiveStatus only lets reps with an active source status own a ZIP.
func WithRequireActiveStatus(on bool) EngineOption {
	return func(e *Engine) { e.requireActive = on }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRunID overrides run ID generation.
func WithRunID(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// Engine computes territory assignments. It holds no per-run state and is
// safe to reuse.
type Engine struct {
	params        scorer.Params
	workers       int
	requireActive bool
	now           func() time.Time
	newID         func() string
}

// NewEngine validates params and returns an Engine.
func NewEngine(params scorer.Params, opts ...EngineOption) (*Engine, error) {
	if err := scorer.ValidateParams(params); err != nil {
		return nil, eris.Wrap(err, "territory: new engine")
	}
	e := &Engine{
		params:  params,
		workers: runtime.NumCPU(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the parameters the engine scores with.
func (e *Engine) Params() scorer.Params {
	return e.params
}

// Run computes one full assignment table. Nothing is returned on error.
func (e *Engine) Run(ctx context.Context, in Input) (*model.RunResult, error) {
	if in.Master == nil {
		return nil, eris.New("territory: run: zip master is required")
	}
	log := zap.L().With(zap.String("component", "territory"))

	started := e.now().UTC()
	agg := activity.Aggregate(in.Activity, activity.Options{RequireActiveStatus: e.requireActive})
	seeds := e.seeds(in.Master, agg)
	index := geo.NewIndex(seeds)

	zips := in.Master.Zips()
	var targets []string
	for _, z := range zips {
		if _, ok := agg.Active[z]; !ok {
			targets = append(targets, z)
		}
	}

	log.Info("territory: scoring",
		zap.Int("zips", len(zips)),
		zap.Int("seeds", index.Len()),
		zap.Int("targets", len(targets)),
		zap.Int("workers", e.workers),
	)

	var decisions map[string]scorer.Decision
	if index.Len() > 0 {
		var err error
		decisions, err = e.score(ctx, in.Master, index, targets)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "territory: run")
	}

	assignments := Build(in.Master, agg.Active, decisions, OwnerNames(agg.Records))

	summary := model.RunSummary{
		RunID:     e.newID(),
		StartedAt: started,
		Params: model.RunParams{
			RadiusMiles:         e.params.RadiusMiles,
			MaxNeighbors:        e.params.MaxNeighbors,
			DominanceThreshold:  e.params.DominanceThreshold,
			RequireActiveStatus: e.requireActive,
		},
		ZipsConsidered: len(assignments),
		ZipMasterRows:  in.ZipMasterRows,
		ActivityRows:   in.ActivityRows,
		ActivityPairs:  len(agg.Records),
		ZeroCountPairs: agg.ZeroCountPairs,
		Rejected:       rejectedMap(in.Rejected),
	}
	for _, a := range assignments {
		switch a.Status {
		case model.StatusActive:
			summary.Active++
		case model.StatusProspective:
			summary.Prospective++
		case model.StatusUnassigned:
			summary.Unassigned++
		}
	}
	summary.FinishedAt = e.now().UTC()

	master := make([]model.ZipRecord, 0, len(zips))
	for _, z := range zips {
		rec, _ := in.Master.Get(z)
		master = append(master, rec)
	}

	return &model.RunResult{
		Summary:     summary,
		Assignments: assignments,
		ZipMaster:   master,
		Activity:    agg.Records,
	}, nil
}

// seeds turns every active ZIP present in the master into an index seed
// weighted by the owner's deal count.
func (e *Engine) seeds(master *zipcode.Master, agg *activity.Result) []geo.Seed {
	seeds := make([]geo.Seed, 0, len(agg.Active))
	for _, z := range agg.ActiveZips() {
		rec, ok := master.Get(z)
		if !ok {
			continue
		}
		a := agg.Active[z]
		seeds = append(seeds, geo.Seed{
			Zip:        z,
			Lat:        rec.Latitude,
			Lng:        rec.Longitude,
			OwnerEmail: a.OwnerEmail,
			DealCount:  a.OwnerDealCount,
		})
	}
	return seeds
}

// score evaluates targets in parallel. Each chunk writes only its own slots
// of the result slice, so ordering never depends on scheduling.
func (e *Engine) score(ctx context.Context, master *zipcode.Master, index *geo.Index, targets []string) (map[string]scorer.Decision, error) {
	results := make([]scorer.Decision, len(targets))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for start := 0; start < len(targets); start += chunkSize {
		end := min(start+chunkSize, len(targets))
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				rec, _ := master.Get(targets[i])
				neighbors := index.Nearest(rec.Latitude, rec.Longitude, e.params.RadiusMiles, e.params.MaxNeighbors)
				results[i] = scorer.Score(neighbors, e.params.DominanceThreshold)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "territory: score")
	}

	out := make(map[string]scorer.Decision, len(targets))
	for i, z := range targets {
		out[z] = results[i]
	}
	return out, nil
}

func rejectedMap(in map[string]*zipcode.Rejections) map[string]map[string]int {
	out := make(map[string]map[string]int, len(in))
	for source, rej := range in {
		if rej == nil || rej.Total() == 0 {
			continue
		}
		out[source] = rej.Map()
	}
	return out
}
