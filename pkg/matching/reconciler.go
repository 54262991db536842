package matching

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/models"
)

// InsufficientDataWarning is attached to rows where no comparison had a comparable field
const InsufficientDataWarning = "insufficient data: no comparable fields against any shortlisted record"

// Reconciler runs duplicate detection for every row of an import batch
// against the original population.
type Reconciler struct {
	detector *Detector
	workers  int
	log      ectologger.Logger
}

// NewReconciler validates cfg and returns a reconciler for it
func NewReconciler(cfg models.MatchConfiguration, opts ...Option) (*Reconciler, error) {
	o := newOptions(opts)
	d, err := NewDetector(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Reconciler{detector: d, workers: o.workers, log: o.log}, nil
}

// Workers returns the worker pool size
func (r *Reconciler) Workers() int {
	return r.workers
}

// ReconcileBatch returns one RowResult per candidate row, keyed by row index.
// Rows are independent: a row that fails is recorded with a warning and an
// empty duplicate list. When ctx is cancelled no new rows are started and the
// rows completed so far are returned together with ctx.Err().
func (r *Reconciler) ReconcileBatch(ctx context.Context, candidates, population []models.Record) (map[int]models.RowResult, error) {
	log := r.log.WithContext(ctx).WithFields(map[string]any{
		"rows":       len(candidates),
		"population": len(population),
		"workers":    r.workers,
	})

	idx := r.detector.BuildIndex(population)
	log.WithField("buckets", idx.Buckets()).Debug("Built blocking index")

	// each worker writes only its own slot
	rows := make([]models.RowResult, len(candidates))
	done := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rows[i] = r.reconcileRow(ctx, i, candidates[i], idx)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[int]models.RowResult, len(candidates))
	for i, ok := range done {
		if ok {
			results[i] = rows[i]
		}
	}

	if len(results) < len(candidates) {
		if err := ctx.Err(); err != nil {
			log.WithField("completed", len(results)).Warn("Reconciliation stopped before all rows completed")
			return results, err
		}
	}
	return results, nil
}

func (r *Reconciler) reconcileRow(ctx context.Context, row int, candidate models.Record, idx *BlockingIndex) (result models.RowResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithContext(ctx).WithField("row", row).Errorf("Failed to reconcile row: %v", rec)
			result = models.RowResult{
				Row:        row,
				Duplicates: []models.DuplicateCandidate{},
				Assessment: models.AssessmentFailed,
				Warnings:   []string{fmt.Sprintf("row could not be reconciled: %v", rec)},
			}
		}
	}()

	detection := r.detector.Detect(candidate, idx)

	result = models.RowResult{
		Row:        row,
		Duplicates: detection.Duplicates,
		Assessment: detection.Assessment,
		Assessable: detection.Assessment == models.AssessmentAssessed,
	}
	for _, w := range detection.Warnings {
		result.Warnings = append(result.Warnings, fmt.Sprintf("field %q: %s", w.Field, w.Reason))
	}
	if detection.Assessment == models.AssessmentInsufficientData {
		result.Warnings = append(result.Warnings, InsufficientDataWarning)
	}
	return result
}
