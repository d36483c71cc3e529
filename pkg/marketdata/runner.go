package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/writer"
)

// OnProgress is called after every task with the number of finished tasks.
type OnProgress = func(current float64, total float64, message string)

// StorageLayout decides where a task's output lives and whether it already exists.
type StorageLayout interface {
	ResolvePath(symbol string, year int) string
	Exists(path string) (bool, error)
	EnsureDirectory(path string) error
}

// RunnerOptions tunes a Runner.
type RunnerOptions struct {
	// Delay is the pause after every fetch attempt except the last task's.
	Delay time.Duration `validate:"gte=0"`
	// OnProgress is optional.
	OnProgress OnProgress
}

// Report is the ordered list of outcomes of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []types.TaskOutcome
}

// Count returns how many outcomes have status.
func (r Report) Count(status types.OutcomeStatus) int {
	n := 0

	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}

	return n
}

// Total returns the number of recorded outcomes.
func (r Report) Total() int {
	return len(r.Outcomes)
}

// Failures returns the failed outcomes in task order.
func (r Report) Failures() []types.TaskOutcome {
	var failed []types.TaskOutcome

	for _, o := range r.Outcomes {
		if o.Status == types.OutcomeFailed {
			failed = append(failed, o)
		}
	}

	return failed
}

// Runner walks the symbol by year cross product, skipping tasks whose file exists,
// and fetching and writing the rest. A failed task never stops the run.
type Runner struct {
	fetcher   provider.Fetcher
	layout    StorageLayout
	newWriter writer.Factory
	logger    *logger.Logger
	options   RunnerOptions
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(fetcher provider.Fetcher, layout StorageLayout, newWriter writer.Factory, log *logger.Logger, options RunnerOptions) (*Runner, error) {
	if fetcher == nil || layout == nil || newWriter == nil || log == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "runner requires a fetcher, a storage layout, a writer factory and a logger")
	}

	if err := validator.New().Struct(options); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid runner options", err)
	}

	return &Runner{
		fetcher:   fetcher,
		layout:    layout,
		newWriter: newWriter,
		logger:    log,
		options:   options,
		sleep:     sleepContext,
		now:       time.Now,
	}, nil
}

// BuildTasks returns the symbol-major, year-minor cross product of symbols and years.
func BuildTasks(symbols []string, years []int) []types.DownloadTask {
	tasks := make([]types.DownloadTask, 0, len(symbols)*len(years))

	for _, symbol := range symbols {
		for _, year := range years {
			tasks = append(tasks, types.DownloadTask{Symbol: symbol, Year: year})
		}
	}

	return tasks
}

// Run executes every task in order and records exactly one outcome per executed task.
//
// Cancelling ctx stops the run between tasks (or during a delay). The partial report is
// returned together with the context error.
func (r *Runner) Run(ctx context.Context, symbols []string, years []int) (Report, error) {
	tasks := BuildTasks(symbols, years)

	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Outcomes:  make([]types.TaskOutcome, 0, len(tasks)),
	}

	log := r.logger.With(zap.String("run_id", report.RunID))
	log.Info("Starting download run",
		zap.Int("symbols", len(symbols)),
		zap.Ints("years", years),
		zap.Int("tasks", len(tasks)),
		zap.Duration("delay", r.options.Delay),
	)

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return r.finish(log, report, err)
		}

		outcome, attempted := r.runTask(ctx, task)
		report.Outcomes = append(report.Outcomes, outcome)
		logOutcome(log, outcome)

		if r.options.OnProgress != nil {
			r.options.OnProgress(float64(i+1), float64(len(tasks)), fmt.Sprintf("%s %s", task, outcome.Status))
		}

		if attempted && r.options.Delay > 0 && i < len(tasks)-1 {
			if err := r.sleep(ctx, r.options.Delay); err != nil {
				return r.finish(log, report, err)
			}
		}
	}

	return r.finish(log, report, nil)
}

func (r *Runner) finish(log *logger.Logger, report Report, err error) (Report, error) {
	report.FinishedAt = r.now()

	fields := []zap.Field{
		zap.Int("total", report.Total()),
		zap.Int("success", report.Count(types.OutcomeSuccess)),
		zap.Int("skipped", report.Count(types.OutcomeSkipped)),
		zap.Int("failed", report.Count(types.OutcomeFailed)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	}

	if err != nil {
		log.Warn("Download run interrupted", append(fields, zap.Error(err))...)

		return report, err
	}

	log.Info("Download run finished", fields...)

	return report, nil
}

// runTask handles one task. attempted reports whether the provider was called.
func (r *Runner) runTask(ctx context.Context, task types.DownloadTask) (outcome types.TaskOutcome, attempted bool) {
	path := r.layout.ResolvePath(task.Symbol, task.Year)
	outcome = types.TaskOutcome{Task: task, Path: path}

	exists, err := r.layout.Exists(path)
	if err != nil {
		return failed(outcome, err), false
	}

	if exists {
		outcome.Status = types.OutcomeSkipped

		return outcome, false
	}

	rows, err := r.fetcher.Fetch(ctx, task.Symbol, task.Year)
	if err != nil {
		return failed(outcome, err), true
	}

	if err := r.layout.EnsureDirectory(path); err != nil {
		return failed(outcome, err), true
	}

	if err := r.write(path, rows); err != nil {
		return failed(outcome, err), true
	}

	outcome.Status = types.OutcomeSuccess
	outcome.Rows = len(rows)

	return outcome, true
}

// write streams rows through a fresh writer. The writer only publishes the file on Finalize,
// so the task result is decided there and a later Close failure is only logged.
func (r *Runner) write(path string, rows []types.PriceRow) error {
	w := r.newWriter(path)
	published := false

	defer func() {
		if cerr := w.Close(); cerr != nil {
			r.logger.Warn("Failed to close writer", zap.String("path", path), zap.Bool("published", published), zap.Error(cerr))
		}
	}()

	if err := w.Initialize(); err != nil {
		return err
	}

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if _, err := w.Finalize(); err != nil {
		return err
	}

	published = true

	return nil
}

func failed(outcome types.TaskOutcome, err error) types.TaskOutcome {
	outcome.Status = types.OutcomeFailed
	outcome.Err = err

	return outcome
}

func logOutcome(log *logger.Logger, outcome types.TaskOutcome) {
	fields := []zap.Field{
		zap.String("symbol", outcome.Task.Symbol),
		zap.Int("year", outcome.Task.Year),
		zap.String("path", outcome.Path),
	}

	switch outcome.Status {
	case types.OutcomeSuccess:
		log.Info("Downloaded", append(fields, zap.Int("rows", outcome.Rows))...)
	case types.OutcomeSkipped:
		log.Info("Skipped, file already exists", fields...)
	case types.OutcomeFailed:
		log.Error("Failed to download",
			append(fields, zap.String("kind", string(errors.GetKind(outcome.Err))), zap.String("reason", outcome.Reason()))...)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
