// Package importer loads uploaded workbooks into the record store. Each
// import truncates the target table and inserts fixed-size chunks in order;
// a failed import can be resumed at the chunk that failed.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/metrics"
	"github.com/septivank/meter-field-ops/internal/mq"
	"github.com/septivank/meter-field-ops/internal/repository"
	"github.com/septivank/meter-field-ops/internal/sheet"
	"go.uber.org/zap"
)

// Progress receives the cumulative rows written after each chunk
type Progress func(written, total int)

// Archiver stores raw upload files
type Archiver interface {
	Put(ctx context.Context, table, jobID, filename string, data []byte) (string, error)
}

// RouteInvalidator drops cached routes after customer data changed
type RouteInvalidator interface {
	InvalidateRoutes(ctx context.Context)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Loader runs bulk imports
type Loader struct {
	store      repository.Gateway
	registry   *Registry
	chunkSize  int
	archive    Archiver
	routes     RouteInvalidator
	publisher  EventPublisher
	routingKey string
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// LoaderConfig holds the optional collaborators of a Loader
type LoaderConfig struct {
	Store      repository.Gateway
	Registry   *Registry
	Import     config.ImportConfig
	Archive    Archiver
	Routes     RouteInvalidator
	Publisher  EventPublisher
	RoutingKey string
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// NewLoader creates a new loader
func NewLoader(cfg LoaderConfig) *Loader {
	chunk := cfg.Import.InsertChunkSize
	if chunk <= 0 {
		chunk = 2000
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Loader{
		store:      cfg.Store,
		registry:   registry,
		chunkSize:  chunk,
		archive:    cfg.Archive,
		routes:     cfg.Routes,
		publisher:  cfg.Publisher,
		routingKey: cfg.RoutingKey,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Registry returns the job registry of the loader
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Import decodes an uploaded workbook and loads it into table. Customers,
// arrears and whitelist replace the table; users are upserted so existing
// device locks and secrets survive.
func (l *Loader) Import(ctx context.Context, table db.Table, filename string, data []byte, progress Progress) (Job, error) {
	rows, err := sheet.Decode(bytes.NewReader(data))
	if err != nil {
		return Job{}, fmt.Errorf("%w: %s: %w", apperror.ErrUnreadableWorkbook, filename, err)
	}

	job, err := l.prepare(table, rows)
	if err != nil {
		return Job{}, err
	}

	logger := l.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("table", string(table)),
	)
	logger.Info("import started",
		zap.String("filename", filename),
		zap.Int("rows", job.Rows),
		zap.Int("skipped", job.Skipped),
		zap.Int("chunks", job.Chunks),
	)
	if job.Uncategorized > 0 {
		logger.Warn("customers without a recognised service type will not appear in any route",
			zap.Int("uncategorized", job.Uncategorized),
		)
	}

	if l.archive != nil {
		key, err := l.archive.Put(ctx, string(table), job.ID.String(), filename, data)
		if err != nil {
			logger.Warn("failed to archive upload", zap.Error(err))
		}
		job.ArchiveKey = key
	}

	l.registry.put(job)
	err = l.run(ctx, job, progress, logger)
	return *job, err
}

// Resume continues the last failed import of table at the chunk that
// failed. The table is not truncated again unless truncation itself failed.
func (l *Loader) Resume(ctx context.Context, table db.Table, progress Progress) (Job, error) {
	job := l.registry.job(table)
	if job == nil || job.State != StateFailed {
		return Job{}, fmt.Errorf("%w for %s", apperror.ErrNothingToResume, table)
	}

	logger := l.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("table", string(table)),
	)
	logger.Info("import resumed", zap.Int("chunk", job.Chunk), zap.Int("written", job.Written))

	err := l.run(ctx, job, progress, logger)
	return *job, err
}

// Forget drops the job history of table, typically after the table was
// cleared by other means
func (l *Loader) Forget(table db.Table) {
	l.registry.forget(table)
}

func (l *Loader) prepare(table db.Table, rows []sheet.Row) (*Job, error) {
	now := l.now()
	var job *Job

	switch table {
	case db.TableCustomers:
		shaped := ShapeCustomers(rows)
		job = newJob(table, len(shaped.Rows), l.chunkSize, true, func(ctx context.Context, start, end int) error {
			return l.store.InsertCustomers(ctx, shaped.Rows[start:end])
		}, now)
		job.Skipped = shaped.Skipped
		job.Uncategorized = shaped.Uncategorized
	case db.TableArrears:
		shaped := ShapeArrears(rows)
		job = newJob(table, len(shaped.Rows), l.chunkSize, true, func(ctx context.Context, start, end int) error {
			return l.store.InsertArrears(ctx, shaped.Rows[start:end])
		}, now)
		job.Skipped = shaped.Skipped
	case db.TableWhitelist:
		shaped := ShapeWhitelist(rows)
		job = newJob(table, len(shaped.Rows), l.chunkSize, true, func(ctx context.Context, start, end int) error {
			return l.store.InsertWhitelist(ctx, shaped.Rows[start:end])
		}, now)
		job.Skipped = shaped.Skipped
	case db.TableUsers:
		shaped := ShapeUsers(rows)
		job = newJob(table, len(shaped.Rows), l.chunkSize, false, func(ctx context.Context, start, end int) error {
			return l.store.UpsertUsers(ctx, shaped.Rows[start:end])
		}, now)
		job.Skipped = shaped.Skipped
	default:
		return nil, fmt.Errorf("%w: %q cannot be imported", apperror.ErrUnknownTable, table)
	}

	if job.Rows == 0 {
		return nil, fmt.Errorf("%w: %s", apperror.ErrEmptyImport, table)
	}
	return job, nil
}

// run drives job from its current state to Done or Failed. Writes use a
// context detached from caller cancellation so that a started chunk always
// completes; cancellation is honored between chunks.
func (l *Loader) run(ctx context.Context, job *Job, progress Progress, logger *zap.Logger) error {
	writeCtx := context.WithoutCancel(ctx)

	if job.replace && !job.truncated {
		l.transition(job, StateTruncating, 0)
		if err := l.store.TruncateTable(writeCtx, job.Table); err != nil {
			return l.fail(job, 0, err, logger)
		}
		l.registry.update(func() {
			job.truncated = true
			job.Written = 0
		})
		if job.Table == db.TableCustomers {
			l.invalidateRoutes(writeCtx)
		}
	}

	for chunk := job.Chunk; chunk < job.Chunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return l.fail(job, chunk, err, logger)
		}

		l.transition(job, StateInserting, chunk)
		start, end := job.bounds(chunk)
		if err := job.insert(writeCtx, start, end); err != nil {
			return l.fail(job, chunk, err, logger)
		}

		l.registry.update(func() { job.Written = end })
		if l.metrics != nil {
			l.metrics.ImportRowsTotal.WithLabelValues(string(job.Table)).Add(float64(end - start))
		}
		if progress != nil {
			progress(job.Written, job.Rows)
		}
		logger.Debug("chunk written", zap.Int("chunk", chunk), zap.Int("written", job.Written))
	}

	l.transition(job, StateDone, job.Chunks)
	l.registry.update(func() { job.Error = "" })
	if job.Table == db.TableCustomers {
		l.invalidateRoutes(writeCtx)
	}

	logger.Info("import completed", zap.Int("rows", job.Written))

	if l.publisher != nil {
		event := mq.ImportCompletedEvent{
			JobID:       job.ID.String(),
			Table:       string(job.Table),
			Rows:        job.Written,
			ArchiveKey:  job.ArchiveKey,
			CompletedAt: job.UpdatedAt,
		}
		if err := l.publisher.Publish(writeCtx, l.routingKey, event); err != nil {
			// Log error but don't fail the completed import
			logger.Error("failed to publish import event", zap.Error(err))
		}
	}
	return nil
}

func (l *Loader) transition(job *Job, state State, chunk int) {
	now := l.now()
	l.registry.update(func() {
		job.State = state
		job.Chunk = chunk
		job.UpdatedAt = now
	})
}

func (l *Loader) fail(job *Job, chunk int, cause error, logger *zap.Logger) error {
	l.transition(job, StateFailed, chunk)
	start, _ := job.bounds(chunk)
	err := &apperror.ImportError{Table: string(job.Table), Chunk: chunk, Offset: start, Err: cause}
	l.registry.update(func() { job.Error = err.Error() })

	if l.metrics != nil {
		l.metrics.ImportFailuresTotal.WithLabelValues(string(job.Table)).Inc()
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		logger.Warn("import interrupted", zap.Int("chunk", chunk), zap.Int("written", job.Written))
	} else {
		logger.Error("import failed", zap.Int("chunk", chunk), zap.Int("written", job.Written), zap.Error(cause))
	}
	return err
}

func (l *Loader) invalidateRoutes(ctx context.Context) {
	if l.routes != nil {
		l.routes.InvalidateRoutes(ctx)
	}
}
