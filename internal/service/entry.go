package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/logging"
	"github.com/septivank/meter-field-ops/internal/metrics"
	"github.com/septivank/meter-field-ops/internal/mq"
	"github.com/septivank/meter-field-ops/internal/repository"
	"github.com/septivank/meter-field-ops/internal/validator"
	"github.com/septivank/meter-field-ops/tools/cutoff"
	"go.uber.org/zap"
)

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// FailedLine is one rejected entry line
type FailedLine struct {
	ID     string `json:"idpel"`
	Reason string `json:"reason"`
}

// SessionResult summarizes one batch submission. ClearInput tells the client
// to empty its input box, which happens whenever anything was accepted.
type SessionResult struct {
	Total       int          `json:"total"`
	Success     int          `json:"success"`
	Failed      int          `json:"failed"`
	FailedList  []FailedLine `json:"failed_list"`
	Accepted    []string     `json:"accepted"`
	ClearInput  bool         `json:"clear_input"`
	Rejected    bool         `json:"rejected"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// GateStatus reports whether batch entry is currently open
type GateStatus struct {
	Closed    bool      `json:"closed"`
	ReopensAt time.Time `json:"reopens_at,omitempty"`
}

// EntryService validates and commits batch entries
type EntryService struct {
	store      repository.Gateway
	validator  *validator.Validator
	gate       *cutoff.Window
	publisher  EventPublisher
	routingKey string
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewEntryService creates a new entry service. gate, publisher and metrics
// may be nil.
func NewEntryService(
	store repository.Gateway,
	validator *validator.Validator,
	gate *cutoff.Window,
	publisher EventPublisher,
	routingKey string,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *EntryService {
	return &EntryService{
		store:      store,
		validator:  validator,
		gate:       gate,
		publisher:  publisher,
		routingKey: routingKey,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Gate reports the cutoff state at the current time
func (s *EntryService) Gate() GateStatus {
	now := s.now()
	if s.gate == nil || !s.gate.Active(now) {
		return GateStatus{}
	}
	return GateStatus{Closed: true, ReopensAt: s.gate.ReopensAt(now)}
}

// Submit runs the entry pipeline over text on behalf of officer. Each line
// gets at most one failure reason; the first failing stage wins.
func (s *EntryService) Submit(ctx context.Context, officer, text string) (*SessionResult, error) {
	officer = db.NormalizeUsername(officer)
	logger := logging.WithOfficer(s.logger, officer)

	now := s.now()
	if s.gate != nil && s.gate.Active(now) {
		return nil, apperror.ErrCutoffActive
	}

	batch := s.validator.ParseLines(text)
	result := &SessionResult{
		Total:       len(batch.Lines),
		FailedList:  []FailedLine{},
		Accepted:    []string{},
		ProcessedAt: now,
	}

	if result.Total == 0 {
		return result, nil
	}
	if batch.Rejected {
		result.Rejected = true
		s.countBatch("rejected")
		logger.Info("entry batch rejected", zap.Int("lines", result.Total), zap.Int("max_lines", s.validator.MaxLines()))
		return result, nil
	}

	reasons := make([]string, len(batch.Lines))

	// format
	for i, id := range batch.Lines {
		if !s.validator.CheckFormat(id) {
			reasons[i] = validator.ReasonInvalidFormat
		}
	}

	// whitelist
	if candidates := pending(batch.Lines, reasons); len(candidates) > 0 {
		registered, err := s.store.FilterWhitelisted(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check whitelist: %w", err)
		}
		known := toSet(registered)
		for i, id := range batch.Lines {
			if reasons[i] == "" && !known[id] {
				reasons[i] = validator.ReasonNotRegistered
			}
		}
	}

	// duplicates, against the store and within the batch
	if candidates := pending(batch.Lines, reasons); len(candidates) > 0 {
		submitted, err := s.store.FindSubmitted(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check previous entries: %w", err)
		}
		entered := toSet(submitted)
		for i, id := range batch.Lines {
			if reasons[i] != "" {
				continue
			}
			if entered[id] {
				reasons[i] = validator.ReasonAlreadyEntered
				continue
			}
			entered[id] = true
			result.Accepted = append(result.Accepted, id)
		}
	}

	// commit
	if len(result.Accepted) > 0 {
		entries := make([]db.SubmittedEntry, len(result.Accepted))
		for i, id := range result.Accepted {
			entries[i] = db.SubmittedEntry{
				EntryID: uuid.New(),
				ID:      id,
				Officer: officer,
				Status:  db.EntryStatusOK,
			}
		}
		if err := s.store.AppendSubmissions(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to save entries: %w", err)
		}
	}

	for i, id := range batch.Lines {
		if reasons[i] != "" {
			result.FailedList = append(result.FailedList, FailedLine{ID: id, Reason: reasons[i]})
		}
	}
	result.Success = len(result.Accepted)
	result.Failed = len(result.FailedList)
	result.ClearInput = result.Success > 0

	s.record(result)
	logger.Info("entry batch processed",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
	)

	if result.Success > 0 && s.publisher != nil {
		event := mq.EntrySubmittedEvent{
			Officer:     officer,
			Accepted:    result.Accepted,
			Total:       result.Total,
			Success:     result.Success,
			Failed:      result.Failed,
			ProcessedAt: result.ProcessedAt,
		}
		if err := s.publisher.Publish(ctx, s.routingKey, event); err != nil {
			// Log error but don't fail the committed batch
			logger.Error("failed to publish entry event", zap.Error(err))
		}
	}

	return result, nil
}

func (s *EntryService) record(result *SessionResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.EntryLinesTotal.WithLabelValues("accepted").Add(float64(result.Success))
	for _, f := range result.FailedList {
		s.metrics.EntryLinesTotal.WithLabelValues(f.Reason).Inc()
	}
	s.countBatch("processed")
}

func (s *EntryService) countBatch(outcome string) {
	if s.metrics != nil {
		s.metrics.EntryBatchesTotal.WithLabelValues(outcome).Inc()
	}
}

// pending returns the distinct lines that have no failure reason yet
func pending(lines, reasons []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for i, id := range lines {
		if reasons[i] == "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
