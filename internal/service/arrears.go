package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
	"github.com/septivank/meter-field-ops/internal/sheet"
	"go.uber.org/zap"
)

// ArrearsService lists, exports and settles unpaid balances
type ArrearsService struct {
	store  repository.Gateway
	logger *zap.Logger
	now    func() time.Time
}

func NewArrearsService(store repository.Gateway, logger *zap.Logger) *ArrearsService {
	return &ArrearsService{store: store, logger: logger, now: time.Now}
}

// List returns the arrears visible to a user. Administrators see every
// officer's records.
func (s *ArrearsService) List(ctx context.Context, username string, role db.Role) ([]db.Arrear, error) {
	officer := db.NormalizeUsername(username)
	if role == db.RoleAdmin {
		officer = ""
	}

	arrears, err := s.store.ListArrears(ctx, officer)
	if err != nil {
		return nil, fmt.Errorf("failed to list arrears: %w", err)
	}
	return arrears, nil
}

// Total sums the outstanding amounts
func Total(arrears []db.Arrear) int64 {
	var total int64
	for _, a := range arrears {
		total += a.Amount
	}
	return total
}

// ExportFilename returns the download name for an export made now
func (s *ArrearsService) ExportFilename(username string) string {
	return sheet.ArrearsFilename(db.NormalizeUsername(username), s.now())
}

// Export writes arrears as a workbook
func (s *ArrearsService) Export(w io.Writer, arrears []db.Arrear) error {
	if err := sheet.EncodeArrears(w, arrears); err != nil {
		return fmt.Errorf("failed to export arrears: %w", err)
	}
	return nil
}

// Settle removes paid arrears by identifier and returns how many distinct
// identifiers were submitted
func (s *ArrearsService) Settle(ctx context.Context, ids []string) (int, error) {
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return 0, nil
	}

	if err := s.store.DeleteByIDs(ctx, db.TableArrears, distinct); err != nil {
		return 0, fmt.Errorf("failed to settle arrears: %w", err)
	}

	s.logger.Info("arrears settled", zap.Int("count", len(distinct)))
	return len(distinct), nil
}
