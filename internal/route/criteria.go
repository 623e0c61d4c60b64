package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
	"go.uber.org/zap"
)

// ReadingDays lists the valid reading day codes
var ReadingDays = []string{"A", "B", "C", "D", "E", "F", "G", "L", "M", "N", "P", "Q", "R"}

var postpaidDays = map[string]bool{"A": true, "B": true, "C": true, "D": true, "E": true, "F": true, "G": true}

// IsReadingDay reports whether day is one of ReadingDays
func IsReadingDay(day string) bool {
	day = strings.ToUpper(strings.TrimSpace(day))
	for _, d := range ReadingDays {
		if d == day {
			return true
		}
	}
	return false
}

// CategoryForDay returns the service category read on day. Days A to G are
// postpaid; every other code is prepaid.
func CategoryForDay(day string) db.ServiceCategory {
	if postpaidDays[strings.ToUpper(strings.TrimSpace(day))] {
		return db.ServicePostpaid
	}
	return db.ServicePrepaid
}

// Cache stores route listings per officer and day
type Cache interface {
	GetRoute(ctx context.Context, officer, day string) ([]db.Customer, bool)
	SetRoute(ctx context.Context, officer, day string, customers []db.Customer)
}

// Filter lists an officer's route for a reading day
type Filter struct {
	store  repository.Gateway
	cache  Cache
	logger *zap.Logger
}

// NewFilter creates a new filter. cache may be nil.
func NewFilter(store repository.Gateway, cache Cache, logger *zap.Logger) *Filter {
	return &Filter{store: store, cache: cache, logger: logger}
}

// List returns the customers of officer on day in route order, limited to
// the service category read on that day.
func (f *Filter) List(ctx context.Context, officer, day string) ([]db.Customer, error) {
	officer = strings.ToUpper(strings.TrimSpace(officer))
	day = strings.ToUpper(strings.TrimSpace(day))

	if f.cache != nil {
		if cached, ok := f.cache.GetRoute(ctx, officer, day); ok {
			return cached, nil
		}
	}

	category := CategoryForDay(day)
	customers, err := f.store.FindCustomersByOfficerDayCategory(ctx, officer, day, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list route for %s day %s: %w", officer, day, err)
	}

	f.logger.Debug("route listed",
		zap.String("officer", officer),
		zap.String("day", day),
		zap.String("category", string(category)),
		zap.Int("count", len(customers)),
	)

	if f.cache != nil {
		f.cache.SetRoute(ctx, officer, day, customers)
	}
	return customers, nil
}
