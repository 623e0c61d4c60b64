// Package route reconstructs an officer's walking route from the customer
// table: the neighbor window around one customer and the full route of a
// reading day.
package route

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
	"go.uber.org/zap"
)

// Window sizes around the target customer
const (
	NeighborsBefore = 5
	NeighborsAfter  = 4
)

// Window is the result of a lookup. Customers are in route order. Target is
// nil when no exact match existed, in which case Partial is true and
// Customers holds substring matches instead of a route window.
type Window struct {
	Customers []db.Customer `json:"customers"`
	Target    *db.Customer  `json:"target,omitempty"`
	Partial   bool          `json:"partial"`
}

// Resolver answers customer lookups
type Resolver struct {
	store  repository.Gateway
	logger *zap.Logger
}

// NewResolver creates a new resolver
func NewResolver(store repository.Gateway, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Lookup returns the target customer together with the customers visited
// just before and just after it on the same (officer, reading day) route.
func (r *Resolver) Lookup(ctx context.Context, id string) (*Window, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return &Window{Customers: []db.Customer{}}, nil
	}

	target, err := r.store.FindCustomerByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find customer %s: %w", id, err)
	}

	if target == nil {
		matches, err := r.store.FindCustomersByIDLike(ctx, id, repository.MaxIDLikeResults)
		if err != nil {
			return nil, fmt.Errorf("failed to search customers like %s: %w", id, err)
		}
		r.logger.Debug("no exact customer match, returning partial matches",
			zap.String("idpel", id),
			zap.Int("matches", len(matches)),
		)
		return &Window{Customers: matches, Partial: true}, nil
	}

	before, err := r.store.FindCustomersBefore(ctx, target.Officer, target.ReadingDay, target.RoutePosition, NeighborsBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to load route before %s: %w", id, err)
	}
	after, err := r.store.FindCustomersAfter(ctx, target.Officer, target.ReadingDay, target.RoutePosition, NeighborsAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to load route after %s: %w", id, err)
	}

	// before arrives nearest-first
	customers := make([]db.Customer, 0, len(before)+1+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		customers = append(customers, before[i])
	}
	customers = append(customers, *target)
	customers = append(customers, after...)

	return &Window{Customers: customers, Target: target}, nil
}

// Search looks up by identifier when keyword is all digits and by name
// otherwise.
func (r *Resolver) Search(ctx context.Context, keyword string) (*Window, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return &Window{Customers: []db.Customer{}}, nil
	}
	if isDigits(keyword) {
		return r.Lookup(ctx, keyword)
	}

	matches, err := r.store.FindCustomersByName(ctx, strings.ToUpper(keyword), repository.DefaultNameResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers by name: %w", err)
	}
	return &Window{Customers: matches, Partial: true}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
