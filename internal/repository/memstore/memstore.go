// Package memstore provides an in-memory Gateway for tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
)

// Store keeps every table in memory. Fail, when set, is consulted before each
// operation; a non-nil result is returned as a StoreError for that operation.
type Store struct {
	mu          sync.RWMutex
	customers   []db.Customer
	arrears     []db.Arrear
	whitelist   map[string]bool
	submissions []db.SubmittedEntry
	users       map[string]db.UserAccount

	Fail func(op string) error
	Now  func() time.Time

	calls map[string]int
}

var _ repository.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{
		whitelist: make(map[string]bool),
		users:     make(map[string]db.UserAccount),
		Now:       time.Now,
		calls:     make(map[string]int),
	}
}

// Calls returns how often op was invoked
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	if s.Fail != nil {
		if err := s.Fail(op); err != nil {
			return apperror.Store(op, err)
		}
	}
	return nil
}

func (s *Store) FindCustomerByID(_ context.Context, id string) (*db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomerByID"); err != nil {
		return nil, err
	}
	for _, c := range s.customers {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) FindCustomersByIDLike(_ context.Context, fragment string, limit int) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomersByIDLike"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > repository.MaxIDLikeResults {
		limit = repository.MaxIDLikeResults
	}
	needle := strings.ToUpper(strings.TrimSpace(fragment))
	out := s.filterCustomers(func(c db.Customer) bool {
		return strings.Contains(strings.ToUpper(c.ID), needle)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return truncate(out, limit), nil
}

func (s *Store) FindCustomersByName(_ context.Context, fragment string, limit int) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomersByName"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = repository.DefaultNameResults
	}
	needle := strings.ToUpper(strings.TrimSpace(fragment))
	out := s.filterCustomers(func(c db.Customer) bool {
		return strings.Contains(strings.ToUpper(c.Name), needle)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *Store) FindCustomersBefore(_ context.Context, officer, day string, position, limit int) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomersBefore"); err != nil {
		return nil, err
	}
	out := s.filterCustomers(func(c db.Customer) bool {
		return c.Officer == officer && c.ReadingDay == day && c.RoutePosition < position
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RoutePosition > out[j].RoutePosition })
	return truncate(out, limit), nil
}

func (s *Store) FindCustomersAfter(_ context.Context, officer, day string, position, limit int) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomersAfter"); err != nil {
		return nil, err
	}
	out := s.filterCustomers(func(c db.Customer) bool {
		return c.Officer == officer && c.ReadingDay == day && c.RoutePosition > position
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RoutePosition < out[j].RoutePosition })
	return truncate(out, limit), nil
}

func (s *Store) FindCustomersByOfficerDayCategory(_ context.Context, officer, day string, category db.ServiceCategory) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCustomersByOfficerDayCategory"); err != nil {
		return nil, err
	}
	out := s.filterCustomers(func(c db.Customer) bool {
		return c.Officer == officer && c.ReadingDay == day && c.ServiceCategory == category
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RoutePosition < out[j].RoutePosition })
	return out, nil
}

func (s *Store) InsertCustomers(_ context.Context, rows []db.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertCustomers"); err != nil {
		return err
	}
	for _, row := range rows {
		for _, existing := range s.customers {
			if existing.ID == row.ID {
				return apperror.Store("InsertCustomers", fmt.Errorf("duplicate key idpel=%s", row.ID))
			}
		}
		s.customers = append(s.customers, row)
	}
	return nil
}

func (s *Store) ListArrears(_ context.Context, officer string) ([]db.Arrear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListArrears"); err != nil {
		return nil, err
	}
	out := make([]db.Arrear, 0)
	for _, a := range s.arrears {
		if officer == "" || a.Officer == officer {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) InsertArrears(_ context.Context, rows []db.Arrear) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertArrears"); err != nil {
		return err
	}
	s.arrears = append(s.arrears, rows...)
	return nil
}

func (s *Store) FilterWhitelisted(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FilterWhitelisted"); err != nil {
		return nil, err
	}
	out := make([]string, 0)
	for _, id := range ids {
		if s.whitelist[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) InsertWhitelist(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertWhitelist"); err != nil {
		return err
	}
	for _, id := range ids {
		s.whitelist[id] = true
	}
	return nil
}

func (s *Store) FindSubmitted(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindSubmitted"); err != nil {
		return nil, err
	}
	submitted := make(map[string]bool, len(s.submissions))
	for _, e := range s.submissions {
		submitted[e.ID] = true
	}
	out := make([]string, 0)
	for _, id := range ids {
		if submitted[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) AppendSubmissions(_ context.Context, entries []db.SubmittedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AppendSubmissions"); err != nil {
		return err
	}
	now := s.Now()
	for _, e := range entries {
		e.SubmittedAt = now
		s.submissions = append(s.submissions, e)
	}
	return nil
}

func (s *Store) RecentSubmissions(_ context.Context, limit int) ([]db.SubmittedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RecentSubmissions"); err != nil {
		return nil, err
	}
	out := make([]db.SubmittedEntry, 0, len(s.submissions))
	for i := len(s.submissions) - 1; i >= 0; i-- {
		out = append(out, s.submissions[i])
	}
	return truncate(out, limit), nil
}

func (s *Store) FindUser(_ context.Context, username string) (*db.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[db.NormalizeUsername(username)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]db.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListUsers"); err != nil {
		return nil, err
	}
	out := make([]db.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpsertUsers(_ context.Context, users []db.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpsertUsers"); err != nil {
		return err
	}
	for _, u := range users {
		key := db.NormalizeUsername(u.Username)
		existing, ok := s.users[key]
		if ok {
			existing.Name = u.Name
			if u.Role != "" {
				existing.Role = u.Role
			}
			s.users[key] = existing
			continue
		}
		role := u.Role
		if role == "" {
			role = db.RoleOfficer
		}
		s.users[key] = db.UserAccount{Username: key, Name: u.Name, Role: role}
	}
	return nil
}

func (s *Store) BindDevice(_ context.Context, username, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("BindDevice"); err != nil {
		return false, err
	}
	key := db.NormalizeUsername(username)
	u, ok := s.users[key]
	if !ok || u.DeviceToken != nil {
		return false, nil
	}
	u.DeviceToken = &token
	s.users[key] = u
	return true, nil
}

func (s *Store) ClearDevice(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ClearDevice"); err != nil {
		return err
	}
	key := db.NormalizeUsername(username)
	if u, ok := s.users[key]; ok {
		u.DeviceToken = nil
		s.users[key] = u
	}
	return nil
}

func (s *Store) SetSecretHash(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetSecretHash"); err != nil {
		return err
	}
	key := db.NormalizeUsername(username)
	if u, ok := s.users[key]; ok {
		u.SecretHash = &hash
		s.users[key] = u
	}
	return nil
}

func (s *Store) TruncateTable(_ context.Context, table db.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("TruncateTable"); err != nil {
		return err
	}
	switch table {
	case db.TableCustomers:
		s.customers = nil
	case db.TableArrears:
		s.arrears = nil
	case db.TableWhitelist:
		s.whitelist = make(map[string]bool)
	case db.TableSubmissions:
		s.submissions = nil
	case db.TableUsers:
		s.users = make(map[string]db.UserAccount)
	default:
		return fmt.Errorf("%w: %q", apperror.ErrUnknownTable, table)
	}
	return nil
}

func (s *Store) DeleteByIDs(_ context.Context, table db.Table, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteByIDs"); err != nil {
		return err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	switch table {
	case db.TableCustomers:
		kept := s.customers[:0]
		for _, c := range s.customers {
			if !drop[c.ID] {
				kept = append(kept, c)
			}
		}
		s.customers = kept
	case db.TableArrears:
		kept := s.arrears[:0]
		for _, a := range s.arrears {
			if !drop[a.ID] {
				kept = append(kept, a)
			}
		}
		s.arrears = kept
	case db.TableWhitelist:
		for id := range drop {
			delete(s.whitelist, id)
		}
	case db.TableSubmissions:
		kept := s.submissions[:0]
		for _, e := range s.submissions {
			if !drop[e.ID] {
				kept = append(kept, e)
			}
		}
		s.submissions = kept
	case db.TableUsers:
		for id := range drop {
			delete(s.users, db.NormalizeUsername(id))
		}
	default:
		return fmt.Errorf("%w: %q", apperror.ErrUnknownTable, table)
	}
	return nil
}

func (s *Store) CountRows(_ context.Context, table db.Table) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountRows"); err != nil {
		return 0, err
	}
	switch table {
	case db.TableCustomers:
		return len(s.customers), nil
	case db.TableArrears:
		return len(s.arrears), nil
	case db.TableWhitelist:
		return len(s.whitelist), nil
	case db.TableSubmissions:
		return len(s.submissions), nil
	case db.TableUsers:
		return len(s.users), nil
	}
	return 0, fmt.Errorf("%w: %q", apperror.ErrUnknownTable, table)
}

// Customers returns a copy of the customer table in insertion order
func (s *Store) Customers() []db.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]db.Customer(nil), s.customers...)
}

// Submissions returns a copy of the submissions table in insertion order
func (s *Store) Submissions() []db.SubmittedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]db.SubmittedEntry(nil), s.submissions...)
}

func (s *Store) filterCustomers(keep func(db.Customer) bool) []db.Customer {
	out := make([]db.Customer, 0)
	for _, c := range s.customers {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
