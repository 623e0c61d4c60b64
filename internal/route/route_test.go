package route

import (
	"context"
	"fmt"
	"testing"

	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// seedRoute inserts n customers of one officer and day at positions 0..n-1
func seedRoute(t *testing.T, store *memstore.Store, officer, day, serviceType string, offset, n int) []db.Customer {
	t.Helper()
	rows := make([]db.Customer, n)
	for i := range rows {
		rows[i] = db.Customer{
			ID:              fmt.Sprintf("5180400%05d", offset+i),
			Officer:         officer,
			ReadingDay:      day,
			Name:            fmt.Sprintf("PELANGGAN %d", offset+i),
			ServiceType:     serviceType,
			ServiceCategory: db.NormalizeServiceType(serviceType),
			RoutePosition:   offset + i,
		}
	}
	require.NoError(t, store.InsertCustomers(context.Background(), rows))
	return rows
}

func positions(customers []db.Customer) []int {
	out := make([]int, len(customers))
	for i, c := range customers {
		out[i] = c.RoutePosition
	}
	return out
}

func TestLookup_FullWindow(t *testing.T) {
	store := memstore.New()
	rows := seedRoute(t, store, "AGUNG", "A", "PASCABAYAR", 0, 30)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), rows[10].ID)
	require.NoError(t, err)

	assert.False(t, w.Partial)
	require.NotNil(t, w.Target)
	assert.Equal(t, rows[10].ID, w.Target.ID)
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, positions(w.Customers))
}

func TestLookup_ShortRouteIsNotPadded(t *testing.T) {
	store := memstore.New()
	rows := seedRoute(t, store, "AGUNG", "B", "PASCABAYAR", 0, 3)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(w.Customers))

	w, err = resolver.Lookup(context.Background(), rows[2].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(w.Customers))
}

func TestLookup_IgnoresOtherRoutes(t *testing.T) {
	store := memstore.New()
	seedRoute(t, store, "BUDI", "A", "PASCABAYAR", 0, 10)
	rows := seedRoute(t, store, "AGUNG", "A", "PASCABAYAR", 10, 3)
	seedRoute(t, store, "AGUNG", "C", "PASCABAYAR", 13, 10)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), rows[1].ID)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11, 12}, positions(w.Customers))
	for _, c := range w.Customers {
		assert.Equal(t, "AGUNG", c.Officer)
		assert.Equal(t, "A", c.ReadingDay)
	}
}

func TestLookup_WindowAtEndOfLongRoute(t *testing.T) {
	store := memstore.New()
	rows := seedRoute(t, store, "AGUNG", "L", "PRABAYAR", 0, 20)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), rows[19].ID)
	require.NoError(t, err)

	assert.Equal(t, []int{14, 15, 16, 17, 18, 19}, positions(w.Customers))
	assert.LessOrEqual(t, len(w.Customers), 10)
}

func TestLookup_MissFallsBackToSubstring(t *testing.T) {
	store := memstore.New()
	seedRoute(t, store, "AGUNG", "A", "PASCABAYAR", 0, 25)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), "0000")
	require.NoError(t, err)

	assert.True(t, w.Partial)
	assert.Nil(t, w.Target)
	assert.Len(t, w.Customers, 10)
	assert.Equal(t, 0, store.Calls("FindCustomersBefore"))
}

func TestLookup_ExactHitSkipsSubstring(t *testing.T) {
	store := memstore.New()
	rows := seedRoute(t, store, "AGUNG", "A", "PASCABAYAR", 0, 5)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	_, err := resolver.Lookup(context.Background(), rows[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Calls("FindCustomersByIDLike"))
}

func TestLookup_NoMatchesAtAll(t *testing.T) {
	resolver := NewResolver(memstore.New(), zaptest.NewLogger(t))

	w, err := resolver.Lookup(context.Background(), "999999999999")
	require.NoError(t, err)
	assert.True(t, w.Partial)
	assert.Empty(t, w.Customers)
}

func TestLookup_StoreFailure(t *testing.T) {
	store := memstore.New()
	store.Fail = func(op string) error {
		if op == "FindCustomerByID" {
			return fmt.Errorf("connection refused")
		}
		return nil
	}
	resolver := NewResolver(store, zaptest.NewLogger(t))

	_, err := resolver.Lookup(context.Background(), "518040000806")
	assert.ErrorContains(t, err, "connection refused")
}

func TestSearch_RoutesByKeywordShape(t *testing.T) {
	store := memstore.New()
	rows := seedRoute(t, store, "AGUNG", "A", "PASCABAYAR", 0, 5)
	resolver := NewResolver(store, zaptest.NewLogger(t))

	w, err := resolver.Search(context.Background(), " "+rows[2].ID+" ")
	require.NoError(t, err)
	require.NotNil(t, w.Target)
	assert.Equal(t, rows[2].ID, w.Target.ID)

	w, err = resolver.Search(context.Background(), "pelanggan 3")
	require.NoError(t, err)
	assert.True(t, w.Partial)
	require.Len(t, w.Customers, 1)
	assert.Equal(t, "PELANGGAN 3", w.Customers[0].Name)

	w, err = resolver.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, w.Customers)
}

func TestCategoryForDay(t *testing.T) {
	for _, day := range []string{"A", "B", "C", "D", "E", "F", "G", "g"} {
		assert.Equal(t, db.ServicePostpaid, CategoryForDay(day), day)
	}
	for _, day := range []string{"L", "M", "N", "P", "Q", "R", "Z", ""} {
		assert.Equal(t, db.ServicePrepaid, CategoryForDay(day), day)
	}
}

func TestIsReadingDay(t *testing.T) {
	assert.True(t, IsReadingDay("a"))
	assert.True(t, IsReadingDay("R"))
	assert.False(t, IsReadingDay("H"))
	assert.False(t, IsReadingDay(""))
	assert.Len(t, ReadingDays, 13)
}

func TestFilterList_PostpaidDay(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.InsertCustomers(ctx, []db.Customer{
		{ID: "1", Officer: "AGUNG", ReadingDay: "A", ServiceCategory: db.NormalizeServiceType("PASCA BAYAR"), RoutePosition: 7},
		{ID: "2", Officer: "AGUNG", ReadingDay: "A", ServiceCategory: db.NormalizeServiceType("pascabayar"), RoutePosition: 3},
		{ID: "3", Officer: "AGUNG", ReadingDay: "A", ServiceCategory: db.NormalizeServiceType("PRABAYAR"), RoutePosition: 1},
		{ID: "4", Officer: "BUDI", ReadingDay: "A", ServiceCategory: db.NormalizeServiceType("PASKABAYAR"), RoutePosition: 2},
	}))
	filter := NewFilter(store, nil, zaptest.NewLogger(t))

	customers, err := filter.List(ctx, "agung", "a")
	require.NoError(t, err)

	require.Len(t, customers, 2)
	assert.Equal(t, "2", customers[0].ID)
	assert.Equal(t, "1", customers[1].ID)
}

func TestFilterList_PrepaidDay(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedRoute(t, store, "AGUNG", "L", "PRA BAYAR", 0, 4)
	seedRoute(t, store, "AGUNG", "L", "PASCABAYAR", 4, 2)
	filter := NewFilter(store, nil, zaptest.NewLogger(t))

	customers, err := filter.List(ctx, "AGUNG", "L")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, positions(customers))
}

type fakeCache struct {
	routes map[string][]db.Customer
	sets   int
}

func (c *fakeCache) GetRoute(_ context.Context, officer, day string) ([]db.Customer, bool) {
	rows, ok := c.routes[officer+"/"+day]
	return rows, ok
}

func (c *fakeCache) SetRoute(_ context.Context, officer, day string, customers []db.Customer) {
	c.sets++
	c.routes[officer+"/"+day] = customers
}

func TestFilterList_UsesCache(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedRoute(t, store, "AGUNG", "B", "PASCABAYAR", 0, 3)
	cache := &fakeCache{routes: map[string][]db.Customer{}}
	filter := NewFilter(store, cache, zaptest.NewLogger(t))

	first, err := filter.List(ctx, "AGUNG", "B")
	require.NoError(t, err)
	second, err := filter.List(ctx, "AGUNG", "B")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, store.Calls("FindCustomersByOfficerDayCategory"))
}
