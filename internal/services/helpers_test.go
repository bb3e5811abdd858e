package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
)

type dispatched struct {
	fn   string
	body any
}

// recorder captures dispatched notifications synchronously.
type recorder struct {
	mu    sync.Mutex
	calls []dispatched
}

func (r *recorder) Dispatch(_ context.Context, fn string, body any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatched{fn: fn, body: body})
}

func (r *recorder) byFunction(fn string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, c := range r.calls {
		if c.fn == fn {
			out = append(out, c.body)
		}
	}
	return out
}

var _ notify.Dispatcher = (*recorder)(nil)

type fixture struct {
	db       *sqlx.DB
	rec      *recorder
	orders   *services.OrderService
	requests *services.RequestService
	stock    *services.StockService
	catalog  *services.CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rec := &recorder{}
	prods := repos.NewProductRepo(db)
	stockRepo := repos.NewStockRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	return &fixture{
		db:     db,
		rec:    rec,
		orders: services.NewOrderService(db, rec, domain.CompanyInfo{Name: "Drmnef", Email: "shop@example.com"}),
		requests: &services.RequestService{
			DB:          db,
			Requests:    repos.NewRequestRepo(db),
			Orders:      orderRepo,
			Prods:       prods,
			Notify:      rec,
			PayPalEmail: "pay@example.com",
			Currency:    "SAR",
		},
		stock:   services.NewStockService(stockRepo, prods),
		catalog: services.NewCatalogService(prods, stockRepo, orderRepo),
	}
}

// placeOrder submits a priced request for productID and pays for it.
func (f *fixture) placeOrder(t *testing.T, in services.RequestInput, method domain.PaymentMethod) services.PlacedOrder {
	t.Helper()
	sr, err := f.requests.Submit(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingPayment, sr.Status)
	placed, err := f.requests.PlaceOrder(context.Background(), sr.ID, method)
	require.NoError(t, err)
	return placed
}
