package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
)

// OrderService runs the order lifecycle: status transitions, stock
// allocation, invoice snapshots and customer notification.
type OrderService struct {
	DB       *sqlx.DB
	Orders   *repos.OrderRepo
	Stock    *repos.StockRepo
	Requests *repos.RequestRepo
	Prods    *repos.ProductRepo
	Users    *repos.UserRepo
	Notify   notify.Dispatcher
	Company  domain.CompanyInfo

	Now func() time.Time
}

func NewOrderService(db *sqlx.DB, notifier notify.Dispatcher, company domain.CompanyInfo) *OrderService {
	return &OrderService{
		DB:       db,
		Orders:   repos.NewOrderRepo(db),
		Stock:    repos.NewStockRepo(db),
		Requests: repos.NewRequestRepo(db),
		Prods:    repos.NewProductRepo(db),
		Users:    repos.NewUserRepo(db),
		Notify:   notifier,
		Company:  company,
		Now:      time.Now,
	}
}

// TransitionCmd is one admin save of the order edit dialog.
type TransitionCmd struct {
	OrderID string
	Status  domain.Status
	// StockID is the unit picked by the admin; only used when the order
	// becomes fulfilled and has no unit yet.
	StockID string
	// ReportDetails, when non-nil, replaces the service report text.
	ReportDetails *string
}

type TransitionResult struct {
	Order          domain.Order
	Previous       domain.Status
	Allocated      *domain.StockUnit
	InvoiceCreated bool
	Notified       bool
}

// Transition validates and applies a status change. Every write happens in
// one transaction; nothing is persisted when any step fails.
func (s *OrderService) Transition(ctx context.Context, cmd TransitionCmd) (TransitionResult, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return TransitionResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	o, err := s.Orders.GetTx(tx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TransitionResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, cmd.OrderID)
		}
		return TransitionResult{}, err
	}
	res := TransitionResult{Previous: o.Status}
	if err := domain.CheckTransition(o.Status, cmd.Status); err != nil {
		return res, err
	}

	var product *domain.Product
	if o.ProductID != "" {
		p, err := s.Prods.GetTx(tx, o.ProductID)
		if err != nil {
			return res, fmt.Errorf("load product %s: %w", o.ProductID, err)
		}
		product = &p
	}
	var sr *domain.ServiceRequest
	if o.ServiceRequestID != "" {
		r, err := s.Requests.GetTx(tx, o.ServiceRequestID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return res, fmt.Errorf("load request %s: %w", o.ServiceRequestID, err)
		}
		if err == nil {
			sr = &r
		}
	}

	var rawForm domain.FormData
	if cmd.ReportDetails != nil && sr != nil {
		rawForm = domain.FormData{}
		for k, v := range sr.RawFormData {
			rawForm[k] = v
		}
		rawForm["report_details"] = plainText(*cmd.ReportDetails)
		sr.RawFormData = rawForm
	}

	o.Status = cmd.Status
	if o.Status.Fulfilling() {
		if product != nil && product.Type.RequiresStock() && o.PurchasedStockID == "" {
			unit, err := s.allocate(tx, product.ID, cmd.StockID)
			if err != nil {
				return res, err
			}
			o.PurchasedStockID = unit.ID
			res.Allocated = &unit
		}
		if o.Invoice == nil {
			var account *domain.Customer
			if o.UserID != "" {
				if u, err := s.Users.ByIDTx(tx, o.UserID); err == nil {
					account = u.Customer()
				}
			}
			inv := domain.BuildInvoice(domain.InvoiceInput{
				Order:   o,
				Product: product,
				Request: sr,
				Account: account,
				Company: s.Company,
				Now:     s.now(),
			})
			o.Invoice = &inv
			res.InvoiceCreated = true
		}
	}

	if err := s.Orders.UpdateTransition(tx, o, res.Previous); err != nil {
		if errors.Is(err, repos.ErrStaleOrder) {
			return res, fmt.Errorf("%w: %s", ErrOrderConflict, o.ID)
		}
		return res, err
	}
	if sr != nil {
		if err := s.Requests.SetStatus(tx, sr.ID, o.Status, rawForm); err != nil {
			return res, err
		}
	}

	var delivered *domain.StockPayload
	switch {
	case res.Allocated != nil:
		delivered = &res.Allocated.Data
	case o.PurchasedStockID != "":
		if u, err := s.Stock.GetTx(tx, o.PurchasedStockID); err == nil {
			delivered = &u.Data
		}
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.Order = o

	if sr != nil && sr.Contactable() {
		var name string
		var typ domain.FulfillmentType
		if product != nil {
			name, typ = product.Name, product.Type
		}
		s.Notify.Dispatch(ctx, notify.FnClientOrderUpdate, notify.NewOrderUpdate(o, name, typ, *sr, delivered))
		res.Notified = true
	}
	return res, nil
}

// allocate claims stockID for productID. Without a selection the caller is
// told whether there was anything to pick.
func (s *OrderService) allocate(tx *sqlx.Tx, productID, stockID string) (domain.StockUnit, error) {
	if stockID == "" {
		n, err := s.Stock.CountAvailableTx(tx, productID)
		if err != nil {
			return domain.StockUnit{}, err
		}
		if n == 0 {
			return domain.StockUnit{}, fmt.Errorf("%w: %s", ErrNoStockAvailable, productID)
		}
		return domain.StockUnit{}, fmt.Errorf("%w: %d units available", ErrStockSelectionRequired, n)
	}
	unit, err := s.Stock.Allocate(tx, stockID, productID)
	if err != nil {
		return domain.StockUnit{}, fmt.Errorf("allocate %s: %w", stockID, err)
	}
	return unit, nil
}

// Delete hard-deletes an order. An order holding a stock unit is refused
// unless releaseStock is set, in which case the unit returns to the pool.
func (s *OrderService) Delete(ctx context.Context, orderID string, releaseStock bool) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	o, err := s.Orders.GetTx(tx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return err
	}
	if o.PurchasedStockID != "" && !releaseStock {
		return fmt.Errorf("%w: %s", ErrOrderHoldsStock, o.PurchasedStockID)
	}
	if err := s.Orders.Delete(tx, o.ID); err != nil {
		return err
	}
	if o.PurchasedStockID != "" {
		if err := s.Stock.Release(tx, o.PurchasedStockID); err != nil {
			return err
		}
	}
	if err := s.Requests.DetachOrder(tx, o.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	applog.Info(nil, "order.deleted", map[string]any{"order_id": o.ID, "released_stock": o.PurchasedStockID})
	return nil
}

func (s *OrderService) Get(id string) (domain.OrderView, error) {
	v, err := s.Orders.GetView(id)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return v, err
}

func (s *OrderService) List(f repos.OrderFilter) ([]domain.OrderView, int, error) {
	return s.Orders.List(f)
}

func (s *OrderService) ForUser(userID string) ([]domain.OrderView, error) {
	return s.Orders.ListByUser(userID)
}

// AvailableStock lists the units an admin can pick for the order's product.
func (s *OrderService) AvailableStock(productID string) ([]domain.StockUnit, error) {
	if productID == "" {
		return nil, nil
	}
	return s.Stock.ListAvailable(productID)
}

// Invoice returns the order if viewer may see its invoice: admins, or the
// customer who placed it. Other viewers get ErrOrderNotFound.
func (s *OrderService) Invoice(id string, viewer *domain.User) (domain.OrderView, error) {
	v, err := s.Get(id)
	if err != nil {
		return v, err
	}
	if viewer == nil || (!viewer.IsAdmin() && viewer.ID != v.UserID) || v.Invoice == nil {
		return domain.OrderView{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return v, nil
}

func (s *OrderService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *OrderService) StatusCounts() ([]repos.StatusCount, error) {
	return s.Orders.CountByStatus()
}
