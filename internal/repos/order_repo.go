package repos

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

// ErrStaleOrder is returned when the order changed status under a writer.
var ErrStaleOrder = errors.New("order status changed concurrently")

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// PageSize is the back-office orders page length.
const PageSize = 10

const orderCols = `
    o.id, COALESCE(o.service_request_id,'') AS service_request_id, COALESCE(o.user_id,'') AS user_id,
    COALESCE(o.digital_product_id,'') AS digital_product_id, COALESCE(o.purchased_stock_id,'') AS purchased_stock_id,
    o.order_status, o.payment_method, o.total_amount, o.invoice_details,
    COALESCE(o.created_at,'') AS created_at, COALESCE(o.updated_at,'') AS updated_at`

const orderViewCols = orderCols + `,
    COALESCE(p.name,'') AS product_name, COALESCE(p.product_type,'') AS product_type,
    COALESCE(sr.service_name,'') AS service_name,
    COALESCE(NULLIF(sr.name,''), u.name, '') AS customer_name,
    COALESCE(NULLIF(sr.email,''), u.email, '') AS customer_email,
    COALESCE(NULLIF(sr.customer_phone,''), u.phone, '') AS customer_phone,
    sr.raw_form_data, st.stock_data`

const orderViewFrom = `
    FROM orders o
    LEFT JOIN digital_products p ON p.id = o.digital_product_id
    LEFT JOIN service_requests sr ON sr.id = o.service_request_id
    LEFT JOIN users u ON u.id = o.user_id
    LEFT JOIN product_stock st ON st.id = o.purchased_stock_id`

// OrderFilter narrows the back-office list. Zero values mean "any".
type OrderFilter struct {
	Status    domain.Status
	ProductID string
	Search    string
	SortBy    string // created_at | total_amount | order_status
	Asc       bool
	Page      int // 1-based
}

var sortColumns = map[string]string{
	"created_at":   "o.created_at",
	"total_amount": "o.total_amount",
	"order_status": "o.order_status",
}

// Create inserts a new order inside tx.
func (r *OrderRepo) Create(tx *sqlx.Tx, o domain.Order) error {
	ts := now()
	_, err := tx.Exec(`
	  INSERT INTO orders
	    (id, service_request_id, user_id, digital_product_id, purchased_stock_id,
	     order_status, payment_method, total_amount, invoice_details, created_at, updated_at)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, nullable(o.ServiceRequestID), nullable(o.UserID), nullable(o.ProductID), nullable(o.PurchasedStockID),
		o.Status, o.PaymentMethod, o.TotalAmount, o.Invoice, ts, ts)
	return err
}

func (r *OrderRepo) Get(id string) (domain.Order, error) {
	var o domain.Order
	err := r.db.Get(&o, `SELECT `+orderCols+` FROM orders o WHERE o.id = ?`, id)
	return o, err
}

func (r *OrderRepo) GetTx(tx *sqlx.Tx, id string) (domain.Order, error) {
	var o domain.Order
	err := tx.Get(&o, `SELECT `+orderCols+` FROM orders o WHERE o.id = ?`, id)
	return o, err
}

func (r *OrderRepo) GetView(id string) (domain.OrderView, error) {
	var v domain.OrderView
	err := r.db.Get(&v, `SELECT `+orderViewCols+orderViewFrom+` WHERE o.id = ?`, id)
	return v, err
}

// List returns one page of orders plus the total match count.
func (r *OrderRepo) List(f OrderFilter) ([]domain.OrderView, int, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, `o.order_status = ?`)
		args = append(args, f.Status)
	}
	if f.ProductID != "" {
		where = append(where, `o.digital_product_id = ?`)
		args = append(args, f.ProductID)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		where = append(where, `(LOWER(o.id) LIKE ? OR LOWER(COALESCE(sr.name,'')) LIKE ? OR LOWER(COALESCE(sr.email,'')) LIKE ?
		  OR LOWER(COALESCE(u.email,'')) LIKE ? OR LOWER(COALESCE(p.name,'')) LIKE ? OR LOWER(COALESCE(sr.service_name,'')) LIKE ?)`)
		like := "%" + q + "%"
		args = append(args, like, like, like, like, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*)`+orderViewFrom+cond, args...); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns["created_at"]
	}
	dir := " DESC"
	if f.Asc {
		dir = " ASC"
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	var out []domain.OrderView
	err := r.db.Select(&out, `SELECT `+orderViewCols+orderViewFrom+cond+
		` ORDER BY `+col+dir+`, o.rowid`+dir+` LIMIT ? OFFSET ?`,
		append(args, PageSize, (page-1)*PageSize)...)
	return out, total, err
}

// ListByUser returns a customer's orders, newest first.
func (r *OrderRepo) ListByUser(userID string) ([]domain.OrderView, error) {
	var out []domain.OrderView
	err := r.db.Select(&out, `SELECT `+orderViewCols+orderViewFrom+`
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.rowid DESC`, userID)
	return out, err
}

// UpdateTransition writes the outcome of a status change. The update only
// lands if the order is still in prev; otherwise ErrStaleOrder.
func (r *OrderRepo) UpdateTransition(tx *sqlx.Tx, o domain.Order, prev domain.Status) error {
	res, err := tx.Exec(`
		UPDATE orders
		SET order_status = ?, purchased_stock_id = ?, invoice_details = ?, updated_at = ?
		WHERE id = ? AND order_status = ?`,
		o.Status, nullable(o.PurchasedStockID), o.Invoice, now(), o.ID, prev)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleOrder
	}
	return nil
}

func (r *OrderRepo) Delete(tx *sqlx.Tx, id string) error {
	res, err := tx.Exec(`DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CountHolding reports how many orders reference stockID (0 or 1).
func (r *OrderRepo) CountHolding(stockID string) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM orders WHERE purchased_stock_id = ?`, stockID)
	return n, err
}

// CountByProduct is used to refuse product deletion while orders reference it.
func (r *OrderRepo) CountByProduct(productID string) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM orders WHERE digital_product_id = ?`, productID)
	return n, err
}

type StatusCount struct {
	Status domain.Status `db:"order_status"`
	N      int           `db:"n"`
}

// CountByStatus feeds the back-office dashboard.
func (r *OrderRepo) CountByStatus() ([]StatusCount, error) {
	var out []StatusCount
	err := r.db.Select(&out, `SELECT order_status, COUNT(*) AS n FROM orders GROUP BY order_status ORDER BY n DESC`)
	return out, err
}
