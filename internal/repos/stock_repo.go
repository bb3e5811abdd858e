package repos

import (
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

// ErrStockUnavailable is returned when a unit is already handed out, missing,
// or belongs to another product.
var ErrStockUnavailable = errors.New("stock unit not available")

type StockRepo struct{ db *sqlx.DB }

func NewStockRepo(db *sqlx.DB) *StockRepo { return &StockRepo{db: db} }

const stockCols = `
    s.id, s.product_id, COALESCE(p.name,'') AS product_name, s.stock_data, s.is_available,
    COALESCE(s.created_at,'') AS created_at, COALESCE(s.updated_at,'') AS updated_at`

// StockCount is the per-product pool summary shown in the back-office.
type StockCount struct {
	ProductID   string                 `db:"product_id"`
	ProductName string                 `db:"product_name"`
	ProductType domain.FulfillmentType `db:"product_type"`
	Available   int                    `db:"available"`
	Sold        int                    `db:"sold"`
}

// List returns the whole pool, newest first; productID narrows it when set.
func (r *StockRepo) List(productID string) ([]domain.StockUnit, error) {
	where, args := "", []any{}
	if productID != "" {
		where = `WHERE s.product_id = ?`
		args = append(args, productID)
	}
	var out []domain.StockUnit
	err := r.db.Select(&out, `
		SELECT `+stockCols+`
		FROM product_stock s
		LEFT JOIN digital_products p ON p.id = s.product_id
		`+where+`
		ORDER BY s.created_at DESC, s.rowid DESC`, args...)
	return out, err
}

// ListAvailable returns a product's unallocated units in insertion order.
func (r *StockRepo) ListAvailable(productID string) ([]domain.StockUnit, error) {
	var out []domain.StockUnit
	err := r.db.Select(&out, `
		SELECT `+stockCols+`
		FROM product_stock s
		LEFT JOIN digital_products p ON p.id = s.product_id
		WHERE s.product_id = ? AND s.is_available = 1
		ORDER BY s.rowid`, productID)
	return out, err
}

func (r *StockRepo) CountAvailable(productID string) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM product_stock WHERE product_id = ? AND is_available = 1`, productID)
	return n, err
}

func (r *StockRepo) CountAvailableTx(tx *sqlx.Tx, productID string) (int, error) {
	var n int
	err := tx.Get(&n, `SELECT COUNT(*) FROM product_stock WHERE product_id = ? AND is_available = 1`, productID)
	return n, err
}

func (r *StockRepo) Counts() ([]StockCount, error) {
	var out []StockCount
	err := r.db.Select(&out, `
		SELECT p.id AS product_id, p.name AS product_name, p.product_type,
		       COALESCE(SUM(CASE WHEN s.is_available = 1 THEN 1 ELSE 0 END),0) AS available,
		       COALESCE(SUM(CASE WHEN s.is_available = 0 THEN 1 ELSE 0 END),0) AS sold
		FROM digital_products p
		LEFT JOIN product_stock s ON s.product_id = p.id
		WHERE p.product_type <> 'service_report'
		GROUP BY p.id, p.name, p.product_type
		ORDER BY p.name`)
	return out, err
}

func (r *StockRepo) Get(id string) (domain.StockUnit, error) {
	var u domain.StockUnit
	err := r.db.Get(&u, `
		SELECT `+stockCols+`
		FROM product_stock s
		LEFT JOIN digital_products p ON p.id = s.product_id
		WHERE s.id = ?`, id)
	return u, err
}

func (r *StockRepo) GetTx(tx *sqlx.Tx, id string) (domain.StockUnit, error) {
	var u domain.StockUnit
	err := tx.Get(&u, `
		SELECT `+stockCols+`
		FROM product_stock s
		LEFT JOIN digital_products p ON p.id = s.product_id
		WHERE s.id = ?`, id)
	return u, err
}

// Insert adds units in one transaction; either all land or none do.
func (r *StockRepo) Insert(units []domain.StockUnit) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	for _, u := range units {
		if _, err := tx.Exec(`
			INSERT INTO product_stock(id, product_id, stock_data, is_available, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)`, u.ID, u.ProductID, u.Data, ts, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteAvailable removes a unit that has not been handed out.
func (r *StockRepo) DeleteAvailable(id string) error {
	res, err := r.db.Exec(`DELETE FROM product_stock WHERE id = ? AND is_available = 1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStockUnavailable
	}
	return nil
}

// Allocate atomically flips an available unit of productID to sold.
// Zero affected rows means another order won the unit (or it never matched).
func (r *StockRepo) Allocate(tx *sqlx.Tx, stockID, productID string) (domain.StockUnit, error) {
	res, err := tx.Exec(`
		UPDATE product_stock
		SET is_available = 0, updated_at = ?
		WHERE id = ? AND product_id = ? AND is_available = 1
	`, now(), stockID, productID)
	if err != nil {
		return domain.StockUnit{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.StockUnit{}, ErrStockUnavailable
	}
	return r.GetTx(tx, stockID)
}

// Release returns a sold unit to the pool.
func (r *StockRepo) Release(tx *sqlx.Tx, stockID string) error {
	_, err := tx.Exec(`UPDATE product_stock SET is_available = 1, updated_at = ? WHERE id = ?`, now(), stockID)
	return err
}
