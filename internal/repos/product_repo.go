package repos

import (
	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `
    id, name, COALESCE(description,'') AS description, price, COALESCE(image_url,'') AS image_url,
    service_category, product_type, COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at`

func (r *ProductRepo) List() ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.Select(&out, `SELECT `+productCols+` FROM digital_products ORDER BY created_at DESC, name`)
	return out, err
}

func (r *ProductRepo) ListByCategory(cat domain.Category) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.Select(&out, `
  SELECT `+productCols+`
  FROM digital_products
  WHERE service_category = ?
  ORDER BY name`, cat)
	return out, err
}

// ListByTypes returns products whose fulfillment type is one of types.
func (r *ProductRepo) ListByTypes(types ...domain.FulfillmentType) ([]domain.Product, error) {
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM digital_products WHERE product_type IN (?) ORDER BY name`, types)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	err = r.db.Select(&out, query, args...)
	return out, err
}

func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, `SELECT `+productCols+` FROM digital_products WHERE id = ?`, id)
	return p, err
}

// GetTx reads a product inside an open transaction.
func (r *ProductRepo) GetTx(tx *sqlx.Tx, id string) (domain.Product, error) {
	var p domain.Product
	err := tx.Get(&p, `SELECT `+productCols+` FROM digital_products WHERE id = ?`, id)
	return p, err
}

func (r *ProductRepo) Create(p domain.Product) error {
	ts := now()
	_, err := r.db.Exec(`
	  INSERT INTO digital_products(id,name,description,price,image_url,service_category,product_type,created_at,updated_at)
	  VALUES(?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.Type, ts, ts)
	return err
}

func (r *ProductRepo) Update(p domain.Product) error {
	res, err := r.db.Exec(`
	  UPDATE digital_products
	  SET name=?, description=?, price=?, image_url=?, service_category=?, product_type=?, updated_at=?
	  WHERE id=?`,
		p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.Type, now(), p.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a product. Products still referenced by stock or orders are
// rejected by the foreign keys.
func (r *ProductRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM digital_products WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
