package repos

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

type RequestRepo struct{ db *sqlx.DB }

func NewRequestRepo(db *sqlx.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestCols = `
    id, COALESCE(user_id,'') AS user_id, COALESCE(digital_product_id,'') AS product_id, service_name,
    COALESCE(name,'') AS name, COALESCE(email,'') AS email, COALESCE(customer_phone,'') AS customer_phone,
    COALESCE(serial_number,'') AS serial_number, COALESCE(imei,'') AS imei, COALESCE(udid,'') AS udid,
    raw_form_data, status, COALESCE(payment_method,'') AS payment_method,
    COALESCE(payment_status,'') AS payment_status, COALESCE(order_id,'') AS order_id,
    COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at`

func (r *RequestRepo) Create(sr domain.ServiceRequest) error {
	ts := now()
	_, err := r.db.Exec(`
	  INSERT INTO service_requests
	    (id, user_id, digital_product_id, service_name, name, email, customer_phone,
	     serial_number, imei, udid, raw_form_data, status, payment_method, payment_status, created_at, updated_at)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sr.ID, nullable(sr.UserID), nullable(sr.ProductID), sr.ServiceName, sr.Name, sr.Email, sr.Phone,
		sr.SerialNumber, sr.IMEI, sr.UDID, sr.RawFormData, sr.Status,
		nullable(sr.PaymentMethod), nullable(sr.PaymentStatus), ts, ts)
	return err
}

func (r *RequestRepo) Get(id string) (domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	err := r.db.Get(&sr, `SELECT `+requestCols+` FROM service_requests WHERE id = ?`, id)
	return sr, err
}

func (r *RequestRepo) GetTx(tx *sqlx.Tx, id string) (domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	err := tx.Get(&sr, `SELECT `+requestCols+` FROM service_requests WHERE id = ?`, id)
	return sr, err
}

// Search finds requests by exact id or case-insensitive contact email.
func (r *RequestRepo) Search(term string) ([]domain.ServiceRequest, error) {
	term = strings.TrimSpace(term)
	var out []domain.ServiceRequest
	if term == "" {
		return out, nil
	}
	err := r.db.Select(&out, `
		SELECT `+requestCols+`
		FROM service_requests
		WHERE id = ? OR LOWER(email) = LOWER(?)
		ORDER BY created_at DESC
		LIMIT 50`, term, term)
	return out, err
}

func (r *RequestRepo) ListByUser(userID string) ([]domain.ServiceRequest, error) {
	var out []domain.ServiceRequest
	err := r.db.Select(&out, `
		SELECT `+requestCols+`
		FROM service_requests
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	return out, err
}

// AttachOrder records the order created for a request along with its payment choice.
func (r *RequestRepo) AttachOrder(tx *sqlx.Tx, id, orderID string, method domain.PaymentMethod, status domain.Status) error {
	res, err := tx.Exec(`
		UPDATE service_requests
		SET order_id = ?, payment_method = ?, payment_status = ?, status = ?, updated_at = ?
		WHERE id = ?`, orderID, method, method.PaymentStatus(), status, now(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetStatus mirrors an order transition onto its request; rawForm is written
// when non-nil (report details live there).
func (r *RequestRepo) SetStatus(tx *sqlx.Tx, id string, status domain.Status, rawForm domain.FormData) error {
	var err error
	if rawForm != nil {
		_, err = tx.Exec(`UPDATE service_requests SET status = ?, raw_form_data = ?, updated_at = ? WHERE id = ?`,
			status, rawForm, now(), id)
	} else {
		_, err = tx.Exec(`UPDATE service_requests SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	}
	return err
}

// DetachOrder clears the order link when an order is deleted.
func (r *RequestRepo) DetachOrder(tx *sqlx.Tx, orderID string) error {
	_, err := tx.Exec(`UPDATE service_requests SET order_id = NULL, updated_at = ? WHERE order_id = ?`, now(), orderID)
	return err
}
