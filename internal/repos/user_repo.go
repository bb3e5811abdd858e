package repos

import (
	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id,email,name,phone,password_hash,role,confirmed,COALESCE(confirm_token,'') AS confirm_token,COALESCE(created_at,'') AS created_at`

// UserRow is a user with the number of orders placed, for the back-office list.
type UserRow struct {
	domain.User
	Orders int `db:"orders"`
}

func (r *UserRepo) ByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE LOWER(email)=LOWER(?)`, email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(id string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByIDTx(tx *sqlx.Tx, id string) (*domain.User, error) {
	var u domain.User
	if err := tx.Get(&u, `SELECT `+userCols+` FROM users WHERE id=?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(u domain.User) error {
	_, err := r.DB.Exec(`
		INSERT INTO users(id,email,name,phone,password_hash,role,confirmed,confirm_token,created_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Name, u.Phone, u.Hash, u.Role, u.Confirmed, nullable(u.ConfirmToken), now())
	return err
}

// Confirm marks the account owning token as confirmed and burns the token.
func (r *UserRepo) Confirm(token string) (*domain.User, error) {
	var u domain.User
	if err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE confirm_token=?`, token); err != nil {
		return nil, err
	}
	if _, err := r.DB.Exec(`UPDATE users SET confirmed=1, confirm_token=NULL WHERE id=?`, u.ID); err != nil {
		return nil, err
	}
	u.Confirmed, u.ConfirmToken = true, ""
	return &u, nil
}

func (r *UserRepo) List() ([]UserRow, error) {
	var out []UserRow
	err := r.DB.Select(&out, `
		SELECT u.id,u.email,u.name,u.phone,u.password_hash,u.role,u.confirmed,
		       COALESCE(u.confirm_token,'') AS confirm_token, COALESCE(u.created_at,'') AS created_at,
		       (SELECT COUNT(*) FROM orders o WHERE o.user_id = u.id) AS orders
		FROM users u
		ORDER BY u.created_at DESC, u.email`)
	return out, err
}

func (r *UserRepo) BindSession(sid, userID string) error {
	_, err := r.DB.Exec(`INSERT INTO sessions(id,user_id,last_seen)
                          VALUES(?,?,CURRENT_TIMESTAMP)
                          ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=CURRENT_TIMESTAMP`, sid, userID)
	return err
}

func (r *UserRepo) SessionUser(sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `
      SELECT u.id,u.email,u.name,u.phone,u.password_hash,u.role,u.confirmed,
             COALESCE(u.confirm_token,'') AS confirm_token, COALESCE(u.created_at,'') AS created_at
      FROM sessions s
      JOIN users u ON u.id=s.user_id
      WHERE s.id=?`, sid)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(sid string) error {
	_, err := r.DB.Exec(`UPDATE sessions SET user_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE id=?`, sid)
	return err
}

// DeleteUserCascade removes a user and their sessions. Orders and service
// requests are kept for audit; their user_id is nulled by the foreign keys.
func (r *UserRepo) DeleteUserCascade(userID string) error {
	tx, err := r.DB.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var sessionIDs []string
	if err := tx.Select(&sessionIDs, `SELECT id FROM sessions WHERE user_id=?`, userID); err != nil {
		return err
	}
	if len(sessionIDs) > 0 {
		query, args, err := sqlx.In(`DELETE FROM sessions WHERE id IN (?)`, sessionIDs)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}

	res, err := tx.Exec(`DELETE FROM users WHERE id=?`, userID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}
