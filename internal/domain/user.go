package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	Phone        string `db:"phone"`
	Hash         string `db:"password_hash"`
	Role         string `db:"role"`
	Confirmed    bool   `db:"confirmed"`
	ConfirmToken string `db:"confirm_token"`
	CreatedAt    string `db:"created_at"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Customer returns the profile fields used as invoice fallbacks.
func (u *User) Customer() *Customer {
	if u == nil {
		return nil
	}
	return &Customer{Name: u.Name, Email: u.Email, Phone: u.Phone}
}
