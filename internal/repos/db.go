package repos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed the demo catalog if the DB is empty
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  confirmed INTEGER NOT NULL DEFAULT 0,
  confirm_token TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));
CREATE INDEX IF NOT EXISTS idx_users_confirm_token ON users(confirm_token);

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Catalog
CREATE TABLE IF NOT EXISTS digital_products(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  image_url TEXT,
  service_category TEXT NOT NULL CHECK (service_category IN
    ('app_subscription','itunes_card','streaming_subscription','imei_check','ecommerce_service','other_service')),
  product_type TEXT NOT NULL CHECK (product_type IN
    ('code','account_details','service_report','physical_product','custom_service')),
  created_at TEXT,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_category ON digital_products(service_category);

-- Stock pool
CREATE TABLE IF NOT EXISTS product_stock(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES digital_products(id) ON DELETE RESTRICT,
  stock_data TEXT NOT NULL,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at TEXT,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_stock_product_available ON product_stock(product_id, is_available);

-- Service requests
CREATE TABLE IF NOT EXISTS service_requests(
  id TEXT PRIMARY KEY,
  user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
  digital_product_id TEXT REFERENCES digital_products(id) ON DELETE SET NULL,
  service_name TEXT NOT NULL,
  name TEXT,
  email TEXT,
  customer_phone TEXT,
  serial_number TEXT,
  imei TEXT,
  udid TEXT,
  raw_form_data TEXT,
  status TEXT NOT NULL,
  payment_method TEXT,
  payment_status TEXT,
  order_id TEXT,
  created_at TEXT,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_requests_email ON service_requests(LOWER(email));
CREATE INDEX IF NOT EXISTS idx_requests_user ON service_requests(user_id);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  service_request_id TEXT REFERENCES service_requests(id) ON DELETE SET NULL,
  user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
  digital_product_id TEXT REFERENCES digital_products(id) ON DELETE RESTRICT,
  purchased_stock_id TEXT REFERENCES product_stock(id) ON DELETE RESTRICT,
  order_status TEXT NOT NULL,
  payment_method TEXT NOT NULL CHECK (payment_method IN ('paypal','bank_transfer')),
  total_amount NUMERIC NOT NULL CHECK (total_amount > 0),
  invoice_details TEXT,
  created_at TEXT,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(order_status);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
-- a stock unit belongs to at most one order
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_purchased_stock
  ON orders(purchased_stock_id) WHERE purchased_stock_id IS NOT NULL;
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM digital_products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Info(nil, "seed.catalog", nil)

	ts := now()
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()
	tx.MustExec(`INSERT INTO digital_products(id,name,description,price,image_url,service_category,product_type,created_at,updated_at) VALUES
	  ('netflix-1y','Netflix 1-Year','اشتراك نتفليكس لمدة سنة',120.00,'','streaming_subscription','account_details',?,?),
	  ('shahid-vip-3m','Shahid VIP 3-Month','اشتراك شاهد VIP لمدة ثلاثة أشهر',45.00,'','streaming_subscription','account_details',?,?),
	  ('itunes-50','iTunes Card 50 SAR','بطاقة آيتونز سعودي ٥٠ ريال',50.00,'','itunes_card','code',?,?),
	  ('pubg-660','PUBG 660 UC','شحن شدات ببجي ٦٦٠',35.00,'','itunes_card','code',?,?),
	  ('canva-pro-1y','Canva Pro 1-Year','اشتراك كانفا برو لمدة سنة',60.00,'','app_subscription','account_details',?,?),
	  ('imei-blacklist','IMEI Blacklist Check','فحص حالة الجهاز في القائمة السوداء',15.00,'','imei_check','service_report',?,?),
	  ('salla-store-setup','Salla Store Setup','تجهيز متجر سلة متكامل',750.00,'','ecommerce_service','custom_service',?,?)`,
		ts, ts, ts, ts, ts, ts, ts, ts, ts, ts, ts, ts, ts, ts)
	return tx.Commit()
}

// SeedAdmin ensures an ADMIN account exists for email (idempotent).
func SeedAdmin(db *sqlx.DB, id, email, password string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO users(id,email,name,password_hash,role,confirmed,created_at)
		VALUES(?,?,?,?,?,1,?)
		ON CONFLICT(email) DO NOTHING
	`, id, email, "Admin", string(h), domain.RoleAdmin, now())
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// nullable maps "" to SQL NULL for optional references.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// expectOne turns an UPDATE/DELETE that touched nothing into sql.ErrNoRows.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
