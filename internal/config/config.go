package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
)

// Store is the shop identity printed on invoices and the checkout page.
// It can be overridden by the YAML file named in CONFIG_FILE.
type Store struct {
	Company     domain.CompanyInfo `yaml:"company"`
	BankName    string             `yaml:"bank_name"`
	BankAccount string             `yaml:"bank_account"`
	BankIBAN    string             `yaml:"bank_iban"`
	Currency    string             `yaml:"currency"`
}

type Config struct {
	Port      string
	DBDSN     string
	LogFile   string
	PublicURL string
	RateLimit int

	AdminEmail    string
	AdminPassword string

	NotifyBaseURL string
	NotifyAPIKey  string

	// Redis outbox for notifications; empty RedisAddr dispatches in-process.
	RedisAddr      string
	RedisDB        int
	NotifyStream   string
	NotifyGroup    string
	NotifyConsumer string

	WhatsAppPhone string
	PayPalEmail   string
	CookieSecure  bool

	Store Store
}

func DefaultStore() Store {
	return Store{
		Company: domain.CompanyInfo{
			Name:    "Drmnef",
			Address: "المملكة العربية السعودية",
			Email:   "Dr.mnef@Gmail.Com",
			Phone:   "+966538182861",
		},
		BankName:    "بنك الراجحي",
		BankAccount: "430000010006086069072",
		BankIBAN:    "SA1780000430608016069072",
		Currency:    "SAR",
	}
}

func Load() Config {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		DBDSN:          getEnv("DB_DSN", "digistore.db"),
		LogFile:        getEnv("LOG_FILE", "./digistore.log"),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		RateLimit:      60,
		AdminEmail:     getEnv("ADMIN_EMAIL", "admin@drmnef.test"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		NotifyBaseURL:  os.Getenv("NOTIFY_BASE_URL"),
		NotifyAPIKey:   os.Getenv("NOTIFY_API_KEY"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NotifyStream:   getEnv("NOTIFY_STREAM", "digistore:notifications"),
		NotifyGroup:    getEnv("NOTIFY_GROUP", "digistore-notify"),
		NotifyConsumer: getEnv("NOTIFY_CONSUMER", "digistore-notify-1"),
		WhatsAppPhone:  getEnv("WHATSAPP_PHONE", "966538182861"),
		PayPalEmail:    getEnv("PAYPAL_EMAIL", "mnefal3mzi@hotmail.com"),
		Store:          DefaultStore(),
	}
	if n, err := strconv.Atoi(getEnv("REDIS_DB", "0")); err == nil {
		cfg.RedisDB = n
	} else {
		applog.Error(nil, "config.redis_db.invalid", err, nil)
	}
	if n, err := strconv.Atoi(getEnv("RATE_LIMIT", "60")); err == nil && n > 0 {
		cfg.RateLimit = n
	}
	cfg.CookieSecure, _ = strconv.ParseBool(os.Getenv("COOKIE_SECURE"))

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		store, err := LoadStore(path, cfg.Store)
		if err != nil {
			applog.Error(nil, "config.store.load", err, map[string]any{"path": path})
		} else {
			cfg.Store = store
		}
	}

	applog.Info(nil, "config.load", map[string]any{
		"port":          cfg.Port,
		"db_dsn":        cfg.DBDSN,
		"log_file":      cfg.LogFile,
		"notify":        cfg.NotifyBaseURL != "",
		"redis_outbox":  cfg.RedisAddr != "",
		"admin_seeded":  cfg.AdminPassword != "",
		"cookie_secure": cfg.CookieSecure,
	})
	return cfg
}

// LoadStore reads a YAML store file over base; fields missing from the file keep base values.
func LoadStore(path string, base Store) (Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	out := base
	if err := yaml.Unmarshal(b, &out); err != nil {
		return base, err
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
