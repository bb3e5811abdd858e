package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/shopspring/decimal"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/web"
)

// BodyLimit caps request bodies at 1 MiB.
const BodyLimit = 1 << 20

// NewEngine loads the embedded templates with the helpers they use.
func NewEngine() (*html.Engine, error) {
	sub, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("money", func(d decimal.Decimal) string { return d.StringFixed(2) })
	engine.AddFunc("paymentStatus", func(s domain.Status) string { return domain.PaymentStatusText(s) })
	engine.AddFunc("methodLabel", func(m domain.PaymentMethod) string {
		if m == domain.PaymentBankTransfer {
			return "تحويل بنكي"
		}
		return "PayPal"
	})
	engine.AddFunc("deref", func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	})
	engine.AddFunc("short", func(id string) string {
		if len(id) > 8 {
			return id[:8]
		}
		return id
	})
	return engine, nil
}

// errorHandler shows a friendly page and never leaks the underlying error.
func errorHandler(c *fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, msgGeneric
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		status = fe.Code
		switch fe.Code {
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			msg = msgNotFound
		case fiber.StatusRequestEntityTooLarge:
			msg = "حجم الطلب كبير جداً."
		case fiber.StatusTooManyRequests:
			msg = msgTooMany
		}
	}
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	if rerr := c.Status(status).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(status).SendString(msg)
	}
	return nil
}

// NewApp assembles the fiber app: views, middleware and every route.
func NewApp(d *Deps, cfg config.Config) (*fiber.App, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		Views:        engine,
		BodyLimit:    BodyLimit,
		ErrorHandler: errorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(AttachUser(d.Auth))

	perMinute := cfg.RateLimit
	if perMinute <= 0 {
		perMinute = 60
	}
	app.Use(limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return renderStatus(c, fiber.StatusTooManyRequests, msgTooMany)
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"error": err.Error()})
			return renderStatus(c, fiber.StatusForbidden, msgCSRF)
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// Storefront
	app.Get("/", d.StoreHandler.Home)
	app.Get("/product/:id", d.StoreHandler.Product)
	app.Post("/requests", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.requests.hit", nil)
			return renderStatus(c, fiber.StatusTooManyRequests, msgTooMany)
		},
	}), d.StoreHandler.Submit)
	app.Get("/requests/:id/pay", d.StoreHandler.Checkout)
	app.Post("/requests/:id/pay", d.StoreHandler.Pay)
	app.Get("/track", limiter.New(limiter.Config{Max: 20, Expiration: time.Minute}), d.TrackHandler.Track)

	// Customer
	app.Get("/dashboard", RequireUser(d.Auth), d.OrderHandler.Dashboard)
	app.Get("/orders/:id/invoice", d.OrderHandler.Invoice)

	// API
	api := app.Group("/api/v1")
	api.Get("/availability", limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}), d.InventoryHandler.Check)
	api.Get("/admin/products/:id/stock", RequireAdmin(d.Auth), d.InventoryHandler.Available)

	// Auth routes (login throttled)
	loginLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{
				"Err": msgTooMany, "Admin": c.FormValue("admin") == "1",
			})
		},
	})
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", loginLimiter, d.AuthHandler.Login)
	app.Get("/admin/login", d.AuthHandler.AdminLoginForm)
	app.Get("/signup", d.AuthHandler.SignupForm)
	app.Post("/signup", limiter.New(limiter.Config{
		Max:        5,
		Expiration: time.Hour,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.signup.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("signup", fiber.Map{"Err": msgTooMany})
		},
	}), d.AuthHandler.Signup)
	app.Get("/confirm", d.AuthHandler.Confirm)
	app.Post("/logout", d.AuthHandler.Logout)

	// Admin
	a := d.AdminHandler
	admin := app.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/", a.Dashboard)
	admin.Get("/orders", a.OrdersPage)
	admin.Get("/orders/:id", a.EditOrder)
	admin.Post("/orders/:id", a.UpdateOrder)
	admin.Post("/orders/:id/delete", a.DeleteOrder)
	admin.Get("/products", a.ProductsPage)
	admin.Get("/products/new", a.NewProduct)
	admin.Post("/products", a.CreateProduct)
	admin.Get("/products/:id/edit", a.EditProduct)
	admin.Post("/products/:id", a.UpdateProduct)
	admin.Post("/products/:id/delete", a.DeleteProduct)
	admin.Get("/stock", a.StockPage)
	admin.Post("/stock", a.AddStock)
	admin.Post("/stock/:id/delete", a.DeleteStock)
	admin.Get("/users", a.UsersPage)
	admin.Post("/users/:id/delete", a.DeleteUser)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	})
	return app, nil
}
