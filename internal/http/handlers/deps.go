package handlers

import (
	"github.com/jmoiron/sqlx"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
)

type Deps struct {
	Auth *services.AuthService

	AuthHandler      *AuthHandler
	StoreHandler     *StoreHandler
	TrackHandler     *TrackHandler
	InventoryHandler *InventoryHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, notifier notify.Dispatcher) *Deps {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	prodRepo := repos.NewProductRepo(db)
	stockRepo := repos.NewStockRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	reqRepo := repos.NewRequestRepo(db)
	userRepo := repos.NewUserRepo(db)

	authSvc := &services.AuthService{Users: userRepo, Notify: notifier, PublicURL: cfg.PublicURL}
	catalogSvc := services.NewCatalogService(prodRepo, stockRepo, orderRepo)
	stockSvc := services.NewStockService(stockRepo, prodRepo)
	orderSvc := services.NewOrderService(db, notifier, cfg.Store.Company)
	reqSvc := &services.RequestService{
		DB:          db,
		Requests:    reqRepo,
		Orders:      orderRepo,
		Prods:       prodRepo,
		Notify:      notifier,
		PayPalEmail: cfg.PayPalEmail,
		Currency:    cfg.Store.Currency,
	}

	return &Deps{
		Auth:             authSvc,
		AuthHandler:      &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		StoreHandler:     &StoreHandler{Catalog: catalogSvc, Stock: stockSvc, Requests: reqSvc, Cfg: cfg},
		TrackHandler:     &TrackHandler{Requests: reqSvc},
		InventoryHandler: &InventoryHandler{Stock: stockSvc},
		OrderHandler:     &OrderHandler{Order: orderSvc, Requests: reqSvc, Cfg: cfg},
		AdminHandler:     &AdminHandler{Orders: orderSvc, Catalog: catalogSvc, Stock: stockSvc, Users: userRepo},
	}
}
