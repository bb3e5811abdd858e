package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/links"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type OrderHandler struct {
	Order    *services.OrderService
	Requests *services.RequestService
	Cfg      config.Config
}

// Dashboard lists the signed-in customer's orders and open requests.
func (h *OrderHandler) Dashboard(c *fiber.Ctx) error {
	u := currentUser(c)
	// If RequireUser is used, user is guaranteed; fallback to 404
	if u == nil {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	orders, err := h.Order.ForUser(u.ID)
	if err != nil {
		applog.Error(c, "dashboard.orders.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل طلباتك.")
	}
	reqs, err := h.Requests.ForUser(u.ID)
	if err != nil {
		applog.Error(c, "dashboard.requests.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل طلباتك.")
	}
	var inquiries []any
	for _, r := range reqs {
		if r.OrderID == "" {
			inquiries = append(inquiries, r)
		}
	}
	return render(c, "dashboard", fiber.Map{
		"Orders":    orders,
		"Inquiries": inquiries,
		"WhatsApp":  links.WhatsApp(h.Cfg.WhatsAppPhone, whatsAppGreeting),
	})
}

// GET /orders/:id/invoice is visible to the order owner and admins.
func (h *OrderHandler) Invoice(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الفاتورة غير موجودة.")
	}
	v, err := h.Order.Invoice(id, currentUser(c))
	if err != nil {
		applog.Security(c, "access.denied.invoice", map[string]any{"order_id": id})
		return renderStatus(c, fiber.StatusNotFound, "الفاتورة غير موجودة.")
	}
	return render(c, "invoice", fiber.Map{"Order": v, "Inv": v.Invoice})
}
