package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type InventoryHandler struct {
	Stock *services.StockService
}

// GET /api/v1/availability?productId=
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing productId",
		})
	}
	if _, ok := validate.ID(productID); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid productId",
		})
	}

	avail, err := h.Stock.CheckAvailability(productID)
	if err != nil {
		applog.Error(c, "availability.fail", err, map[string]any{"product_id": productID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not check availability",
		})
	}
	return c.JSON(fiber.Map{"status": avail.Status, "qty": avail.Qty})
}

type stockUnitJSON struct {
	ID          string `json:"id"`
	Code        string `json:"code,omitempty"`
	Username    string `json:"username,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// GET /api/v1/admin/products/:id/stock lists the units an admin can pick.
// Passwords stay out of the listing.
func (h *InventoryHandler) Available(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	units, err := h.Stock.AvailableStock(id)
	if err != nil {
		applog.Error(c, "admin.stock.available.fail", err, map[string]any{"product_id": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load stock"})
	}
	out := make([]stockUnitJSON, 0, len(units))
	for _, u := range units {
		out = append(out, stockUnitJSON{
			ID:          u.ID,
			Code:        u.Data.Code,
			Username:    u.Data.Username,
			ProfileName: u.Data.ProfileName,
			CreatedAt:   u.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"product_id": id, "available": out})
}
