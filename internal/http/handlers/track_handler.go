package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type TrackHandler struct {
	Requests *services.RequestService
}

// GET /track?q= looks requests up by id or contact email.
func (h *TrackHandler) Track(c *fiber.Ctx) error {
	rawQ := c.Query("q")
	if strings.TrimSpace(rawQ) == "" {
		// Initial page load: show empty search without errors
		return render(c, "track", fiber.Map{"Q": "", "Requests": nil, "Searched": false})
	}
	q, ok := validate.Q(rawQ)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "q", "value": rawQ})
		c.Status(fiber.StatusBadRequest)
		return render(c, "track", fiber.Map{
			"Q": "", "Requests": nil, "Err": "أدخل رقم طلب أو بريداً إلكترونياً صحيحاً.",
		})
	}

	reqs, err := h.Requests.Track(q)
	if err != nil {
		applog.Error(c, "track.error", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل النتائج. يرجى المحاولة مرة أخرى.")
	}
	return render(c, "track", fiber.Map{"Q": q, "Requests": reqs, "Searched": true})
}
