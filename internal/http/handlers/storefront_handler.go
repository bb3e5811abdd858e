package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/links"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

const whatsAppGreeting = "مرحباً، أود الاستفسار عن خدماتكم"

type StoreHandler struct {
	Catalog  *services.CatalogService
	Stock    *services.StockService
	Requests *services.RequestService
	Cfg      config.Config
}

func (h *StoreHandler) Home(c *fiber.Ctx) error {
	sections, err := h.Catalog.Storefront()
	if err != nil {
		applog.Error(c, "home.load", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, msgGeneric)
	}
	avail := map[string]services.Availability{}
	for _, s := range sections {
		for _, p := range s.Products {
			if !p.Type.RequiresStock() {
				continue
			}
			if a, err := h.Stock.CheckAvailability(p.ID); err == nil {
				avail[p.ID] = a
			}
		}
	}
	return render(c, "home", fiber.Map{
		"Sections":     sections,
		"Availability": avail,
		"WhatsApp":     links.WhatsApp(h.Cfg.WhatsAppPhone, whatsAppGreeting),
		"ICloudName":   services.ICloudBypassService,
	})
}

// GET /product/:id shows the product with its request form.
func (h *StoreHandler) Product(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return renderStatus(c, fiber.StatusNotFound, "هذه الخدمة لم تعد متاحة.")
	}
	p, err := h.Catalog.GetProduct(id)
	if err != nil {
		return renderStatus(c, fiber.StatusNotFound, "هذه الخدمة لم تعد متاحة.")
	}
	data := fiber.Map{"P": p}
	if p.Type.RequiresStock() {
		if a, err := h.Stock.CheckAvailability(p.ID); err == nil {
			data["Availability"] = a
		}
	}
	return render(c, "product", data)
}

// POST /requests
func (h *StoreHandler) Submit(c *fiber.Ctx) error {
	in := services.RequestInput{
		ProductID:    c.FormValue("product_id"),
		ICloudBypass: c.FormValue("icloud") == "1",
		Name:         c.FormValue("name"),
		Email:        c.FormValue("email"),
		Phone:        c.FormValue("phone"),
		SerialNumber: c.FormValue("serial_number"),
		IMEI:         c.FormValue("imei"),
		UDID:         c.FormValue("udid"),
		Notes:        c.FormValue("notes"),
		User:         currentUser(c),
	}
	if !in.ICloudBypass {
		if _, ok := validate.ID(in.ProductID); !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "product_id"})
			return renderStatus(c, fiber.StatusBadRequest, "يرجى اختيار خدمة صحيحة.")
		}
	}

	sr, err := h.Requests.Submit(c.UserContext(), in)
	if err != nil {
		status, msg := errorStatus(err)
		if errors.Is(err, services.ErrInvalidInput) {
			applog.Security(c, "request.submit.invalid", map[string]any{"product_id": in.ProductID, "error": err.Error()})
		} else {
			applog.Error(c, "request.submit.fail", err, map[string]any{"product_id": in.ProductID})
		}
		back := "/"
		if in.ProductID != "" {
			back = "/product/" + in.ProductID
		}
		return c.Status(status).Render("notfound", fiber.Map{"Message": msg, "Back": back, "User": currentUser(c)})
	}
	applog.Audit(c, "request.submit", map[string]any{"request_id": sr.ID, "status": sr.Status, "product_id": sr.ProductID})

	if sr.Status == domain.StatusPendingPayment {
		return c.Redirect("/requests/" + sr.ID + "/pay")
	}
	return render(c, "request_received", fiber.Map{
		"Request":  sr,
		"Flash":    msgInquirySent,
		"WhatsApp": links.WhatsApp(h.Cfg.WhatsAppPhone, "مرحباً، رقم طلبي: "+sr.ID),
	})
}

// GET /requests/:id/pay
func (h *StoreHandler) Checkout(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	sr, err := h.Requests.Get(id)
	if err != nil {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	if sr.OrderID != "" || sr.Status != domain.StatusPendingPayment {
		return c.Redirect("/track?q=" + sr.ID)
	}
	p, err := h.Catalog.GetProduct(sr.ProductID)
	if err != nil {
		return renderStatus(c, fiber.StatusNotFound, "هذه الخدمة لم تعد متاحة.")
	}
	return render(c, "checkout", fiber.Map{"Request": sr, "P": p, "Store": h.Cfg.Store})
}

// POST /requests/:id/pay
func (h *StoreHandler) Pay(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	method := domain.PaymentMethod(c.FormValue("payment_method"))
	if !method.Valid() {
		applog.Security(c, "validation.fail", map[string]any{"field": "payment_method"})
		return redirectWithFlash(c, "/requests/"+id+"/pay", "يرجى اختيار طريقة الدفع.")
	}

	placed, err := h.Requests.PlaceOrder(c.UserContext(), id, method)
	if err != nil {
		status, msg := errorStatus(err)
		applog.Error(c, "order.place.fail", err, map[string]any{"request_id": id, "method": method})
		return renderStatus(c, status, msg)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id":   placed.Order.ID,
		"request_id": id,
		"method":     method,
		"total":      placed.Order.TotalAmount.StringFixed(2),
	})
	return render(c, "order_placed", fiber.Map{
		"Placed":   placed,
		"Store":    h.Cfg.Store,
		"WhatsApp": links.WhatsApp(h.Cfg.WhatsAppPhone, "مرحباً، قمت بإنشاء الطلب رقم "+placed.Order.ID+" وأرغب بتأكيد الدفع"),
	})
}
