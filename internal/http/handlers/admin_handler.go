package handlers

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type AdminHandler struct {
	Orders  *services.OrderService
	Catalog *services.CatalogService
	Stock   *services.StockService
	Users   *repos.UserRepo
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	counts, err := h.Orders.StatusCounts()
	if err != nil {
		applog.Error(c, "admin.dashboard.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, msgGeneric)
	}
	stock, err := h.Stock.Counts()
	if err != nil {
		applog.Error(c, "admin.dashboard.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, msgGeneric)
	}
	total := 0
	for _, sc := range counts {
		total += sc.N
	}
	return render(c, "admin_dashboard", fiber.Map{"Counts": counts, "Total": total, "Stock": stock})
}

// GET /admin/orders?status=&product=&q=&sort=&dir=&page=
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	f := repos.OrderFilter{SortBy: c.Query("sort"), Asc: c.Query("dir") == "asc"}
	if s, ok := domain.ParseStatus(c.Query("status")); ok {
		f.Status = s
	}
	if pid, ok := validate.ID(c.Query("product")); ok {
		f.ProductID = pid
	}
	if q, ok := validate.Q(c.Query("q")); ok {
		f.Search = q
	}
	f.Page, _ = strconv.Atoi(c.Query("page", "1"))
	if f.Page < 1 {
		f.Page = 1
	}

	ords, total, err := h.Orders.List(f)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل الطلبات.")
	}
	prods, err := h.Catalog.List()
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل الطلبات.")
	}
	pages := (total + repos.PageSize - 1) / repos.PageSize
	sorts := map[string]string{}
	for _, col := range []string{"created_at", "total_amount", "order_status"} {
		sf := f
		sf.SortBy, sf.Asc = col, f.SortBy == col && !f.Asc
		sorts[col] = ordersQuery(sf, 1)
	}
	return render(c, "admin_orders", fiber.Map{
		"Orders":   ords,
		"Total":    total,
		"Filter":   f,
		"Statuses": domain.Statuses,
		"Products": prods,
		"Page":     f.Page,
		"Pages":    pages,
		"HasPrev":  f.Page > 1,
		"HasNext":  f.Page < pages,
		"PrevURL":  ordersQuery(f, f.Page-1),
		"NextURL":  ordersQuery(f, f.Page+1),
		"SortURLs": sorts,
	})
}

// ordersQuery rebuilds the orders list URL for another page or sort order.
func ordersQuery(f repos.OrderFilter, page int) string {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.ProductID != "" {
		v.Set("product", f.ProductID)
	}
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	if f.SortBy != "" {
		v.Set("sort", f.SortBy)
	}
	if f.Asc {
		v.Set("dir", "asc")
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/admin/orders"
	}
	return "/admin/orders?" + v.Encode()
}

// GET /admin/orders/:id is the edit dialog.
func (h *AdminHandler) EditOrder(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	v, err := h.Orders.Get(id)
	if err != nil {
		status, msg := errorStatus(err)
		return renderStatus(c, status, msg)
	}
	data := fiber.Map{
		"Order":   v,
		"Targets": domain.AllowedTargets(v.Status),
		"Report":  v.RawFormData["report_details"],
	}
	if v.ProductType.RequiresStock() && v.PurchasedStockID == "" {
		units, err := h.Orders.AvailableStock(v.ProductID)
		if err != nil {
			applog.Error(c, "admin.orders.stock.fail", err, map[string]any{"order_id": id})
		}
		data["Units"] = units
		data["NeedsStock"] = true
	}
	return render(c, "admin_order_edit", data)
}

// POST /admin/orders/:id saves status, stock selection and report text.
func (h *AdminHandler) UpdateOrder(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	back := "/admin/orders/" + id
	status, ok := domain.ParseStatus(c.FormValue("status"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "status", "order_id": id})
		return redirectWithFlash(c, back, "حالة الطلب غير صالحة.")
	}
	cmd := services.TransitionCmd{OrderID: id, Status: status}
	if sid := c.FormValue("stock_id"); sid != "" {
		if cmd.StockID, ok = validate.ID(sid); !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "stock_id", "order_id": id})
			return redirectWithFlash(c, back, "عنصر المخزون غير صالح.")
		}
	}
	if c.FormValue("has_report") == "1" {
		report, ok := validate.Text(c.FormValue("report_details"), 5000)
		if !ok {
			return redirectWithFlash(c, back, "نص التقرير طويل جداً.")
		}
		cmd.ReportDetails = &report
	}

	res, err := h.Orders.Transition(c.UserContext(), cmd)
	if err != nil {
		_, msg := errorStatus(err)
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id, "status": status})
		return redirectWithFlash(c, back, msg)
	}
	fields := map[string]any{
		"order_id": id,
		"from":     res.Previous,
		"to":       res.Order.Status,
		"invoice":  res.InvoiceCreated,
		"notified": res.Notified,
	}
	if res.Allocated != nil {
		fields["stock_id"] = res.Allocated.ID
	}
	applog.Audit(c, "admin.orders.update", fields)
	return redirectWithFlash(c, "/admin/orders", msgOrderSaved)
}

// POST /admin/orders/:id/delete
func (h *AdminHandler) DeleteOrder(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, "الطلب غير موجود.")
	}
	release := c.FormValue("release_stock") == "1"
	if err := h.Orders.Delete(c.UserContext(), id, release); err != nil {
		_, msg := errorStatus(err)
		applog.Error(c, "admin.orders.delete.fail", err, map[string]any{"order_id": id})
		if errors.Is(err, services.ErrOrderHoldsStock) {
			return redirectWithFlash(c, "/admin/orders/"+id, msg)
		}
		return redirectWithFlash(c, "/admin/orders", msg)
	}
	applog.Audit(c, "admin.orders.delete", map[string]any{"order_id": id, "release_stock": release})
	return redirectWithFlash(c, "/admin/orders", msgOrderDeleted)
}

// GET /admin/products
func (h *AdminHandler) ProductsPage(c *fiber.Ctx) error {
	prods, err := h.Catalog.List()
	if err != nil {
		applog.Error(c, "admin.products.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل المنتجات.")
	}
	return render(c, "admin_products", fiber.Map{"Products": prods})
}

func productForm(c *fiber.Ctx, status int, p domain.Product, errMsg string) error {
	data := fiber.Map{
		"P":          p,
		"Price":      p.Price.StringFixed(2),
		"Categories": domain.Categories,
		"Types":      domain.FulfillmentTypes,
		"Err":        errMsg,
	}
	if status != fiber.StatusOK {
		c.Status(status)
	}
	return render(c, "admin_product_form", data)
}

// GET /admin/products/new
func (h *AdminHandler) NewProduct(c *fiber.Ctx) error {
	return productForm(c, fiber.StatusOK, domain.Product{
		Category: domain.CategoryAppSubscription,
		Type:     domain.FulfillmentCode,
	}, "")
}

func productInput(c *fiber.Ctx) services.ProductInput {
	return services.ProductInput{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
		ImageURL:    c.FormValue("image_url"),
		Category:    c.FormValue("category"),
		Type:        c.FormValue("product_type"),
	}
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	p, err := h.Catalog.CreateProduct(productInput(c))
	if err != nil {
		status, msg := errorStatus(err)
		applog.Error(c, "admin.products.create.fail", err, nil)
		return productForm(c, status, p, msg)
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "price": p.Price.StringFixed(2)})
	return redirectWithFlash(c, "/admin/products", msgProductSaved)
}

// GET /admin/products/:id/edit
func (h *AdminHandler) EditProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	p, err := h.Catalog.GetProduct(id)
	if err != nil {
		status, msg := errorStatus(err)
		return renderStatus(c, status, msg)
	}
	return productForm(c, fiber.StatusOK, p, "")
}

// POST /admin/products/:id
func (h *AdminHandler) UpdateProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	p, err := h.Catalog.UpdateProduct(id, productInput(c))
	if err != nil {
		status, msg := errorStatus(err)
		applog.Error(c, "admin.products.update.fail", err, map[string]any{"product_id": id})
		p.ID = id
		return productForm(c, status, p, msg)
	}
	applog.Audit(c, "admin.products.update", map[string]any{"product_id": id, "price": p.Price.StringFixed(2)})
	return redirectWithFlash(c, "/admin/products", msgProductSaved)
}

// POST /admin/products/:id/delete
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	if err := h.Catalog.DeleteProduct(id); err != nil {
		_, msg := errorStatus(err)
		applog.Error(c, "admin.products.delete.fail", err, map[string]any{"product_id": id})
		return redirectWithFlash(c, "/admin/products", msg)
	}
	applog.Audit(c, "admin.products.delete", map[string]any{"product_id": id})
	return redirectWithFlash(c, "/admin/products", msgProductDeleted)
}

// GET /admin/stock?product=
func (h *AdminHandler) StockPage(c *fiber.Ctx) error {
	var productID string
	if pid, ok := validate.ID(c.Query("product")); ok {
		productID = pid
	}
	counts, err := h.Stock.Counts()
	if err != nil {
		applog.Error(c, "admin.stock.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل المخزون.")
	}
	units, err := h.Stock.List(productID)
	if err != nil {
		applog.Error(c, "admin.stock.list.fail", err, map[string]any{"product_id": productID})
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل المخزون.")
	}
	prods, err := h.Stock.StockProducts()
	if err != nil {
		applog.Error(c, "admin.stock.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل المخزون.")
	}
	return render(c, "admin_stock", fiber.Map{
		"Counts":   counts,
		"Units":    units,
		"Products": prods,
		"Selected": productID,
	})
}

// POST /admin/stock adds one code, one account or a batch of codes.
func (h *AdminHandler) AddStock(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.FormValue("product_id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "product_id"})
		return redirectWithFlash(c, "/admin/stock", "يرجى اختيار منتج.")
	}
	back := "/admin/stock?product=" + pid
	mode := c.FormValue("mode")

	var added int
	var err error
	switch mode {
	case "bulk":
		var units []domain.StockUnit
		units, err = h.Stock.AddBulkCodes(pid, c.FormValue("codes"))
		added = len(units)
	case "account":
		_, err = h.Stock.AddAccount(pid, c.FormValue("username"), c.FormValue("password"), c.FormValue("profile_name"))
		added = 1
	default:
		mode = "code"
		_, err = h.Stock.AddCode(pid, c.FormValue("code"))
		added = 1
	}
	if err != nil {
		_, msg := errorStatus(err)
		applog.Error(c, "admin.stock.add.fail", err, map[string]any{"product_id": pid, "mode": mode})
		return redirectWithFlash(c, back, msg)
	}
	applog.Audit(c, "admin.stock.add", map[string]any{"product_id": pid, "mode": mode, "count": added})
	return redirectWithFlash(c, back, msgStockAdded)
}

// POST /admin/stock/:id/delete only removes units still available.
func (h *AdminHandler) DeleteStock(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	if err := h.Stock.Delete(id); err != nil {
		applog.Error(c, "admin.stock.delete.fail", err, map[string]any{"stock_id": id})
		return redirectWithFlash(c, "/admin/stock", "لا يمكن حذف عنصر مخزون تم تسليمه.")
	}
	applog.Audit(c, "admin.stock.delete", map[string]any{"stock_id": id})
	return redirectWithFlash(c, "/admin/stock", msgStockDeleted)
}

// UsersPage lists accounts with their order counts.
func (h *AdminHandler) UsersPage(c *fiber.Ctx) error {
	users, err := h.Users.List()
	if err != nil {
		applog.Error(c, "admin.users.list.fail", err, nil)
		return renderStatus(c, fiber.StatusInternalServerError, "تعذر تحميل المستخدمين.")
	}
	return render(c, "admin_users", fiber.Map{"Users": users})
}

// DeleteUser removes the account and its sessions; orders stay on record.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return renderStatus(c, fiber.StatusNotFound, msgNotFound)
	}
	if u := currentUser(c); u != nil && u.ID == id {
		return redirectWithFlash(c, "/admin/users", "لا يمكنك حذف حسابك الحالي.")
	}
	if err := h.Users.DeleteUserCascade(id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return redirectWithFlash(c, "/admin/users", "تعذر حذف المستخدم.")
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return redirectWithFlash(c, "/admin/users", msgUserDeleted)
}
