// Package notify delivers customer and admin notifications to the external
// messaging functions. Delivery is best-effort: failures are logged, never
// returned to the caller that triggered them.
package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

// Function names understood by the messaging backend.
const (
	FnClientOrderUpdate  = "client-order-update-notification"
	FnAdminOrder         = "admin-order-notification"
	FnConfirmationEmail  = "send-confirmation-email"
	deliveredStockPrefix = "بيانات المنتج المسلم: "
	inquiryPriceLabel    = "0 (استفسار)"
)

// Sender performs one synchronous delivery.
type Sender interface {
	Send(ctx context.Context, function string, body any) error
}

// Dispatcher hands a notification off without blocking the caller on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, function string, body any)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Dispatch(context.Context, string, any) {}

// OrderUpdate is the customer-facing status change payload.
type OrderUpdate struct {
	OrderID       string `json:"orderId"`
	NewStatus     string `json:"newStatus"`
	ProductName   string `json:"productName"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	ReportDetails string `json:"reportDetails,omitempty"`
}

type OrderUpdateBody struct {
	Details OrderUpdate `json:"orderUpdateDetails"`
}

// AdminOrder announces a new order or inquiry to the shop owner.
type AdminOrder struct {
	OrderID       string `json:"orderId"`
	ProductName   string `json:"productName"`
	ProductPrice  string `json:"productPrice"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

type AdminOrderBody struct {
	Details AdminOrder `json:"orderDetails"`
}

type Confirmation struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Link  string `json:"confirmationLink"`
}

// NewOrderUpdate builds the customer payload for a committed transition.
// Report text wins for service reports; otherwise a delivered stock unit is
// rendered as pretty JSON.
func NewOrderUpdate(o domain.Order, productName string, productType domain.FulfillmentType, sr domain.ServiceRequest, stock *domain.StockPayload) OrderUpdateBody {
	u := OrderUpdate{
		OrderID:       o.ID,
		NewStatus:     string(o.Status),
		ProductName:   productName,
		CustomerEmail: sr.Email,
		CustomerPhone: sr.Phone,
		CustomerName:  sr.Name,
	}
	if u.ProductName == "" {
		u.ProductName = sr.ServiceName
	}
	if u.CustomerPhone == "" {
		u.CustomerPhone = sr.RawFormData["phone"]
	}
	switch {
	case productType == domain.FulfillmentServiceReport && o.Status.Canonical() == domain.StatusCompleted:
		u.ReportDetails = sr.RawFormData["report_details"]
	case stock != nil:
		u.ReportDetails = deliveredStockPrefix + stock.Pretty()
	}
	return OrderUpdateBody{Details: u}
}

// NewAdminOrder builds the admin payload; a zero price marks an inquiry.
func NewAdminOrder(id, productName string, price decimal.Decimal, customerName, customerEmail string) AdminOrderBody {
	p := inquiryPriceLabel
	if price.IsPositive() {
		p = price.StringFixed(2)
	}
	return AdminOrderBody{Details: AdminOrder{
		OrderID:       id,
		ProductName:   productName,
		ProductPrice:  p,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
	}}
}

func endpoint(base, function string) string {
	return fmt.Sprintf("%s/functions/v1/%s", base, function)
}
