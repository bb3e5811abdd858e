package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoicePrefix   = "INV-"
	unknownCustomer = "عميل"
	unknownEmail    = "غير متوفر"
	invoiceNotes    = "شكراً لتعاملك معنا!"
)

type CompanyInfo struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Email   string `json:"email" yaml:"email"`
	Phone   string `json:"phone" yaml:"phone"`
}

type InvoiceItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Invoice is the billing snapshot embedded in an order once it is fulfilled.
type Invoice struct {
	Number        string          `json:"invoice_number"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone *string         `json:"customer_phone"`
	Items         []InvoiceItem   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus string          `json:"payment_status_details"`
	ReportDetails string          `json:"report_details,omitempty"`
	CompanyInfo   CompanyInfo     `json:"company_info"`
	Notes         string          `json:"notes,omitempty"`
}

func (i Invoice) Value() (driver.Value, error) {
	b, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (i *Invoice) Scan(src any) error {
	return scanJSON(src, i)
}

// InvoiceNumber derives the invoice number from the order id.
func InvoiceNumber(orderID string) string {
	id := orderID
	if len(id) > 8 {
		id = id[:8]
	}
	return InvoicePrefix + strings.ToUpper(id)
}

// Customer is the account profile used when the intake form lacks contact fields.
type Customer struct {
	Name  string
	Email string
	Phone string
}

type InvoiceInput struct {
	Order   Order
	Product *Product
	Request *ServiceRequest
	Account *Customer
	Company CompanyInfo
	Now     time.Time
}

// BuildInvoice derives the invoice snapshot. It has no side effects.
func BuildInvoice(in InvoiceInput) Invoice {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	issued := now.UTC().Format(time.RFC3339)

	var items []InvoiceItem
	if name := lineItemName(in.Product, in.Request); name != "" {
		items = append(items, InvoiceItem{
			Name:       name,
			Quantity:   1,
			UnitPrice:  in.Order.TotalAmount,
			TotalPrice: in.Order.TotalAmount,
		})
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	tax := decimal.Zero

	inv := Invoice{
		Number:        InvoiceNumber(in.Order.ID),
		IssueDate:     issued,
		DueDate:       issued,
		CustomerName:  customerName(in.Request, in.Account),
		CustomerEmail: customerEmail(in.Request, in.Account),
		CustomerPhone: customerPhone(in.Request, in.Account),
		Items:         items,
		Subtotal:      subtotal,
		TaxRate:       decimal.Zero,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		PaymentMethod: in.Order.PaymentMethod,
		PaymentStatus: PaymentStatusText(in.Order.Status),
		CompanyInfo:   in.Company,
		Notes:         invoiceNotes,
	}
	if in.Product != nil && in.Product.Type == FulfillmentServiceReport && in.Request != nil {
		inv.ReportDetails = in.Request.RawFormData["report_details"]
	}
	return inv
}

func lineItemName(p *Product, r *ServiceRequest) string {
	if p != nil && p.Name != "" {
		return p.Name
	}
	if r != nil {
		return r.ServiceName
	}
	return ""
}

func customerName(r *ServiceRequest, a *Customer) string {
	if r != nil {
		if r.Name != "" {
			return r.Name
		}
		if n := r.RawFormData["name"]; n != "" {
			return n
		}
	}
	if a != nil && a.Name != "" {
		return a.Name
	}
	for _, email := range []string{requestEmail(r), accountEmail(a)} {
		if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
			return local
		}
	}
	return unknownCustomer
}

func customerEmail(r *ServiceRequest, a *Customer) string {
	if e := requestEmail(r); e != "" {
		return e
	}
	if e := accountEmail(a); e != "" {
		return e
	}
	return unknownEmail
}

func customerPhone(r *ServiceRequest, a *Customer) *string {
	var candidates []string
	if r != nil {
		candidates = append(candidates, r.Phone, r.RawFormData["phone"])
	}
	if a != nil {
		candidates = append(candidates, a.Phone)
	}
	for _, p := range candidates {
		if p != "" {
			return &p
		}
	}
	return nil
}

func requestEmail(r *ServiceRequest) string {
	if r == nil {
		return ""
	}
	return r.Email
}

func accountEmail(a *Customer) string {
	if a == nil {
		return ""
	}
	return a.Email
}
