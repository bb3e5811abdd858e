package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryAppSubscription       Category = "app_subscription"
	CategoryItunesCard            Category = "itunes_card"
	CategoryStreamingSubscription Category = "streaming_subscription"
	CategoryIMEICheck             Category = "imei_check"
	CategoryEcommerceService      Category = "ecommerce_service"
	CategoryOtherService          Category = "other_service"
)

// Categories in storefront display order.
var Categories = []Category{
	CategoryAppSubscription,
	CategoryItunesCard,
	CategoryStreamingSubscription,
	CategoryIMEICheck,
	CategoryEcommerceService,
	CategoryOtherService,
}

func (c Category) Valid() bool {
	for _, x := range Categories {
		if x == c {
			return true
		}
	}
	return false
}

// Label is the Arabic section title shown on the storefront.
func (c Category) Label() string {
	switch c {
	case CategoryAppSubscription:
		return "اشتراكات التطبيقات"
	case CategoryItunesCard:
		return "بطاقات آيتونز والألعاب"
	case CategoryStreamingSubscription:
		return "اشتراكات البث"
	case CategoryIMEICheck:
		return "فحص IMEI"
	case CategoryEcommerceService:
		return "خدمات المتاجر الإلكترونية"
	default:
		return "خدمات أخرى"
	}
}

type FulfillmentType string

const (
	FulfillmentCode          FulfillmentType = "code"
	FulfillmentAccount       FulfillmentType = "account_details"
	FulfillmentServiceReport FulfillmentType = "service_report"
	FulfillmentPhysical      FulfillmentType = "physical_product"
	FulfillmentCustom        FulfillmentType = "custom_service"
)

var FulfillmentTypes = []FulfillmentType{
	FulfillmentCode, FulfillmentAccount, FulfillmentServiceReport, FulfillmentPhysical, FulfillmentCustom,
}

func (f FulfillmentType) Valid() bool {
	for _, x := range FulfillmentTypes {
		if x == f {
			return true
		}
	}
	return false
}

// RequiresStock reports whether fulfilling this type hands out a stock unit.
// Only service reports are fulfilled without one.
func (f FulfillmentType) RequiresStock() bool {
	return f.Valid() && f != FulfillmentServiceReport
}

type PaymentMethod string

const (
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (p PaymentMethod) Valid() bool { return p == PaymentPayPal || p == PaymentBankTransfer }

// InitialStatus is the order status right after the customer picks a payment method.
func (p PaymentMethod) InitialStatus() Status {
	if p == PaymentBankTransfer {
		return StatusPendingBankConfirmation
	}
	return StatusPaymentInitiated
}

// PaymentStatus is the request-side payment marker matching InitialStatus.
func (p PaymentMethod) PaymentStatus() string {
	if p == PaymentBankTransfer {
		return "Pending Confirmation"
	}
	return "Initiated"
}

type Product struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	ImageURL    string          `db:"image_url"`
	Category    Category        `db:"service_category"`
	Type        FulfillmentType `db:"product_type"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

// StockPayload is the deliverable carried by one stock unit: a code, or account credentials.
type StockPayload struct {
	Code        string `json:"code,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
}

// Matches checks the payload shape against a product fulfillment type.
func (p StockPayload) Matches(t FulfillmentType) bool {
	switch t {
	case FulfillmentCode, FulfillmentPhysical, FulfillmentCustom:
		return p.Code != "" && p.Username == "" && p.Password == ""
	case FulfillmentAccount:
		return p.Code == "" && p.Username != "" && p.Password != ""
	default:
		return false
	}
}

// Pretty renders the payload as indented JSON for customer messages.
func (p StockPayload) Pretty() string {
	b, _ := json.MarshalIndent(p, "", "  ")
	return string(b)
}

func (p StockPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *StockPayload) Scan(src any) error {
	return scanJSON(src, p)
}

type StockUnit struct {
	ID          string       `db:"id"`
	ProductID   string       `db:"product_id"`
	ProductName string       `db:"product_name"`
	Data        StockPayload `db:"stock_data"`
	Available   bool         `db:"is_available"`
	CreatedAt   string       `db:"created_at"`
	UpdatedAt   string       `db:"updated_at"`
}

// FormData is the free-form intake captured with a service request.
type FormData map[string]string

func (f FormData) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FormData) Scan(src any) error {
	if src == nil {
		*f = FormData{}
		return nil
	}
	return scanJSON(src, f)
}

type ServiceRequest struct {
	ID            string   `db:"id"`
	UserID        string   `db:"user_id"`
	ProductID     string   `db:"product_id"`
	ServiceName   string   `db:"service_name"`
	Name          string   `db:"name"`
	Email         string   `db:"email"`
	Phone         string   `db:"customer_phone"`
	SerialNumber  string   `db:"serial_number"`
	IMEI          string   `db:"imei"`
	UDID          string   `db:"udid"`
	RawFormData   FormData `db:"raw_form_data"`
	Status        Status   `db:"status"`
	PaymentMethod string   `db:"payment_method"`
	PaymentStatus string   `db:"payment_status"`
	OrderID       string   `db:"order_id"`
	CreatedAt     string   `db:"created_at"`
	UpdatedAt     string   `db:"updated_at"`
}

// Contactable reports whether the customer can be notified.
func (r ServiceRequest) Contactable() bool {
	return r.Email != "" || r.Phone != "" || r.RawFormData["phone"] != ""
}

type Order struct {
	ID               string          `db:"id"`
	ServiceRequestID string          `db:"service_request_id"`
	UserID           string          `db:"user_id"`
	ProductID        string          `db:"digital_product_id"`
	PurchasedStockID string          `db:"purchased_stock_id"`
	Status           Status          `db:"order_status"`
	PaymentMethod    PaymentMethod   `db:"payment_method"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	Invoice          *Invoice        `db:"invoice_details"`
	CreatedAt        string          `db:"created_at"`
	UpdatedAt        string          `db:"updated_at"`
}

// OrderView is an order joined with the rows it links to, as the admin and dashboard pages show it.
type OrderView struct {
	Order
	ProductName   string          `db:"product_name"`
	ProductType   FulfillmentType `db:"product_type"`
	ServiceName   string          `db:"service_name"`
	CustomerName  string          `db:"customer_name"`
	CustomerEmail string          `db:"customer_email"`
	CustomerPhone string          `db:"customer_phone"`
	RawFormData   FormData        `db:"raw_form_data"`
	Stock         *StockPayload   `db:"stock_data"`
}

// DisplayName picks the product name, then the request's service name.
func (v OrderView) DisplayName() string {
	switch {
	case v.ProductName != "":
		return v.ProductName
	case v.ServiceName != "":
		return v.ServiceName
	default:
		return "طلب غير محدد"
	}
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("%w: %T", errUnsupportedJSONSource, src)
	}
}

var errUnsupportedJSONSource = errors.New("unsupported json column source")
