package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/links"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

const (
	// ICloudBypassService names the free custom request offered on the home page.
	ICloudBypassService = "طلب تجاوز iCloud"
	guestName           = "زائر"
)

type RequestService struct {
	DB       *sqlx.DB
	Requests *repos.RequestRepo
	Orders   *repos.OrderRepo
	Prods    *repos.ProductRepo
	Notify   notify.Dispatcher

	PayPalEmail string
	Currency    string
}

// RequestInput is the intake form. ProductID is empty for the iCloud bypass form.
type RequestInput struct {
	ProductID    string
	ICloudBypass bool
	Name         string
	Email        string
	Phone        string
	SerialNumber string
	IMEI         string
	UDID         string
	Notes        string
	User         *domain.User
}

// Submit records a customer request. Free services land in
// Inquiry Received and notify the admin; priced ones wait in Pending Payment
// for PlaceOrder.
func (s *RequestService) Submit(ctx context.Context, in RequestInput) (domain.ServiceRequest, error) {
	var (
		product *domain.Product
		name    = ICloudBypassService
		price   = decimal.Zero
		cat     domain.Category
	)
	if !in.ICloudBypass {
		p, err := s.Prods.Get(in.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ServiceRequest{}, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
			}
			return domain.ServiceRequest{}, err
		}
		product, name, price, cat = &p, p.Name, p.Price, p.Category
	}

	sr, err := buildRequest(in, name, price, cat)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	sr.ID = uuid.NewString()
	if product != nil {
		sr.ProductID = product.ID
		sr.RawFormData["selectedProductId"] = product.ID
		sr.RawFormData["category"] = string(product.Category)
	} else {
		sr.RawFormData["category"] = "icloud_bypass_request"
	}

	if price.IsPositive() {
		sr.Status = domain.StatusPendingPayment
		sr.PaymentStatus = "Pending"
	} else {
		sr.Status = domain.StatusInquiryReceived
		sr.PaymentStatus = "Not Applicable"
	}
	if err := s.Requests.Create(sr); err != nil {
		return domain.ServiceRequest{}, err
	}

	if sr.Status == domain.StatusInquiryReceived {
		s.Notify.Dispatch(ctx, notify.FnAdminOrder, notify.NewAdminOrder(sr.ID, sr.ServiceName, decimal.Zero, sr.Name, sr.Email))
	}
	return sr, nil
}

func buildRequest(in RequestInput, serviceName string, price decimal.Decimal, cat domain.Category) (domain.ServiceRequest, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" && in.User != nil {
		email = in.User.Email
	}
	if email != "" {
		var ok bool
		if email, ok = validate.Email(email); !ok {
			return domain.ServiceRequest{}, fmt.Errorf("%w: email", ErrInvalidInput)
		}
	}
	if email == "" && price.IsPositive() {
		return domain.ServiceRequest{}, fmt.Errorf("%w: email is required for paid services", ErrInvalidInput)
	}

	name := plainText(in.Name)
	if name == "" && in.User != nil {
		name = in.User.Name
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" && in.User != nil {
		phone = in.User.Phone
	}
	if phone != "" {
		var ok bool
		if phone, ok = validate.Phone(phone); !ok {
			return domain.ServiceRequest{}, fmt.Errorf("%w: phone", ErrInvalidInput)
		}
	}

	var serial, imei, udid string
	var ok bool
	switch {
	case in.ICloudBypass:
		if name == "" || email == "" || in.SerialNumber == "" || in.IMEI == "" {
			return domain.ServiceRequest{}, fmt.Errorf("%w: name, email, serial number and IMEI are required", ErrInvalidInput)
		}
		if serial, ok = validate.Serial(in.SerialNumber); !ok {
			return domain.ServiceRequest{}, fmt.Errorf("%w: serial number", ErrInvalidInput)
		}
		if imei, ok = validate.IMEI(in.IMEI); !ok {
			return domain.ServiceRequest{}, fmt.Errorf("%w: IMEI", ErrInvalidInput)
		}
	case cat == domain.CategoryIMEICheck:
		if strings.TrimSpace(in.IMEI) == "" && price.IsPositive() {
			return domain.ServiceRequest{}, fmt.Errorf("%w: IMEI is required", ErrInvalidInput)
		}
		if strings.TrimSpace(in.IMEI) != "" {
			if imei, ok = validate.IMEI(in.IMEI); !ok {
				return domain.ServiceRequest{}, fmt.Errorf("%w: IMEI", ErrInvalidInput)
			}
		}
	}
	if strings.TrimSpace(in.UDID) != "" {
		if udid, ok = validate.UDID(in.UDID); !ok {
			return domain.ServiceRequest{}, fmt.Errorf("%w: UDID", ErrInvalidInput)
		}
	}
	notes, ok := validate.Text(plainText(in.Notes), 2000)
	if !ok {
		return domain.ServiceRequest{}, fmt.Errorf("%w: notes too long", ErrInvalidInput)
	}

	if name == "" {
		if local, _, found := strings.Cut(email, "@"); found && local != "" {
			name = local
		} else {
			name = guestName
		}
	}

	raw := domain.FormData{"service_name_details": serviceName}
	for k, v := range map[string]string{
		"name": name, "email": email, "phone": phone, "serialNumber": serial,
		"imei": imei, "udid": udid, "notes": notes,
	} {
		if v != "" {
			raw[k] = v
		}
	}
	sr := domain.ServiceRequest{
		ServiceName:  serviceName,
		Name:         name,
		Email:        email,
		Phone:        phone,
		SerialNumber: serial,
		IMEI:         imei,
		UDID:         udid,
		RawFormData:  raw,
	}
	if in.User != nil {
		sr.UserID = in.User.ID
	}
	return sr, nil
}

// PlacedOrder is the outcome of choosing a payment method.
type PlacedOrder struct {
	Order      domain.Order
	Request    domain.ServiceRequest
	Product    domain.Product
	PaymentURL string // PayPal only
}

// PlaceOrder creates the order for a priced request and links it back, in
// one transaction. The admin is notified after commit.
func (s *RequestService) PlaceOrder(ctx context.Context, requestID string, method domain.PaymentMethod) (PlacedOrder, error) {
	if !method.Valid() {
		return PlacedOrder{}, fmt.Errorf("%w: payment method %q", ErrInvalidInput, method)
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return PlacedOrder{}, err
	}
	defer func() { _ = tx.Rollback() }()

	sr, err := s.Requests.GetTx(tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlacedOrder{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
		}
		return PlacedOrder{}, err
	}
	if sr.OrderID != "" {
		return PlacedOrder{}, fmt.Errorf("%w: request %s already has order %s", ErrOrderConflict, sr.ID, sr.OrderID)
	}
	status := method.InitialStatus()
	if err := domain.CheckTransition(sr.Status, status); err != nil {
		return PlacedOrder{}, err
	}
	if sr.ProductID == "" {
		return PlacedOrder{}, fmt.Errorf("%w: request %s has no product", ErrInvalidInput, sr.ID)
	}
	p, err := s.Prods.GetTx(tx, sr.ProductID)
	if err != nil {
		return PlacedOrder{}, err
	}
	if !p.Price.IsPositive() {
		return PlacedOrder{}, fmt.Errorf("%w: product %s is free", ErrInvalidInput, p.ID)
	}

	o := domain.Order{
		ID:               uuid.NewString(),
		ServiceRequestID: sr.ID,
		UserID:           sr.UserID,
		ProductID:        p.ID,
		Status:           status,
		PaymentMethod:    method,
		TotalAmount:      p.Price,
	}
	if err := s.Orders.Create(tx, o); err != nil {
		return PlacedOrder{}, err
	}
	if err := s.Requests.AttachOrder(tx, sr.ID, o.ID, method, status); err != nil {
		return PlacedOrder{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlacedOrder{}, err
	}

	sr.OrderID, sr.Status = o.ID, status
	sr.PaymentMethod, sr.PaymentStatus = string(method), method.PaymentStatus()

	s.Notify.Dispatch(ctx, notify.FnAdminOrder, notify.NewAdminOrder(o.ID, p.Name, p.Price, sr.Name, sr.Email))

	out := PlacedOrder{Order: o, Request: sr, Product: p}
	if method == domain.PaymentPayPal {
		out.PaymentURL = links.PayPal(s.PayPalEmail, p.Name, o.ID, p.Price, s.Currency)
	}
	return out, nil
}

func (s *RequestService) Get(id string) (domain.ServiceRequest, error) {
	sr, err := s.Requests.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return sr, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return sr, err
}

// Track finds requests by id or contact email.
func (s *RequestService) Track(term string) ([]domain.ServiceRequest, error) {
	return s.Requests.Search(term)
}

func (s *RequestService) ForUser(userID string) ([]domain.ServiceRequest, error) {
	return s.Requests.ListByUser(userID)
}
