package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
)

type StockService struct {
	Stock *repos.StockRepo
	Prods *repos.ProductRepo
}

func NewStockService(stock *repos.StockRepo, prods *repos.ProductRepo) *StockService {
	return &StockService{Stock: stock, Prods: prods}
}

// Availability is the storefront badge for stock-backed products.
type Availability struct {
	Status string // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int
}

// CheckAvailability converts the available unit count into a badge.
func (s *StockService) CheckAvailability(productID string) (Availability, error) {
	qty, err := s.Stock.CountAvailable(productID)
	if err != nil {
		return Availability{}, err
	}
	status := "OUT_OF_STOCK"
	switch {
	case qty >= 5:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return Availability{Status: status, Qty: qty}, nil
}

// AvailableStock lists a product's unallocated units in insertion order.
func (s *StockService) AvailableStock(productID string) ([]domain.StockUnit, error) {
	return s.Stock.ListAvailable(productID)
}

func (s *StockService) List(productID string) ([]domain.StockUnit, error) {
	return s.Stock.List(productID)
}

func (s *StockService) Counts() ([]repos.StockCount, error) { return s.Stock.Counts() }

// StockProducts are the products that accept stock units.
func (s *StockService) StockProducts() ([]domain.Product, error) {
	return s.Prods.ListByTypes(domain.FulfillmentCode, domain.FulfillmentAccount, domain.FulfillmentPhysical, domain.FulfillmentCustom)
}

func (s *StockService) AddCode(productID, code string) (domain.StockUnit, error) {
	units, err := s.add(productID, []domain.StockPayload{{Code: strings.TrimSpace(code)}})
	if err != nil {
		return domain.StockUnit{}, err
	}
	return units[0], nil
}

func (s *StockService) AddAccount(productID, username, password, profile string) (domain.StockUnit, error) {
	units, err := s.add(productID, []domain.StockPayload{{
		Username:    strings.TrimSpace(username),
		Password:    strings.TrimSpace(password),
		ProfileName: strings.TrimSpace(profile),
	}})
	if err != nil {
		return domain.StockUnit{}, err
	}
	return units[0], nil
}

// AddBulkCodes adds one code unit per non-blank line of text.
func (s *StockService) AddBulkCodes(productID, text string) ([]domain.StockUnit, error) {
	var payloads []domain.StockPayload
	for _, line := range strings.Split(text, "\n") {
		if code := strings.TrimSpace(line); code != "" {
			payloads = append(payloads, domain.StockPayload{Code: code})
		}
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: no codes given", ErrInvalidInput)
	}
	return s.add(productID, payloads)
}

func (s *StockService) add(productID string, payloads []domain.StockPayload) ([]domain.StockUnit, error) {
	p, err := s.Prods.Get(productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}
	if !p.Type.RequiresStock() {
		return nil, fmt.Errorf("%w: product type %s does not take stock", ErrInvalidInput, p.Type)
	}
	units := make([]domain.StockUnit, 0, len(payloads))
	for _, pl := range payloads {
		if !pl.Matches(p.Type) {
			return nil, fmt.Errorf("%w: payload does not match product type %s", ErrInvalidInput, p.Type)
		}
		units = append(units, domain.StockUnit{
			ID:          uuid.NewString(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Data:        pl,
			Available:   true,
		})
	}
	if err := s.Stock.Insert(units); err != nil {
		return nil, err
	}
	return units, nil
}

// Delete removes a unit that has not been handed out.
func (s *StockService) Delete(id string) error {
	if err := s.Stock.DeleteAvailable(id); err != nil {
		return fmt.Errorf("delete stock %s: %w", id, err)
	}
	return nil
}
