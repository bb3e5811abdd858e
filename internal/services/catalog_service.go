package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type CatalogService struct {
	Prods  *repos.ProductRepo
	Stock  *repos.StockRepo
	Orders *repos.OrderRepo
}

func NewCatalogService(prods *repos.ProductRepo, stock *repos.StockRepo, orders *repos.OrderRepo) *CatalogService {
	return &CatalogService{Prods: prods, Stock: stock, Orders: orders}
}

// Section is one storefront category block.
type Section struct {
	Category domain.Category
	Products []domain.Product
}

// Storefront groups every product by category in display order; empty
// categories are omitted.
func (s *CatalogService) Storefront() ([]Section, error) {
	all, err := s.Prods.List()
	if err != nil {
		return nil, err
	}
	byCat := map[domain.Category][]domain.Product{}
	for _, p := range all {
		byCat[p.Category] = append(byCat[p.Category], p)
	}
	var out []Section
	for _, c := range domain.Categories {
		if len(byCat[c]) > 0 {
			out = append(out, Section{Category: c, Products: byCat[c]})
		}
	}
	return out, nil
}

func (s *CatalogService) List() ([]domain.Product, error) { return s.Prods.List() }

func (s *CatalogService) GetProduct(id string) (domain.Product, error) {
	p, err := s.Prods.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, err
}

// ProductInput is the admin product form.
type ProductInput struct {
	Name        string
	Description string
	Price       string
	ImageURL    string
	Category    string
	Type        string
}

func (in ProductInput) toProduct() (domain.Product, error) {
	p := domain.Product{
		Name:        plainText(in.Name),
		Description: plainText(in.Description),
		ImageURL:    in.ImageURL,
		Category:    domain.Category(in.Category),
		Type:        domain.FulfillmentType(in.Type),
	}
	if p.Name == "" {
		return p, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	price, ok := validate.Price(in.Price)
	if !ok {
		return p, fmt.Errorf("%w: price must be a non-negative amount", ErrInvalidInput)
	}
	p.Price = price
	if !p.Category.Valid() {
		return p, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if !p.Type.Valid() {
		return p, fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, in.Type)
	}
	img, ok := validate.ImageURL(in.ImageURL)
	if !ok {
		return p, fmt.Errorf("%w: image url must be http(s)", ErrInvalidInput)
	}
	p.ImageURL = img
	return p, nil
}

func (s *CatalogService) CreateProduct(in ProductInput) (domain.Product, error) {
	p, err := in.toProduct()
	if err != nil {
		return p, err
	}
	p.ID = uuid.NewString()
	if err := s.Prods.Create(p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(id string, in ProductInput) (domain.Product, error) {
	p, err := in.toProduct()
	if err != nil {
		return p, err
	}
	p.ID = id
	if err := s.Prods.Update(p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return p, err
	}
	return p, nil
}

// DeleteProduct refuses products that orders or stock units still reference.
func (s *CatalogService) DeleteProduct(id string) error {
	orders, err := s.Orders.CountByProduct(id)
	if err != nil {
		return err
	}
	units, err := s.Stock.List(id)
	if err != nil {
		return err
	}
	if orders > 0 || len(units) > 0 {
		return fmt.Errorf("%w: %d orders, %d stock units", ErrProductInUse, orders, len(units))
	}
	if err := s.Prods.Delete(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}
