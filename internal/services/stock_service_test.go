package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrMneff/digital-unlock-oasis/internal/services"
)

func TestAddStockChecksProductType(t *testing.T) {
	f := newFixture(t)

	_, err := f.stock.AddCode("netflix-1y", "CODE-1")
	assert.ErrorIs(t, err, services.ErrInvalidInput, "account product takes no codes")

	_, err = f.stock.AddAccount("itunes-50", "user", "pass", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput, "code product takes no accounts")

	_, err = f.stock.AddCode("imei-blacklist", "X")
	assert.ErrorIs(t, err, services.ErrInvalidInput, "service reports take no stock")

	_, err = f.stock.AddAccount("salla-store-setup", "user", "pass", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	custom, err := f.stock.AddCode("salla-store-setup", "STORE-ACCESS-01")
	require.NoError(t, err)
	assert.Equal(t, "STORE-ACCESS-01", custom.Data.Code)

	_, err = f.stock.AddAccount("netflix-1y", "user", "", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = f.stock.AddCode("no-such-product", "X")
	assert.ErrorIs(t, err, services.ErrNotFound)

	u, err := f.stock.AddAccount("canva-pro-1y", " team@example.com ", "Pw!1", "Main")
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", u.Data.Username)
	assert.Equal(t, "Main", u.Data.ProfileName)
	assert.True(t, u.Available)
}

func TestBulkCodesAndAvailability(t *testing.T) {
	f := newFixture(t)

	_, err := f.stock.AddBulkCodes("itunes-50", "\n  \n")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	units, err := f.stock.AddBulkCodes("itunes-50", "A-1\n\n B-2 \r\nC-3\n")
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "B-2", units[1].Data.Code)

	a, err := f.stock.CheckAvailability("itunes-50")
	require.NoError(t, err)
	assert.Equal(t, services.Availability{Status: "LOW_STOCK", Qty: 3}, a)

	_, err = f.stock.AddBulkCodes("itunes-50", "D-4\nE-5")
	require.NoError(t, err)
	a, err = f.stock.CheckAvailability("itunes-50")
	require.NoError(t, err)
	assert.Equal(t, "IN_STOCK", a.Status)

	a, err = f.stock.CheckAvailability("pubg-660")
	require.NoError(t, err)
	assert.Equal(t, services.Availability{Status: "OUT_OF_STOCK", Qty: 0}, a)

	avail, err := f.stock.AvailableStock("itunes-50")
	require.NoError(t, err)
	require.Len(t, avail, 5)
	assert.Equal(t, "A-1", avail[0].Data.Code, "oldest first")

	counts, err := f.stock.Counts()
	require.NoError(t, err)
	for _, c := range counts {
		if c.ProductID == "itunes-50" {
			assert.Equal(t, 5, c.Available)
			assert.Equal(t, 0, c.Sold)
		}
	}
}

func TestDeleteStockUnit(t *testing.T) {
	f := newFixture(t)
	u, err := f.stock.AddCode("pubg-660", "UC-1")
	require.NoError(t, err)

	require.NoError(t, f.stock.Delete(u.ID))
	assert.ErrorIs(t, f.stock.Delete(u.ID), services.ErrStockUnavailable)

	list, err := f.stock.List("pubg-660")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStockProductsAreStockBacked(t *testing.T) {
	f := newFixture(t)
	prods, err := f.stock.StockProducts()
	require.NoError(t, err)
	require.Len(t, prods, 6)
	for _, p := range prods {
		assert.True(t, p.Type.RequiresStock(), p.ID)
	}
}

func TestCatalogProducts(t *testing.T) {
	f := newFixture(t)

	sections, err := f.catalog.Storefront()
	require.NoError(t, err)
	require.NotEmpty(t, sections)
	total := 0
	for _, s := range sections {
		assert.NotEmpty(t, s.Products)
		total += len(s.Products)
	}
	assert.Equal(t, 7, total)

	_, err = f.catalog.CreateProduct(services.ProductInput{Name: "X", Price: "-1", Category: "other_service", Type: "custom_service"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = f.catalog.CreateProduct(services.ProductInput{Name: "X", Price: "1.999", Category: "other_service", Type: "custom_service"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = f.catalog.CreateProduct(services.ProductInput{Name: "X", Price: "1", Category: "games", Type: "custom_service"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = f.catalog.CreateProduct(services.ProductInput{Name: "X", Price: "1", Category: "other_service", Type: "custom_service", ImageURL: "javascript:alert(1)"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	p, err := f.catalog.CreateProduct(services.ProductInput{
		Name: "<i>Spotify</i> Premium", Price: "25.50", Category: "app_subscription", Type: "account_details",
	})
	require.NoError(t, err)
	assert.Equal(t, "Spotify Premium", p.Name)

	p, err = f.catalog.UpdateProduct(p.ID, services.ProductInput{
		Name: "Spotify Premium 1M", Price: "27", Category: "app_subscription", Type: "account_details",
	})
	require.NoError(t, err)
	got, err := f.catalog.GetProduct(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spotify Premium 1M", got.Name)
	assert.Equal(t, "27.00", got.Price.StringFixed(2))

	_, err = f.stock.AddAccount(p.ID, "s@example.com", "pw", "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.catalog.DeleteProduct(p.ID), services.ErrProductInUse)

	assert.NoError(t, f.catalog.DeleteProduct("salla-store-setup"))
	_, err = f.catalog.GetProduct("salla-store-setup")
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, f.catalog.DeleteProduct("salla-store-setup"), services.ErrNotFound)
}
