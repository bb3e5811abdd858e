package links_test

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrMneff/digital-unlock-oasis/internal/links"
)

func TestWhatsApp(t *testing.T) {
	assert.Equal(t, "https://wa.me/966538182861", links.WhatsApp("+966 53-818-2861", ""))

	u, err := url.Parse(links.WhatsApp("966500000000", "مرحباً، رقم طلبي: 42"))
	require.NoError(t, err)
	assert.Equal(t, "/966500000000", u.Path)
	assert.Equal(t, "مرحباً، رقم طلبي: 42", u.Query().Get("text"))
}

func TestPayPal(t *testing.T) {
	raw := links.PayPal("pay@example.com", "Netflix 1-Year", "order-1", decimal.NewFromInt(120), "SAR")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.paypal.com", u.Host)

	q := u.Query()
	assert.Equal(t, "_donations", q.Get("cmd"))
	assert.Equal(t, "pay@example.com", q.Get("business"))
	assert.Equal(t, "Netflix 1-Year (Order: order-1)", q.Get("item_name"))
	assert.Equal(t, "120.00", q.Get("amount"))
	assert.Equal(t, "SAR", q.Get("currency_code"))
	assert.Equal(t, "order-1", q.Get("custom"))
}
