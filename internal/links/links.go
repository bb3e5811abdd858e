// Package links builds the outbound deep links shown to customers.
package links

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	whatsAppBase = "https://wa.me/"
	payPalBase   = "https://www.paypal.com/cgi-bin/webscr"
)

// WhatsApp returns a chat link to phone with text pre-filled.
// Non-digits are stripped from phone (wa.me wants the bare international number).
func WhatsApp(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	u := whatsAppBase + digits
	if text != "" {
		u += "?text=" + url.QueryEscape(text)
	}
	return u
}

// PayPal returns the pre-filled payment page for an order. It only builds a
// URL; payment is confirmed manually by an admin.
func PayPal(business, itemName, orderID string, amount decimal.Decimal, currency string) string {
	q := url.Values{}
	q.Set("cmd", "_donations")
	q.Set("business", business)
	q.Set("item_name", fmt.Sprintf("%s (Order: %s)", itemName, orderID))
	q.Set("amount", amount.StringFixed(2))
	q.Set("currency_code", currency)
	q.Set("custom", orderID)
	return payPalBase + "?" + q.Encode()
}
