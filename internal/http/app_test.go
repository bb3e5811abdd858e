package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
)

func TestHealthz(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.get(t, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || !out["ok"] {
		t.Fatalf("unexpected body: %v %v", out, err)
	}
}

func TestUnknownRouteRendersFriendly404(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.get(t, "/no/such/page", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	b := body(t, resp)
	if !strings.Contains(b, "الصفحة غير موجودة") {
		t.Fatalf("friendly message missing: %s", b)
	}
	if !strings.Contains(b, `dir="rtl"`) {
		t.Fatal("expected the RTL layout")
	}
}

func TestSecurityHeaders(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.get(t, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") == "" {
		t.Fatal("helmet headers missing")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("request id missing")
	}
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	ta := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	e, ok := ta.logs.find("csrf.fail")
	if !ok {
		t.Fatal("csrf.fail not logged")
	}
	if e.Kind != "security" {
		t.Fatalf("expected security kind, got %q", e.Kind)
	}
}

func TestAvailabilityRateLimit(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.get(t, "/api/v1/availability", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without productId, got %d", resp.StatusCode)
	}

	resp = ta.get(t, "/api/v1/availability?productId=pubg-660", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var avail struct {
		Status string `json:"status"`
		Qty    int    `json:"qty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&avail); err != nil {
		t.Fatal(err)
	}
	if avail.Status != "OUT_OF_STOCK" || avail.Qty != 0 {
		t.Fatalf("unexpected availability: %+v", avail)
	}

	// 2 used so far; the limiter allows 15 per window
	for i := 2; i < 15; i++ {
		resp := ta.get(t, "/api/v1/availability?productId=itunes-50", "")
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("hit rate limit too early at %d", i)
		}
	}
	resp = ta.get(t, "/api/v1/availability?productId=itunes-50", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", resp.StatusCode)
	}
	if _, ok := ta.logs.find("rate.availability.hit"); !ok {
		t.Fatal("rate.availability.hit not logged")
	}
}

func TestBodySizeLimit(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.csrfToken(t)

	oversize := bytes.Repeat([]byte("A"), (1<<20)+10)
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(oversize))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		if strings.Contains(err.Error(), "body size exceeds") || strings.Contains(err.Error(), "too large") {
			return
		}
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversize, got %d", resp.StatusCode)
	}
}

func TestStorefrontOrderFlow(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.csrfToken(t)

	home := body(t, ta.get(t, "/", ""))
	for _, want := range []string{"Netflix 1-Year", "اشتراكات البث", "نفد المخزون", "https://wa.me/966500000000"} {
		if !strings.Contains(home, want) {
			t.Fatalf("home page missing %q", want)
		}
	}

	if resp := ta.get(t, "/product/netflix-1y", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("product page: %d", resp.StatusCode)
	}
	if resp := ta.get(t, "/product/nope", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing product: %d", resp.StatusCode)
	}

	resp := ta.post(t, "/requests", "", tok, url.Values{
		"product_id": {"netflix-1y"},
		"name":       {"ريم"},
		"email":      {"reem@example.com"},
	})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect to checkout, got %d: %s", resp.StatusCode, body(t, resp))
	}
	pay := resp.Header.Get("Location")
	if !strings.HasPrefix(pay, "/requests/") || !strings.HasSuffix(pay, "/pay") {
		t.Fatalf("unexpected redirect %q", pay)
	}
	if _, ok := ta.logs.find("request.submit"); !ok {
		t.Fatal("request.submit not logged")
	}

	checkout := body(t, ta.get(t, pay, ""))
	if !strings.Contains(checkout, "bank_transfer") || !strings.Contains(checkout, "120.00") {
		t.Fatalf("checkout page incomplete: %s", checkout)
	}

	resp = ta.post(t, pay, "", tok, url.Values{"payment_method": {"bank_transfer"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected order page, got %d", resp.StatusCode)
	}
	placed := body(t, resp)
	if !strings.Contains(placed, bankIBAN(ta)) {
		t.Fatal("bank details missing from order page")
	}
	if !strings.Contains(placed, string(domain.StatusPendingBankConfirmation)) {
		t.Fatal("order status missing")
	}
	e, ok := ta.logs.find("order.place")
	if !ok || e.Kind != "audit" {
		t.Fatalf("order.place audit missing: %+v", e)
	}

	// a second payment attempt goes to tracking instead of checkout
	resp = ta.get(t, pay, "")
	if resp.StatusCode != http.StatusFound || !strings.HasPrefix(resp.Header.Get("Location"), "/track?q=") {
		t.Fatalf("expected redirect to tracking, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	track := body(t, ta.get(t, "/track?q=reem@example.com", ""))
	if !strings.Contains(track, "Netflix 1-Year") {
		t.Fatal("tracking by email found nothing")
	}
	if resp := ta.get(t, "/track?q=%3Cscript%3E", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad query, got %d", resp.StatusCode)
	}
}

func TestFreeInquiryRendersConfirmation(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.csrfToken(t)

	resp := ta.post(t, "/requests", "", tok, url.Values{
		"icloud":        {"1"},
		"name":          {"أحمد"},
		"email":         {"ahmad@example.com"},
		"serial_number": {"F2LXK0ABCD12"},
		"imei":          {"356938035643809"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if b := body(t, resp); !strings.Contains(b, "تم استلام طلبك") {
		t.Fatalf("confirmation missing: %s", b)
	}

	resp = ta.post(t, "/requests", "", tok, url.Values{"icloud": {"1"}, "name": {"x"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete form, got %d", resp.StatusCode)
	}
	if _, ok := ta.logs.find("request.submit.invalid"); !ok {
		t.Fatal("invalid submission not logged")
	}
}

func TestTrackBadQueryKeepsSignedInLayout(t *testing.T) {
	ta := newTestApp(t)
	_, sid := ta.addUser(t, "user@example.com", "Passw0rd!", domain.RoleUser)

	resp := ta.get(t, "/track?q=%3Cscript%3E", sid)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	b := body(t, resp)
	if !strings.Contains(b, "أدخل رقم طلب أو بريداً إلكترونياً صحيحاً") {
		t.Fatal("validation message missing")
	}
	if !strings.Contains(b, `href="/dashboard"`) || strings.Contains(b, `href="/login"`) {
		t.Fatal("expected the signed-in navigation on the error page")
	}
	if e, ok := ta.logs.find("validation.fail"); !ok || e.Kind != "security" {
		t.Fatalf("validation.fail not logged: %+v", e)
	}
}

func bankIBAN(ta *testApp) string {
	return ta.deps.StoreHandler.Cfg.Store.BankIBAN
}
