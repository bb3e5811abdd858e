package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.CookieSecure,
		})
	}
	return sid
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": "", "Admin": false})
}

// AdminLoginForm is the same login with the back-office as destination.
func (h *AuthHandler) AdminLoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": "", "Admin": true})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	email := c.FormValue("email")
	pass := c.FormValue("password")
	admin := c.FormValue("admin") == "1"
	fail := func(status int, msg string) error {
		return c.Status(status).Render("login", fiber.Map{"Err": msg, "Admin": admin, "CSRFToken": c.Cookies("csrf_")})
	}

	if _, ok := validate.Email(email); !ok {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_format"})
		return fail(fiber.StatusUnauthorized, msgBadLogin)
	}
	if pass == "" || len(pass) > 64 {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return fail(fiber.StatusUnauthorized, msgBadLogin)
	}

	u, err := h.Auth.Login(sid, email, pass)
	if err != nil {
		if errors.Is(err, services.ErrNotConfirmed) {
			applog.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "not_confirmed"})
			return fail(fiber.StatusForbidden, msgNotConfirmed)
		}
		applog.Security(c, "auth.login.fail", map[string]any{"email": email})
		return fail(fiber.StatusUnauthorized, msgBadLogin)
	}
	if admin && !u.IsAdmin() {
		_ = h.Auth.Logout(sid)
		applog.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "not_admin"})
		return fail(fiber.StatusForbidden, msgAccessDenied)
	}

	applog.Audit(c, "auth.login.success", map[string]any{"email": email, "role": u.Role})
	if u.IsAdmin() && admin {
		return c.Redirect("/admin")
	}
	return c.Redirect("/dashboard")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	_ = h.Auth.Logout(sid)
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	applog.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.Redirect("/")
}

func (h *AuthHandler) SignupForm(c *fiber.Ctx) error {
	return render(c, "signup", fiber.Map{"Err": ""})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	in := services.SignupInput{
		Email:    c.FormValue("email"),
		Name:     c.FormValue("name"),
		Phone:    c.FormValue("phone"),
		Password: c.FormValue("password"),
	}
	u, err := h.Auth.Signup(c.UserContext(), in)
	if err != nil {
		status, msg := errorStatus(err)
		if errors.Is(err, services.ErrInvalidInput) {
			msg = "يرجى إدخال بريد إلكتروني صحيح واسم، وكلمة مرور من ٨ أحرف على الأقل تحتوي على حرف كبير وصغير ورقم ورمز."
		}
		applog.Security(c, "auth.signup.fail", map[string]any{"email": in.Email, "error": err.Error()})
		return c.Status(status).Render("signup", fiber.Map{
			"Err": msg, "Email": in.Email, "Name": in.Name, "Phone": in.Phone, "CSRFToken": c.Cookies("csrf_"),
		})
	}
	applog.Audit(c, "auth.signup", map[string]any{"user_id": u.ID, "email": u.Email})
	return redirectWithFlash(c, "/login", msgSignupDone)
}

// GET /confirm?token=
func (h *AuthHandler) Confirm(c *fiber.Ctx) error {
	u, err := h.Auth.Confirm(c.Query("token"))
	if err != nil {
		applog.Security(c, "auth.confirm.fail", nil)
		return renderStatus(c, fiber.StatusNotFound, "رابط التأكيد غير صالح أو مستخدم مسبقاً.")
	}
	applog.Audit(c, "auth.confirm", map[string]any{"user_id": u.ID})
	return redirectWithFlash(c, "/login", msgConfirmed)
}
