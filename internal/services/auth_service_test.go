package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/services"
)

func TestSignupConfirmLogin(t *testing.T) {
	f := newFixture(t)
	auth := &services.AuthService{Users: repos.NewUserRepo(f.db), Notify: f.rec, PublicURL: "https://shop.example.com/"}
	ctx := context.Background()

	u, err := auth.Signup(ctx, services.SignupInput{
		Email:    "hind@example.com",
		Name:     "هند",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	assert.False(t, u.Confirmed)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.NotContains(t, u.Hash, "Str0ng!pass")

	mails := f.rec.byFunction(notify.FnConfirmationEmail)
	require.Len(t, mails, 1)
	conf := mails[0].(notify.Confirmation)
	assert.Equal(t, "hind@example.com", conf.Email)
	assert.Equal(t, "https://shop.example.com/confirm?token="+u.ConfirmToken, conf.Link)

	_, err = auth.Login("sid-a", "hind@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, services.ErrNotConfirmed)

	token := strings.TrimPrefix(conf.Link, "https://shop.example.com/confirm?token=")
	confirmed, err := auth.Confirm(token)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)
	_, err = auth.Confirm(token)
	assert.ErrorIs(t, err, services.ErrNotFound, "tokens are single use")

	_, err = auth.Login("sid-a", "hind@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrBadCreds)
	_, err = auth.Login("sid-a", "nobody@example.com", "Str0ng!pass")
	assert.ErrorIs(t, err, services.ErrBadCreds)

	in, err := auth.Login("sid-a", "HIND@example.com", "Str0ng!pass")
	require.NoError(t, err)
	cur, err := auth.CurrentUser("sid-a")
	require.NoError(t, err)
	assert.Equal(t, in.ID, cur.ID)

	require.NoError(t, auth.Logout("sid-a"))
	_, err = auth.CurrentUser("sid-a")
	assert.Error(t, err)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	auth := &services.AuthService{Users: repos.NewUserRepo(f.db), Notify: f.rec}
	ctx := context.Background()

	cases := []services.SignupInput{
		{Email: "bad", Name: "x", Password: "Str0ng!pass"},
		{Email: "a@example.com", Name: "", Password: "Str0ng!pass"},
		{Email: "a@example.com", Name: "x", Password: "weakpass"},
		{Email: "a@example.com", Name: "x", Phone: "abc", Password: "Str0ng!pass"},
	}
	for _, in := range cases {
		_, err := auth.Signup(ctx, in)
		assert.ErrorIs(t, err, services.ErrInvalidInput, "%+v", in)
	}

	_, err := auth.Signup(ctx, services.SignupInput{Email: "a@example.com", Name: "x", Password: "Str0ng!pass"})
	require.NoError(t, err)
	_, err = auth.Signup(ctx, services.SignupInput{Email: "A@example.com", Name: "y", Password: "Str0ng!pass"})
	assert.ErrorIs(t, err, services.ErrEmailTaken)

	_, err = auth.Confirm("  ")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}
