package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

func TestEmail(t *testing.T) {
	got, ok := validate.Email("  a.b+c@example.sa ")
	assert.True(t, ok)
	assert.Equal(t, "a.b+c@example.sa", got)

	for _, bad := range []string{"", "plain", "a@b", "a@@example.com", strings.Repeat("a", 120) + "@example.com"} {
		_, ok := validate.Email(bad)
		assert.False(t, ok, bad)
	}
}

func TestQ(t *testing.T) {
	got, ok := validate.Q(" نتفليكس ")
	assert.True(t, ok)
	assert.Equal(t, "نتفليكس", got)

	_, ok = validate.Q("<script>")
	assert.False(t, ok)
	_, ok = validate.Q("   ")
	assert.False(t, ok)

	got, ok = validate.Q(strings.Repeat("a", 100))
	assert.True(t, ok)
	assert.Len(t, got, 80)
}

func TestIdentifiers(t *testing.T) {
	_, ok := validate.ID("netflix-1y")
	assert.True(t, ok)
	_, ok = validate.ID("3f2a9c1b-77aa-4d8e-9b1c-0e5d1f2a3b4c")
	assert.True(t, ok)
	_, ok = validate.ID("../etc/passwd")
	assert.False(t, ok)

	_, ok = validate.IMEI("356938035643809")
	assert.True(t, ok)
	_, ok = validate.IMEI("35693803564380X")
	assert.False(t, ok)

	serial, ok := validate.Serial(" f2lxk0abcd12 ")
	assert.True(t, ok)
	assert.Equal(t, "F2LXK0ABCD12", serial)

	_, ok = validate.UDID("00008030-001A2B3C4D5E6F70")
	assert.True(t, ok)
	_, ok = validate.UDID("short")
	assert.False(t, ok)

	_, ok = validate.Phone("+966 500 000 000")
	assert.True(t, ok)
	_, ok = validate.Phone("call me")
	assert.False(t, ok)
}

func TestPrice(t *testing.T) {
	for in, want := range map[string]string{"0": "0.00", "120": "120.00", " 35.5 ": "35.50", "9.99": "9.99"} {
		d, ok := validate.Price(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, d.StringFixed(2), in)
	}
	for _, bad := range []string{"", "-1", "1.234", "abc"} {
		_, ok := validate.Price(bad)
		assert.False(t, ok, bad)
	}
}

func TestImageURL(t *testing.T) {
	got, ok := validate.ImageURL("")
	assert.True(t, ok)
	assert.Empty(t, got)

	_, ok = validate.ImageURL("https://cdn.example.com/a.png")
	assert.True(t, ok)
	_, ok = validate.ImageURL("javascript:alert(1)")
	assert.False(t, ok)
	_, ok = validate.ImageURL("/relative.png")
	assert.False(t, ok)
}

func TestPasswordAndText(t *testing.T) {
	assert.True(t, validate.Password("Str0ng!pass"))
	assert.False(t, validate.Password("Sh0rt!x"))
	assert.False(t, validate.Password("alllowercase1!"))
	assert.False(t, validate.Password("NoDigits!!"))

	_, ok := validate.Text(strings.Repeat("ب", 10), 10)
	assert.True(t, ok)
	_, ok = validate.Text(strings.Repeat("ب", 11), 10)
	assert.False(t, ok)
}
