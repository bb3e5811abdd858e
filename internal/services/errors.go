package services

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
)

var (
	ErrInvalidTransition      = domain.ErrInvalidTransition
	ErrStockUnavailable       = repos.ErrStockUnavailable
	ErrNoStockAvailable       = errors.New("no stock available for product")
	ErrStockSelectionRequired = errors.New("a stock unit must be selected")
	ErrOrderConflict          = errors.New("order was modified by someone else")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderHoldsStock        = errors.New("order holds an allocated stock unit")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrProductInUse           = errors.New("product is referenced by orders or stock")
)

var strict = bluemonday.StrictPolicy()

// plainText strips markup from admin- or customer-entered text and returns
// it unescaped; templates escape on output.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
