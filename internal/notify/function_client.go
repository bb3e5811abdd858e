package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultTimeout = 10 * time.Second

// FunctionClient posts JSON bodies to {base}/functions/v1/{function}.
type FunctionClient struct {
	BaseURL string
	APIKey  string
}

func NewFunctionClient(baseURL, apiKey string) *FunctionClient {
	return &FunctionClient{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
}

func (c *FunctionClient) Send(ctx context.Context, function string, body any) error {
	if c.BaseURL == "" {
		return errors.New("notify: no base url configured")
	}
	timeout := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}

	a := fiber.Post(endpoint(c.BaseURL, function)).
		Timeout(timeout).
		JSON(body)
	if c.APIKey != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+c.APIKey)
	}
	code, resp, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("notify: %s returned %d: %s", function, code, truncate(string(resp), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
