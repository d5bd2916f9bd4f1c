package search

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

const defaultHTTPTimeout = 30 * time.Second

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// statusError tags a non-2xx reply as an unavailable provider.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return schema.NewError(schema.KindSearchUnavailable, op,
		fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
}
