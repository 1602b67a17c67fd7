package acs

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

const pageSize = "100"

// ListOwned returns every number held by the resource, following nextLink
// until the listing is exhausted.
func (c *Client) ListOwned(ctx context.Context) ([]numbers.OwnedNumber, error) {
	var out []numbers.OwnedNumber
	ref := "/phoneNumbers"
	query := url.Values{"top": {pageSize}}
	for ref != "" {
		var page phoneNumberPage
		if err := c.getJSON(ctx, "list", ref, query, &page); err != nil {
			return nil, err
		}
		for _, p := range page.PhoneNumbers {
			out = append(out, p.owned())
		}
		ref, query = page.NextLink, nil
	}
	return out, nil
}

// Release gives up e164. The provider completes the release
// asynchronously; acceptance counts as success.
func (c *Client) Release(ctx context.Context, e164 string) error {
	resp, err := c.request(ctx, "release", http.MethodDelete, "/phoneNumbers/"+escapeNumber(e164), nil, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// escapeNumber percent-encodes the leading plus, which PathEscape keeps.
func escapeNumber(e164 string) string {
	return strings.ReplaceAll(url.PathEscape(e164), "+", "%2B")
}
