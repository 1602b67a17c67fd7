package acs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/rs/zerolog/log"
)

// Search returns a lazy candidate sequence. Every pull reserves exactly one
// number with its own search, so purchasing a candidate never buys more
// than that number. The sequence ends after limit pulls, when the provider
// has no more inventory, or when a number repeats.
func (c *Client) Search(ctx context.Context, spec numbers.Spec, limit int) iter.Seq2[numbers.Candidate, error] {
	return func(yield func(numbers.Candidate, error) bool) {
		seen := make(map[string]bool)
		for pull := 0; pull < limit; pull++ {
			result, err := c.searchOnce(ctx, spec)
			if err != nil {
				if isNoInventory(err) {
					log.Debug().Err(err).Str("spec", spec.String()).Msg("Provider reports no inventory")
					return
				}
				yield(numbers.Candidate{}, err)
				return
			}
			if len(result.PhoneNumbers) == 0 {
				return
			}
			e164 := result.PhoneNumbers[0]
			if seen[e164] {
				return
			}
			seen[e164] = true
			if !yield(result.candidate(spec), nil) {
				return
			}
		}
	}
}

func isNoInventory(err error) bool {
	var pe *internalerrors.ProviderError
	return errors.As(err, &pe) && internalerrors.IsNoInventoryCode(pe.Code)
}

func (c *Client) searchOnce(ctx context.Context, spec numbers.Spec) (*searchResult, error) {
	body := searchRequest{
		PhoneNumberType: wireNumberType(spec.Type),
		AssignmentType:  "application",
		Capabilities:    wireCapabilities(spec),
		AreaCode:        spec.AreaCode,
		Quantity:        1,
	}
	ref := fmt.Sprintf("/availablePhoneNumbers/countries/%s/:search", url.PathEscape(string(spec.Country)))
	resp, err := c.request(ctx, "search", http.MethodPost, ref, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	searchID := resp.Header.Get("search-id")
	if resp.StatusCode == http.StatusOK {
		var result searchResult
		if err := decodeBody("search", resp, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}

	opID := operationID(resp)
	if opID == "" {
		return nil, internalerrors.NewAPIError("search", resp.StatusCode, "", "search accepted without an operation id")
	}
	o, err := c.waitOperation(ctx, "search", opID)
	if err != nil {
		return nil, err
	}
	if o.Status == statusFailed {
		return nil, operationError("search", o)
	}

	ref = o.ResourceLocation
	if ref == "" {
		if searchID == "" {
			return nil, internalerrors.NewAPIError("search", 0, "", fmt.Sprintf("operation %s succeeded without a result location", o.ID))
		}
		ref = "/availablePhoneNumbers/searchResults/" + url.PathEscape(searchID)
	}
	var result searchResult
	if err := c.getJSON(ctx, "search", ref, nil, &result); err != nil {
		return nil, err
	}
	if result.SearchID == "" {
		result.SearchID = searchID
	}
	return &result, nil
}
