package acs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeACS serves a minimal phone-numbers API. Searches hand out numbers
// from pool in order; operations succeed after pendingPolls checks.
type fakeACS struct {
	mu sync.Mutex

	pool         []string
	pendingPolls int
	// searchFailure makes search operations fail with this code.
	searchFailure string
	// purchaseStatus and purchaseError override the purchase response.
	purchaseStatus int
	purchaseError  string
	// purchaseFailure makes purchase operations fail with this code.
	purchaseFailure string
	owned           []purchasedPhoneNumber
	releaseStatus   int

	searches      []searchRequest
	purchases     []string
	releasedPaths []string
	requestIDs    []string
	polls         map[string]int
	opKinds       map[string]string
	nextSearch    int
}

func newFakeACS(t *testing.T) (*fakeACS, *httptest.Server) {
	f := &fakeACS{polls: map[string]int{}, opKinds: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeACS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		writeError(w, http.StatusUnauthorized, "InvalidAuthenticationToken", "bad token "+got)
		return
	}
	if r.URL.Query().Get("api-version") != DefaultAPIVersion {
		writeError(w, http.StatusBadRequest, "InvalidApiVersion", r.URL.RawQuery)
		return
	}
	f.requestIDs = append(f.requestIDs, r.Header.Get("x-ms-client-request-id"))

	p := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(p, "/:search"):
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		f.searches = append(f.searches, req)
		f.nextSearch++
		id := fmt.Sprintf("search_%d", f.nextSearch)
		f.opKinds[id] = "search"
		w.Header().Set("operation-location", "http://"+r.Host+"/phoneNumbers/operations/"+id+"?api-version="+DefaultAPIVersion)
		w.Header().Set("search-id", fmt.Sprintf("sid-%d", f.nextSearch))
		w.WriteHeader(http.StatusAccepted)

	case r.Method == http.MethodGet && strings.HasPrefix(p, "/phoneNumbers/operations/"):
		id := strings.TrimPrefix(p, "/phoneNumbers/operations/")
		kind, ok := f.opKinds[id]
		if !ok {
			writeError(w, http.StatusNotFound, "NotFound", "no operation "+id)
			return
		}
		f.polls[id]++
		o := operation{ID: id, OperationType: kind, Status: statusRunning}
		if f.polls[id] > f.pendingPolls {
			o.Status = statusSucceeded
			switch {
			case kind == "search" && f.searchFailure != "":
				o.Status = statusFailed
				o.Error = &apiError{Code: f.searchFailure, Message: "search failed"}
			case kind == "purchase" && f.purchaseFailure != "":
				o.Status = statusFailed
				o.Error = &apiError{Code: f.purchaseFailure, Message: "purchase failed"}
			case kind == "search":
				o.ResourceLocation = "/availablePhoneNumbers/searchResults/sid-" + strings.TrimPrefix(id, "search_")
			}
		}
		writeJSON(w, http.StatusOK, o)

	case r.Method == http.MethodGet && strings.HasPrefix(p, "/availablePhoneNumbers/searchResults/"):
		sid := strings.TrimPrefix(p, "/availablePhoneNumbers/searchResults/")
		var n int
		_, _ = fmt.Sscanf(sid, "sid-%d", &n)
		res := searchResult{SearchID: sid, PhoneNumberType: "tollFree", AssignmentType: "application",
			Capabilities:    capabilities{Calling: "inbound+outbound", SMS: "none"},
			Cost:            &cost{Amount: "2.5", CurrencyCode: "gbp", BillingFrequency: "monthly"},
			SearchExpiresBy: time.Date(2026, 1, 1, 0, 16, 0, 0, time.UTC)}
		if n-1 < len(f.pool) {
			res.PhoneNumbers = []string{f.pool[n-1]}
		}
		writeJSON(w, http.StatusOK, res)

	case r.Method == http.MethodPost && p == "/availablePhoneNumbers/:purchase":
		var req purchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		f.purchases = append(f.purchases, req.SearchID)
		if f.purchaseError != "" {
			writeError(w, f.purchaseStatus, f.purchaseError, "cannot purchase")
			return
		}
		id := "purchase_" + req.SearchID
		f.opKinds[id] = "purchase"
		w.Header().Set("operation-id", id)
		w.WriteHeader(http.StatusAccepted)

	case r.Method == http.MethodGet && p == "/phoneNumbers":
		skip := 0
		_, _ = fmt.Sscanf(r.URL.Query().Get("skip"), "%d", &skip)
		page := phoneNumberPage{}
		if skip < len(f.owned) {
			page.PhoneNumbers = f.owned[skip : skip+1]
			if skip+1 < len(f.owned) {
				page.NextLink = fmt.Sprintf("/phoneNumbers?skip=%d&top=1&api-version=%s", skip+1, DefaultAPIVersion)
			}
		}
		writeJSON(w, http.StatusOK, page)

	case r.Method == http.MethodDelete && strings.HasPrefix(p, "/phoneNumbers/"):
		f.releasedPaths = append(f.releasedPaths, r.URL.EscapedPath())
		if f.releaseStatus != 0 {
			writeError(w, f.releaseStatus, "PhoneNumberNotFound", "not owned")
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		writeError(w, http.StatusNotFound, "NotFound", r.Method+" "+p)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func newTestClient(t *testing.T, srv *httptest.Server, observer RequestObserver) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Endpoint:     srv.URL,
		TokenSource:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		HTTPClient:   srv.Client(),
		PollInterval: time.Millisecond,
		Observer:     observer,
	})
	require.NoError(t, err)
	return c
}

var gbTollFree = numbers.Spec{Country: numbers.CountryGB, Type: numbers.TypeTollFree}

func TestNewClientValidation(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})

	_, err := NewClient(ClientConfig{TokenSource: ts})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidInput)

	_, err = NewClient(ClientConfig{Endpoint: "contoso.communication.azure.com"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidInput)

	c, err := NewClient(ClientConfig{Endpoint: "contoso.communication.azure.com/", TokenSource: ts})
	require.NoError(t, err)
	assert.Equal(t, "https://contoso.communication.azure.com", c.Endpoint())
}

func TestSearchYieldsOneReservationPerPull(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pool = []string{"+448000000001", "+448000000002", "+448000000003"}
	f.pendingPolls = 1
	c := newTestClient(t, srv, nil)

	var got []numbers.Candidate
	for cand, err := range c.Search(context.Background(), gbTollFree, 2) {
		require.NoError(t, err)
		got = append(got, cand)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "+448000000001", got[0].E164)
	assert.Equal(t, "sid-1", got[0].SearchID)
	assert.Equal(t, "+448000000002", got[1].E164)
	assert.Equal(t, "sid-2", got[1].SearchID)
	assert.Equal(t, numbers.TypeTollFree, got[0].Type)
	assert.Equal(t, numbers.CountryGB, got[0].Country)
	assert.Equal(t, "2.5 GBP", got[0].MonthlyCost.String())
	assert.False(t, got[0].ExpiresAt.IsZero())

	require.Len(t, f.searches, 2)
	req := f.searches[0]
	assert.Equal(t, 1, req.Quantity)
	assert.Equal(t, "tollFree", req.PhoneNumberType)
	assert.Equal(t, "application", req.AssignmentType)
	assert.Equal(t, "inbound+outbound", req.Capabilities.Calling)
	assert.Equal(t, "none", req.Capabilities.SMS)
	assert.Empty(t, req.AreaCode)
}

func TestSearchIsLazy(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pool = []string{"+448000000001", "+448000000002"}
	c := newTestClient(t, srv, nil)

	for cand, err := range c.Search(context.Background(), gbTollFree, 5) {
		require.NoError(t, err)
		assert.Equal(t, "+448000000001", cand.E164)
		break
	}
	assert.Len(t, f.searches, 1)
}

func TestSearchShapesRequest(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pool = []string{"+12065550100"}
	c := newTestClient(t, srv, nil)

	spec := numbers.Spec{Country: numbers.CountryUS, Type: numbers.TypeGeographic, SMSEnabled: true, AreaCode: "206"}
	for _, err := range c.Search(context.Background(), spec, 1) {
		require.NoError(t, err)
	}
	require.Len(t, f.searches, 1)
	assert.Equal(t, "geographic", f.searches[0].PhoneNumberType)
	assert.Equal(t, "inbound+outbound", f.searches[0].Capabilities.SMS)
	assert.Equal(t, "206", f.searches[0].AreaCode)
}

func TestSearchEndsWhenInventoryRunsOut(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pool = []string{"+448000000001"}
	c := newTestClient(t, srv, nil)

	count := 0
	for _, err := range c.Search(context.Background(), gbTollFree, 5) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)
	assert.Len(t, f.searches, 2)
}

func TestSearchNoInventoryIsEmptyNotError(t *testing.T) {
	f, srv := newFakeACS(t)
	f.searchFailure = "NoInventoryAvailable"
	c := newTestClient(t, srv, nil)

	for _, err := range c.Search(context.Background(), gbTollFree, 3) {
		t.Fatalf("unexpected yield: %v", err)
	}
	assert.Len(t, f.searches, 1)
}

func TestSearchOperationFailureIsYielded(t *testing.T) {
	f, srv := newFakeACS(t)
	f.searchFailure = "BadRequest"
	c := newTestClient(t, srv, nil)

	var errs []error
	for _, err := range c.Search(context.Background(), gbTollFree, 3) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "BadRequest")
	assert.False(t, internalerrors.IsTransient(errs[0]))
}

func TestSearchRespectsContextDeadline(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pool = []string{"+448000000001"}
	f.pendingPolls = 1 << 30
	c := newTestClient(t, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var errs []error
	for _, err := range c.Search(ctx, gbTollFree, 1) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
}

func TestPurchaseAndPollOrder(t *testing.T) {
	f, srv := newFakeACS(t)
	f.pendingPolls = 1
	c := newTestClient(t, srv, nil)

	order, err := c.Purchase(context.Background(), numbers.Candidate{E164: "+448000000001", SearchID: "sid-9"})
	require.NoError(t, err)
	assert.Equal(t, "purchase_sid-9", order.ID)
	assert.Equal(t, numbers.OrderPending, order.Status)
	assert.Equal(t, []string{"+448000000001"}, order.PhoneNumbers)
	assert.Equal(t, []string{"sid-9"}, f.purchases)

	polled, err := c.PollOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, numbers.OrderPending, polled.Status)

	polled, err = c.PollOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, numbers.OrderSucceeded, polled.Status)
	assert.Nil(t, polled.Failure)
}

func TestPollOrderCarriesFailure(t *testing.T) {
	f, srv := newFakeACS(t)
	f.purchaseFailure = "PhoneNumberNotAvailable"
	c := newTestClient(t, srv, nil)

	order, err := c.Purchase(context.Background(), numbers.Candidate{E164: "+448000000001", SearchID: "sid-1"})
	require.NoError(t, err)

	polled, err := c.PollOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, numbers.OrderFailed, polled.Status)
	require.Error(t, polled.Failure)
	assert.ErrorIs(t, polled.Failure, internalerrors.ErrCandidateUnavailable)
}

func TestPollUnknownOrderIsNotFound(t *testing.T) {
	_, srv := newFakeACS(t)
	c := newTestClient(t, srv, nil)

	_, err := c.PollOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, internalerrors.ErrNotFound)
}

func TestPurchaseRejectedAsUnavailable(t *testing.T) {
	f, srv := newFakeACS(t)
	f.purchaseStatus = http.StatusConflict
	f.purchaseError = "PhoneNumberNotAvailable"
	c := newTestClient(t, srv, nil)

	_, err := c.Purchase(context.Background(), numbers.Candidate{E164: "+448000000001", SearchID: "sid-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrCandidateUnavailable)
	assert.False(t, internalerrors.IsTransient(err))
}

func TestPurchaseServerErrorIsTransient(t *testing.T) {
	f, srv := newFakeACS(t)
	f.purchaseStatus = http.StatusServiceUnavailable
	f.purchaseError = "ServiceUnavailable"
	c := newTestClient(t, srv, nil)

	_, err := c.Purchase(context.Background(), numbers.Candidate{E164: "+448000000001", SearchID: "sid-1"})
	assert.True(t, internalerrors.IsTransient(err))
	assert.Len(t, f.purchases, 1, "the adapter never retries")
}

func TestPurchaseRequiresSearchID(t *testing.T) {
	_, srv := newFakeACS(t)
	c := newTestClient(t, srv, nil)

	_, err := c.Purchase(context.Background(), numbers.Candidate{E164: "+448000000001"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidInput)
}

func TestParseWireNumberType(t *testing.T) {
	tests := map[string]numbers.NumberType{
		"tollFree":   numbers.TypeTollFree,
		"TollFree":   numbers.TypeTollFree,
		"geographic": numbers.TypeGeographic,
		"local":      numbers.TypeGeographic,
		"Local":      numbers.TypeGeographic,
		"mobile":     numbers.NumberType("mobile"),
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseWireNumberType(raw), raw)
	}
}

func TestListOwnedFollowsNextLink(t *testing.T) {
	f, srv := newFakeACS(t)
	purchased := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.owned = []purchasedPhoneNumber{
		{ID: "448000000001", PhoneNumber: "+448000000001", CountryCode: "GB", PhoneNumberType: "tollFree",
			Capabilities: capabilities{Calling: "inbound+outbound", SMS: "none"}, PurchaseDate: purchased,
			Cost: &cost{Amount: "1.25", CurrencyCode: "GBP"}},
		{ID: "15551234567", PhoneNumber: "+15551234567", CountryCode: "us", PhoneNumberType: "geographic",
			Capabilities: capabilities{Calling: "outbound", SMS: "inbound+outbound"}},
	}
	c := newTestClient(t, srv, nil)

	owned, err := c.ListOwned(context.Background())
	require.NoError(t, err)
	require.Len(t, owned, 2)

	assert.Equal(t, "+448000000001", owned[0].E164)
	assert.Equal(t, numbers.CountryGB, owned[0].Country)
	assert.Equal(t, numbers.TypeTollFree, owned[0].Type)
	assert.True(t, owned[0].HasCapability(numbers.CapabilityInboundCall))
	assert.False(t, owned[0].HasCapability(numbers.CapabilityInboundSMS))
	assert.True(t, owned[0].PurchasedAt.Equal(purchased))
	assert.Equal(t, "1.25 GBP", owned[0].MonthlyCost.String())

	assert.Equal(t, numbers.CountryUS, owned[1].Country)
	assert.Equal(t, numbers.TypeGeographic, owned[1].Type)
	assert.False(t, owned[1].HasCapability(numbers.CapabilityInboundCall))
	assert.True(t, owned[1].HasCapability(numbers.CapabilityOutboundSMS))
	assert.True(t, owned[1].MonthlyCost.IsZero())
}

func TestListOwnedEmpty(t *testing.T) {
	_, srv := newFakeACS(t)
	c := newTestClient(t, srv, nil)

	owned, err := c.ListOwned(context.Background())
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestReleaseEscapesNumber(t *testing.T) {
	f, srv := newFakeACS(t)
	c := newTestClient(t, srv, nil)

	require.NoError(t, c.Release(context.Background(), "+15551234567"))
	assert.Equal(t, []string{"/phoneNumbers/%2B15551234567"}, f.releasedPaths)
}

func TestReleaseNotFound(t *testing.T) {
	f, srv := newFakeACS(t)
	f.releaseStatus = http.StatusNotFound
	c := newTestClient(t, srv, nil)

	err := c.Release(context.Background(), "+15551234567")
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrNotFound)
	assert.Contains(t, err.Error(), "PhoneNumberNotFound")
}

func TestRequestsCarryCorrelationIDs(t *testing.T) {
	f, srv := newFakeACS(t)
	c := newTestClient(t, srv, nil)

	_, err := c.ListOwned(context.Background())
	require.NoError(t, err)
	_, err = c.ListOwned(context.Background())
	require.NoError(t, err)

	require.Len(t, f.requestIDs, 2)
	for _, id := range f.requestIDs {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, f.requestIDs[0], f.requestIDs[1])
}

func TestObserverSeesEveryRequest(t *testing.T) {
	_, srv := newFakeACS(t)
	var mu sync.Mutex
	seen := map[string]int{}
	c := newTestClient(t, srv, func(op string, status int, elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		seen[fmt.Sprintf("%s:%d", op, status)]++
	})

	_, _ = c.ListOwned(context.Background())
	_ = c.Release(context.Background(), "+15551234567")

	assert.Equal(t, 1, seen["list:200"])
	assert.Equal(t, 1, seen["release:202"])
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_client",
	}
}

func TestTokenFailureIsPermanentUnauthorized(t *testing.T) {
	_, srv := newFakeACS(t)
	c, err := NewClient(ClientConfig{Endpoint: srv.URL, TokenSource: failingTokenSource{}, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.ListOwned(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerrors.ErrUnauthorized)
	assert.False(t, internalerrors.IsTransient(err))
}

func TestUnauthorizedResponse(t *testing.T) {
	_, srv := newFakeACS(t)
	c, err := NewClient(ClientConfig{
		Endpoint:    srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "wrong"}),
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)

	_, err = c.ListOwned(context.Background())
	assert.ErrorIs(t, err, internalerrors.ErrUnauthorized)
}
