package acs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/rs/zerolog/log"
)

// Operation statuses reported by /phoneNumbers/operations.
const (
	statusNotStarted = "notStarted"
	statusRunning    = "running"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type capabilities struct {
	Calling string `json:"calling"`
	SMS     string `json:"sms"`
}

type cost struct {
	Amount           json.Number `json:"amount"`
	CurrencyCode     string      `json:"currencyCode"`
	BillingFrequency string      `json:"billingFrequency,omitempty"`
}

type searchRequest struct {
	PhoneNumberType string       `json:"phoneNumberType"`
	AssignmentType  string       `json:"assignmentType"`
	Capabilities    capabilities `json:"capabilities"`
	AreaCode        string       `json:"areaCode,omitempty"`
	Quantity        int          `json:"quantity"`
}

type searchResult struct {
	SearchID        string       `json:"searchId"`
	PhoneNumbers    []string     `json:"phoneNumbers"`
	PhoneNumberType string       `json:"phoneNumberType"`
	AssignmentType  string       `json:"assignmentType"`
	Capabilities    capabilities `json:"capabilities"`
	Cost            *cost        `json:"cost,omitempty"`
	SearchExpiresBy time.Time    `json:"searchExpiresBy"`
}

type purchaseRequest struct {
	SearchID string `json:"searchId"`
}

type operation struct {
	ID                 string    `json:"id"`
	OperationType      string    `json:"operationType"`
	Status             string    `json:"status"`
	ResourceLocation   string    `json:"resourceLocation,omitempty"`
	CreatedDateTime    time.Time `json:"createdDateTime"`
	LastActionDateTime time.Time `json:"lastActionDateTime"`
	Error              *apiError `json:"error,omitempty"`
}

type purchasedPhoneNumber struct {
	ID              string       `json:"id"`
	PhoneNumber     string       `json:"phoneNumber"`
	CountryCode     string       `json:"countryCode"`
	PhoneNumberType string       `json:"phoneNumberType"`
	Capabilities    capabilities `json:"capabilities"`
	AssignmentType  string       `json:"assignmentType"`
	PurchaseDate    time.Time    `json:"purchaseDate"`
	Cost            *cost        `json:"cost,omitempty"`
}

type phoneNumberPage struct {
	PhoneNumbers []purchasedPhoneNumber `json:"phoneNumbers"`
	NextLink     string                 `json:"nextLink,omitempty"`
}

func wireNumberType(t numbers.NumberType) string {
	if t == numbers.TypeTollFree {
		return "tollFree"
	}
	return "geographic"
}

func parseWireNumberType(raw string) numbers.NumberType {
	switch strings.ToLower(raw) {
	case "tollfree":
		return numbers.TypeTollFree
	case "geographic", "local":
		return numbers.TypeGeographic
	}
	return numbers.NumberType(strings.ToLower(raw))
}

func wireCapabilities(spec numbers.Spec) capabilities {
	c := capabilities{Calling: "inbound+outbound", SMS: "none"}
	if spec.SMSEnabled {
		c.SMS = "inbound+outbound"
	}
	return c
}

func (c capabilities) list() []numbers.Capability {
	var out []numbers.Capability
	calling := strings.ToLower(c.Calling)
	if strings.Contains(calling, "inbound") {
		out = append(out, numbers.CapabilityInboundCall)
	}
	if strings.Contains(calling, "outbound") {
		out = append(out, numbers.CapabilityOutboundCall)
	}
	sms := strings.ToLower(c.SMS)
	if strings.Contains(sms, "inbound") {
		out = append(out, numbers.CapabilityInboundSMS)
	}
	if strings.Contains(sms, "outbound") {
		out = append(out, numbers.CapabilityOutboundSMS)
	}
	return out
}

// toCost returns the zero Cost when the provider omits or garbles the price;
// cost is advisory only.
func (c *cost) toCost() numbers.Cost {
	if c == nil || c.Amount == "" {
		return numbers.Cost{}
	}
	amount, err := decimal.Parse(c.Amount.String())
	if err != nil {
		log.Debug().Err(err).Str("amount", c.Amount.String()).Msg("Ignoring unparseable cost")
		return numbers.Cost{}
	}
	return numbers.Cost{Amount: amount, Currency: strings.ToUpper(c.CurrencyCode)}
}

func (r searchResult) candidate(spec numbers.Spec) numbers.Candidate {
	t := spec.Type
	if r.PhoneNumberType != "" {
		t = parseWireNumberType(r.PhoneNumberType)
	}
	return numbers.Candidate{
		E164:        r.PhoneNumbers[0],
		Country:     spec.Country,
		Type:        t,
		MonthlyCost: r.Cost.toCost(),
		SearchID:    r.SearchID,
		ExpiresAt:   r.SearchExpiresBy,
	}
}

func (p purchasedPhoneNumber) owned() numbers.OwnedNumber {
	return numbers.OwnedNumber{
		E164:         p.PhoneNumber,
		Country:      numbers.Country(strings.ToUpper(p.CountryCode)),
		Type:         parseWireNumberType(p.PhoneNumberType),
		Capabilities: p.Capabilities.list(),
		PurchasedAt:  p.PurchaseDate,
		MonthlyCost:  p.Cost.toCost(),
	}
}
