// Package numbers holds the phone-number data model shared by the provider
// adapter, the inventory matcher and the reconciler.
package numbers

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/govalues/decimal"
)

// Country is an ISO 3166-1 alpha-2 code from the supported set.
type Country string

const (
	CountryUS Country = "US"
	CountryCA Country = "CA"
	CountryGB Country = "GB"
	CountryAU Country = "AU"
	CountryFR Country = "FR"
	CountryDE Country = "DE"
	CountryIT Country = "IT"
	CountryES Country = "ES"
	CountryNL Country = "NL"
	CountrySE Country = "SE"
	CountryNO Country = "NO"
	CountryDK Country = "DK"
	CountryFI Country = "FI"
	CountryIE Country = "IE"
	CountryCH Country = "CH"
	CountryAT Country = "AT"
	CountryBE Country = "BE"
	CountryPT Country = "PT"
)

var supportedCountries = []Country{
	CountryUS, CountryCA, CountryGB, CountryAU, CountryFR, CountryDE,
	CountryIT, CountryES, CountryNL, CountrySE, CountryNO, CountryDK,
	CountryFI, CountryIE, CountryCH, CountryAT, CountryBE, CountryPT,
}

// SupportedCountries returns the countries accepted by ParseCountry.
func SupportedCountries() []Country {
	return slices.Clone(supportedCountries)
}

// ParseCountry normalises raw to an upper-case supported country code.
func ParseCountry(raw string) (Country, error) {
	c := Country(strings.ToUpper(strings.TrimSpace(raw)))
	if c == "" {
		return "", fmt.Errorf("country is required")
	}
	if !slices.Contains(supportedCountries, c) {
		return "", fmt.Errorf("unsupported country %q (supported: %s)", raw, joinCountries(supportedCountries))
	}
	return c, nil
}

func joinCountries(cs []Country) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// NumberType is the provider classification of a number.
type NumberType string

const (
	TypeTollFree   NumberType = "toll-free"
	TypeGeographic NumberType = "geographic"
)

// ParseNumberType accepts the CLI spelling and the provider spellings
// ("tollFree", "toll_free", "local").
func ParseNumberType(raw string) (NumberType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "toll-free", "tollfree", "toll_free":
		return TypeTollFree, nil
	case "geographic", "local":
		return TypeGeographic, nil
	case "":
		return "", fmt.Errorf("number type is required")
	default:
		return "", fmt.Errorf("invalid number type %q (valid: toll-free, geographic)", raw)
	}
}

// Capability is a calling capability assigned by the provider.
type Capability string

const (
	CapabilityInboundCall  Capability = "inbound-call"
	CapabilityOutboundCall Capability = "outbound-call"
	CapabilityInboundSMS   Capability = "inbound-sms"
	CapabilityOutboundSMS  Capability = "outbound-sms"
)

// Spec is the declared desired state: exactly one number of Type in Country.
type Spec struct {
	Country      Country    `json:"country"`
	Type         NumberType `json:"numberType"`
	AutoPurchase bool       `json:"autoPurchase"`

	// Search shaping; not part of matching.
	SMSEnabled bool   `json:"smsEnabled,omitempty"`
	AreaCode   string `json:"areaCode,omitempty"`
}

func (s Spec) String() string {
	return fmt.Sprintf("%s %s", s.Country, s.Type)
}

// Validate checks the fields the provider cannot validate for us.
func (s Spec) Validate() error {
	if _, err := ParseCountry(string(s.Country)); err != nil {
		return err
	}
	if _, err := ParseNumberType(string(s.Type)); err != nil {
		return err
	}
	if s.AreaCode != "" && s.Country != CountryUS && s.Country != CountryCA {
		return fmt.Errorf("area code is only supported for US and CA numbers")
	}
	return nil
}

// OwnedNumber is a number currently held by the account. It is never
// mutated in place.
type OwnedNumber struct {
	E164         string       `json:"phoneNumber"`
	Country      Country      `json:"country"`
	Type         NumberType   `json:"numberType"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	PurchasedAt  time.Time    `json:"purchasedAt,omitzero"`
	MonthlyCost  Cost         `json:"monthlyCost,omitzero"`
}

// HasCapability reports whether c is among n's capabilities.
func (n OwnedNumber) HasCapability(c Capability) bool {
	return slices.Contains(n.Capabilities, c)
}

// Cost is an advisory recurring price.
type Cost struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (c Cost) IsZero() bool {
	return c.Currency == "" && c.Amount.IsZero()
}

func (c Cost) String() string {
	if c.IsZero() {
		return "unknown"
	}
	return c.Amount.String() + " " + c.Currency
}

// Exceeds reports whether c is above ceiling. Costs in a different
// currency than the ceiling are never considered above it.
func (c Cost) Exceeds(ceiling Cost) bool {
	if ceiling.IsZero() || c.IsZero() {
		return false
	}
	if ceiling.Currency != "" && !strings.EqualFold(ceiling.Currency, c.Currency) {
		return false
	}
	return c.Amount.Cmp(ceiling.Amount) > 0
}

// ParseCost parses "2.50" or "2.50 USD".
func ParseCost(raw string) (Cost, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return Cost{}, fmt.Errorf("invalid cost %q", raw)
	}
	amount, err := decimal.Parse(fields[0])
	if err != nil {
		return Cost{}, fmt.Errorf("invalid cost %q: %w", raw, err)
	}
	if amount.IsNeg() {
		return Cost{}, fmt.Errorf("invalid cost %q: must not be negative", raw)
	}
	c := Cost{Amount: amount}
	if len(fields) == 2 {
		c.Currency = strings.ToUpper(fields[1])
	}
	return c, nil
}

// Candidate is a provider-advertised number that is not yet owned. It is
// only valid for the lifetime of the search that produced it.
type Candidate struct {
	E164        string     `json:"phoneNumber"`
	Country     Country    `json:"country"`
	Type        NumberType `json:"numberType"`
	MonthlyCost Cost       `json:"monthlyCost,omitzero"`
	SearchID    string     `json:"searchId,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt,omitzero"`
}

// OrderStatus is the provider-side purchase order state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSucceeded OrderStatus = "succeeded"
	OrderFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderSucceeded || s == OrderFailed
}

// PurchaseOrder tracks one purchase. Failure is set when Status is failed.
type PurchaseOrder struct {
	ID           string      `json:"orderId"`
	Status       OrderStatus `json:"status"`
	PhoneNumbers []string    `json:"phoneNumbers,omitempty"`
	Failure      error       `json:"-"`
}
