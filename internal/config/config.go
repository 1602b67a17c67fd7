// Package config loads phonectl settings. Precedence, lowest first:
// built-in defaults, the optional TOML file, environment variables (a .env
// file in the working directory is honoured), then command-line flags,
// which the command layer applies to the returned Config.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/logging"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/joho/godotenv"
)

const DefaultAuthorityHost = "https://login.microsoftonline.com"

// Config holds everything a phonectl invocation needs.
type Config struct {
	Endpoint string

	// Bearer credentials: a static token, or an Entra ID application.
	AccessToken   string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string

	// Desired state. These have no defaults.
	Country      string
	NumberType   string
	AutoPurchase *bool

	SMSEnabled     bool
	AreaCode       string
	MaxMonthlyCost string

	RequestTimeout      time.Duration
	SearchTimeout       time.Duration
	OrderTimeout        time.Duration
	PollInterval        time.Duration
	PollMaxInterval     time.Duration
	MaxPurchaseAttempts int
	MaxRetries          int

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		AuthorityHost:       DefaultAuthorityHost,
		RequestTimeout:      30 * time.Second,
		SearchTimeout:       2 * time.Minute,
		OrderTimeout:        5 * time.Minute,
		PollInterval:        2 * time.Second,
		PollMaxInterval:     30 * time.Second,
		MaxPurchaseAttempts: 5,
		MaxRetries:          3,
		LogLevel:            "info",
		LogFormat:           "auto",
	}
}

// Load builds a Config from defaults, the TOML file at path (or
// PHONECTL_CONFIG when path is empty) and the environment. It does not
// validate; call Validate once flags have been applied.
func Load(path string) (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PHONECTL_CONFIG"))
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
	}
	return cfg, nil
}

// Validate checks everything a provider-backed command needs and reports
// all problems at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "AZURE_ACS_ENDPOINT (or ACS_ENDPOINT)")
	}
	if c.AccessToken == "" && !c.HasClientCredentials() {
		missing = append(missing, "ACS_ACCESS_TOKEN (or AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required configuration: %s", internalerrors.ErrInvalidInput, strings.Join(missing, ", "))
	}

	var problems []string
	if _, err := NormalizeEndpoint(c.Endpoint); err != nil {
		problems = append(problems, err.Error())
	}
	if c.AccessToken == "" {
		if u, err := url.Parse(c.AuthorityHost); err != nil || u.Scheme != "https" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("AZURE_AUTHORITY_HOST must be an https URL, got %q", c.AuthorityHost))
		}
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"PHONECTL_REQUEST_TIMEOUT", c.RequestTimeout},
		{"PHONECTL_SEARCH_TIMEOUT", c.SearchTimeout},
		{"PHONECTL_ORDER_TIMEOUT", c.OrderTimeout},
		{"PHONECTL_POLL_INTERVAL", c.PollInterval},
		{"PHONECTL_POLL_MAX_INTERVAL", c.PollMaxInterval},
	} {
		if d.val <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be greater than 0, got %s", d.key, d.val))
		}
	}
	if c.PollMaxInterval > 0 && c.PollInterval > c.PollMaxInterval {
		problems = append(problems, "PHONECTL_POLL_INTERVAL must not exceed PHONECTL_POLL_MAX_INTERVAL")
	}
	if c.MaxPurchaseAttempts < 1 {
		problems = append(problems, fmt.Sprintf("PHONECTL_MAX_PURCHASE_ATTEMPTS must be at least 1, got %d", c.MaxPurchaseAttempts))
	}
	if c.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("PHONECTL_MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if _, err := c.CostCeiling(); err != nil {
		problems = append(problems, err.Error())
	}
	if !logging.ValidLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("PHONECTL_LOG_LEVEL %q is not a known level", c.LogLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerrors.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// HasClientCredentials reports whether an Entra ID application is configured.
func (c *Config) HasClientCredentials() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Spec assembles the desired state, naming every missing key.
func (c *Config) Spec() (numbers.Spec, error) {
	var missing []string
	if c.Country == "" {
		missing = append(missing, "PHONE_COUNTRY (--country)")
	}
	if c.NumberType == "" {
		missing = append(missing, "PHONE_NUMBER_TYPE (--type)")
	}
	if c.AutoPurchase == nil {
		missing = append(missing, "PHONE_AUTO_PURCHASE (--auto-purchase)")
	}
	if len(missing) > 0 {
		return numbers.Spec{}, fmt.Errorf("%w: missing desired state: %s", internalerrors.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return c.searchSpec(*c.AutoPurchase)
}

// SearchSpec is Spec without the auto-purchase requirement, for commands
// that never reconcile.
func (c *Config) SearchSpec() (numbers.Spec, error) {
	var missing []string
	if c.Country == "" {
		missing = append(missing, "PHONE_COUNTRY (--country)")
	}
	if c.NumberType == "" {
		missing = append(missing, "PHONE_NUMBER_TYPE (--type)")
	}
	if len(missing) > 0 {
		return numbers.Spec{}, fmt.Errorf("%w: missing desired state: %s", internalerrors.ErrInvalidInput, strings.Join(missing, ", "))
	}
	autoPurchase := c.AutoPurchase != nil && *c.AutoPurchase
	return c.searchSpec(autoPurchase)
}

func (c *Config) searchSpec(autoPurchase bool) (numbers.Spec, error) {
	country, err := numbers.ParseCountry(c.Country)
	if err != nil {
		return numbers.Spec{}, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
	}
	numberType, err := numbers.ParseNumberType(c.NumberType)
	if err != nil {
		return numbers.Spec{}, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
	}
	spec := numbers.Spec{
		Country:      country,
		Type:         numberType,
		AutoPurchase: autoPurchase,
		SMSEnabled:   c.SMSEnabled,
		AreaCode:     c.AreaCode,
	}
	if err := spec.Validate(); err != nil {
		return numbers.Spec{}, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
	}
	return spec, nil
}

// CostCeiling parses PHONE_MAX_MONTHLY_COST; unset means no ceiling.
func (c *Config) CostCeiling() (numbers.Cost, error) {
	if c.MaxMonthlyCost == "" {
		return numbers.Cost{}, nil
	}
	cost, err := numbers.ParseCost(c.MaxMonthlyCost)
	if err != nil {
		return numbers.Cost{}, fmt.Errorf("PHONE_MAX_MONTHLY_COST: %w", err)
	}
	return cost, nil
}

// ResourceName is the Communication Services resource name, the first
// label of the endpoint host.
func (c *Config) ResourceName() string {
	endpoint, err := NormalizeEndpoint(c.Endpoint)
	if err != nil {
		return ""
	}
	u, _ := url.Parse(endpoint)
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

// NormalizeEndpoint adds a missing scheme and strips trailing slashes.
func NormalizeEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("endpoint %q must be a host name or URL", raw)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// parseEndpointSetting accepts a bare endpoint or a connection string of the
// form "endpoint=https://...;accesskey=...". Access keys are ignored: the
// client authenticates with bearer tokens only.
func parseEndpointSetting(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "=") {
		return raw
	}
	for _, part := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "endpoint") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
