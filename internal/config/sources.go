package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig maps phonectl.toml keys.
type fileConfig struct {
	Endpoint            string `toml:"endpoint"`
	AccessToken         string `toml:"access_token"`
	TenantID            string `toml:"tenant_id"`
	ClientID            string `toml:"client_id"`
	ClientSecret        string `toml:"client_secret"`
	AuthorityHost       string `toml:"authority_host"`
	Country             string `toml:"country"`
	NumberType          string `toml:"number_type"`
	AutoPurchase        bool   `toml:"auto_purchase"`
	SMSEnabled          bool   `toml:"sms_enabled"`
	AreaCode            string `toml:"area_code"`
	MaxMonthlyCost      string `toml:"max_monthly_cost"`
	RequestTimeout      string `toml:"request_timeout"`
	SearchTimeout       string `toml:"search_timeout"`
	OrderTimeout        string `toml:"order_timeout"`
	PollInterval        string `toml:"poll_interval"`
	PollMaxInterval     string `toml:"poll_max_interval"`
	MaxPurchaseAttempts int    `toml:"max_purchase_attempts"`
	MaxRetries          int    `toml:"max_retries"`
	LogLevel            string `toml:"log_level"`
	LogFormat           string `toml:"log_format"`
	MetricsTextfile     string `toml:"metrics_textfile"`
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("load config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	setString := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("endpoint", &c.Endpoint, parseEndpointSetting(raw.Endpoint))
	setString("access_token", &c.AccessToken, raw.AccessToken)
	setString("tenant_id", &c.TenantID, raw.TenantID)
	setString("client_id", &c.ClientID, raw.ClientID)
	setString("client_secret", &c.ClientSecret, raw.ClientSecret)
	setString("authority_host", &c.AuthorityHost, raw.AuthorityHost)
	setString("country", &c.Country, raw.Country)
	setString("number_type", &c.NumberType, raw.NumberType)
	setString("area_code", &c.AreaCode, raw.AreaCode)
	setString("max_monthly_cost", &c.MaxMonthlyCost, raw.MaxMonthlyCost)
	setString("log_level", &c.LogLevel, raw.LogLevel)
	setString("log_format", &c.LogFormat, raw.LogFormat)
	setString("metrics_textfile", &c.MetricsTextfile, raw.MetricsTextfile)

	if meta.IsDefined("auto_purchase") {
		v := raw.AutoPurchase
		c.AutoPurchase = &v
	}
	if meta.IsDefined("sms_enabled") {
		c.SMSEnabled = raw.SMSEnabled
	}
	if meta.IsDefined("max_purchase_attempts") {
		c.MaxPurchaseAttempts = raw.MaxPurchaseAttempts
	}
	if meta.IsDefined("max_retries") {
		c.MaxRetries = raw.MaxRetries
	}

	var errs []error
	setDuration := func(key string, dst *time.Duration, v string) {
		if !meta.IsDefined(key) {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	setDuration("request_timeout", &c.RequestTimeout, raw.RequestTimeout)
	setDuration("search_timeout", &c.SearchTimeout, raw.SearchTimeout)
	setDuration("order_timeout", &c.OrderTimeout, raw.OrderTimeout)
	setDuration("poll_interval", &c.PollInterval, raw.PollInterval)
	setDuration("poll_max_interval", &c.PollMaxInterval, raw.PollMaxInterval)
	if len(errs) > 0 {
		return fmt.Errorf("load config file %s: %w", path, errors.Join(errs...))
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := envValue("AZURE_ACS_ENDPOINT"); v != "" {
		c.Endpoint = v
	} else if v := envValue("ACS_ENDPOINT"); v != "" {
		c.Endpoint = parseEndpointSetting(v)
	}
	envString("ACS_ACCESS_TOKEN", &c.AccessToken)
	envString("AZURE_TENANT_ID", &c.TenantID)
	envString("AZURE_CLIENT_ID", &c.ClientID)
	envString("AZURE_CLIENT_SECRET", &c.ClientSecret)
	envString("AZURE_AUTHORITY_HOST", &c.AuthorityHost)
	envString("PHONE_COUNTRY", &c.Country)
	envString("PHONE_NUMBER_TYPE", &c.NumberType)
	envString("PHONE_AREA_CODE", &c.AreaCode)
	envString("PHONE_MAX_MONTHLY_COST", &c.MaxMonthlyCost)
	envString("PHONECTL_LOG_LEVEL", &c.LogLevel)
	envString("PHONECTL_LOG_FORMAT", &c.LogFormat)
	envString("PHONECTL_METRICS_TEXTFILE", &c.MetricsTextfile)

	var errs []error
	if v := envValue("PHONE_AUTO_PURCHASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHONE_AUTO_PURCHASE must be true or false: %w", err))
		} else {
			c.AutoPurchase = &b
		}
	}
	if v := envValue("PHONE_SMS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHONE_SMS_ENABLED must be true or false: %w", err))
		} else {
			c.SMSEnabled = b
		}
	}
	for key, dst := range map[string]*time.Duration{
		"PHONECTL_REQUEST_TIMEOUT":   &c.RequestTimeout,
		"PHONECTL_SEARCH_TIMEOUT":    &c.SearchTimeout,
		"PHONECTL_ORDER_TIMEOUT":     &c.OrderTimeout,
		"PHONECTL_POLL_INTERVAL":     &c.PollInterval,
		"PHONECTL_POLL_MAX_INTERVAL": &c.PollMaxInterval,
	} {
		if err := envDuration(key, dst); err != nil {
			errs = append(errs, err)
		}
	}
	for key, dst := range map[string]*int{
		"PHONECTL_MAX_PURCHASE_ATTEMPTS": &c.MaxPurchaseAttempts,
		"PHONECTL_MAX_RETRIES":           &c.MaxRetries,
	} {
		if err := envInt(key, dst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envString(key string, dst *string) {
	if v := envValue(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	if v := envValue(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	if v := envValue(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a duration such as 30s or 5m: %w", key, err)
		}
		*dst = d
	}
	return nil
}
