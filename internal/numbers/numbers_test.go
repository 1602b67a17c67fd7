package numbers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountry(t *testing.T) {
	c, err := ParseCountry(" gb ")
	require.NoError(t, err)
	assert.Equal(t, CountryGB, c)

	_, err = ParseCountry("ZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported country")

	_, err = ParseCountry("")
	require.Error(t, err)
}

func TestSupportedCountriesIsACopy(t *testing.T) {
	cs := SupportedCountries()
	require.Len(t, cs, 18)
	cs[0] = "XX"
	assert.Equal(t, CountryUS, SupportedCountries()[0])
}

func TestParseNumberType(t *testing.T) {
	cases := map[string]NumberType{
		"toll-free":  TypeTollFree,
		"tollFree":   TypeTollFree,
		"TOLL_FREE":  TypeTollFree,
		"geographic": TypeGeographic,
		"local":      TypeGeographic,
	}
	for raw, want := range cases {
		got, err := ParseNumberType(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseNumberType("mobile")
	assert.Error(t, err)
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, Spec{Country: CountryUS, Type: TypeGeographic, AreaCode: "206"}.Validate())
	assert.Error(t, Spec{Country: CountryGB, Type: TypeGeographic, AreaCode: "20"}.Validate())
	assert.Error(t, Spec{Country: CountryGB}.Validate())
	assert.Error(t, Spec{Type: TypeTollFree}.Validate())
}

func TestNormalizeE164(t *testing.T) {
	got, err := NormalizeE164("+44 (20) 7946-0958")
	require.NoError(t, err)
	assert.Equal(t, "+442079460958", got)

	for _, bad := range []string{"442079460958", "+12345", "+1234567890123456", "+44a2079460958", ""} {
		_, err := NormalizeE164(bad)
		assert.Error(t, err, bad)
	}
}

func TestCostExceeds(t *testing.T) {
	ceiling, err := ParseCost("2.00 usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", ceiling.Currency)

	above, _ := ParseCost("2.01 USD")
	equal, _ := ParseCost("2 USD")
	other, _ := ParseCost("9.00 GBP")

	assert.True(t, above.Exceeds(ceiling))
	assert.False(t, equal.Exceeds(ceiling))
	assert.False(t, other.Exceeds(ceiling), "different currency is not comparable")
	assert.False(t, above.Exceeds(Cost{}), "no ceiling configured")
	assert.False(t, Cost{}.Exceeds(ceiling), "unknown cost")

	_, err = ParseCost("-1")
	assert.Error(t, err)
	_, err = ParseCost("1 USD extra")
	assert.Error(t, err)
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderPending.Terminal())
	assert.True(t, OrderSucceeded.Terminal())
	assert.True(t, OrderFailed.Terminal())
}
