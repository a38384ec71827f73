package payment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCredits(t *testing.T) {
	cases := map[string]int{
		"credits_100":             100,
		"100":                     100,
		" credits_5 ":             5,
		"credits_0":               0,
		"credits_-3":              0,
		"credits_abc":             0,
		"credits_1000000":         MaxCredits,
		"credits_1000001":         0,
		"credits_3000000000":      0,
		"99999999999999999999999": 0,
		"pro":                     0,
		"":                        0,
	}
	for plan, want := range cases {
		require.Equal(t, want, ParseCredits(plan), "plan %q", plan)
	}
}

func TestMinorUnits(t *testing.T) {
	require.EqualValues(t, 190000, MinorUnits(1900, "INR"))
	require.EqualValues(t, 500, MinorUnits(5, "usd"))
	require.EqualValues(t, 1200, MinorUnits(1200, "JPY"))
	require.EqualValues(t, int64(MaxOrderAmount)*100, MinorUnits(MaxOrderAmount, "INR"))
}
