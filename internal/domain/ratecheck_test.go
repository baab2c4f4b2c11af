package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedPayoutRate(t *testing.T) {
	table := testTable(t)

	r, err := ExpectedPayoutRate(table, "usd")
	require.NoError(t, err)
	assert.Equal(t, "0.00746", r.String())

	r, err = ExpectedPayoutRate(table, "NPR")
	require.NoError(t, err)
	assert.Equal(t, "1", r.String())

	_, err = ExpectedPayoutRate(table, "XYZ")
	require.Error(t, err)
}

func TestCheckRateLevels(t *testing.T) {
	expected := dec("100")
	tol := DefaultTolerance()

	cases := []struct {
		entered string
		level   string
	}{
		{"100", RateCheckOK},
		{"105", RateCheckOK},
		{"94.9", RateCheckSoft},
		{"112", RateCheckSoft},
		{"112.5", RateCheckHard},
		{"80", RateCheckHard},
	}
	for _, tc := range cases {
		rc := CheckRate(dec(tc.entered), expected, tol)
		assert.Equal(t, tc.level, rc.Level, "entered %s", tc.entered)
		require.NotNil(t, rc.Deviation)
		assert.NotEmpty(t, rc.Message)
	}

	rc := CheckRate(dec("80"), expected, tol)
	assert.Equal(t, "0.2", rc.Deviation.String())
	assert.Contains(t, rc.Message, "20.00%")
}

func TestCheckRateWithoutExpected(t *testing.T) {
	rc := CheckRate(dec("1.5"), dec("0"), DefaultTolerance())
	assert.Equal(t, RateCheckUnavailable, rc.Level)
	assert.Nil(t, rc.Expected)
	assert.Nil(t, rc.Deviation)
}
