package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceFlag(t *testing.T) {
	cases := map[string]string{
		"2950000":      "2950000",
		"2.950.000":    "2950000",
		"2950000.50":   "2950000.5",
		"Rp 3.000.000": "3000000",
		"3.000":        "3000",
	}
	for raw, want := range cases {
		got, err := parsePriceFlag("--price", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.String(), raw)
	}

	for _, bad := range []string{"", "0", "-5", "abc"} {
		_, err := parsePriceFlag("--price", bad)
		assert.Error(t, err, bad)
	}
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "show", "export", "import", "alert", "status", "simulate-alert", "version"} {
		assert.True(t, names[want], want)
	}

	sub := map[string]bool{}
	for _, c := range alertCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"add", "list", "check", "log"} {
		assert.True(t, sub[want], want)
	}
}
