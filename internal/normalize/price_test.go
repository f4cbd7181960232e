package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "79.99", "79.99", false},
		{"integer", "120", "120", false},
		{"dollar sign", "$79.99", "79.99", false},
		{"euro sign", "€45,00", "45", false},
		{"pound with spaces", " £ 30.50 ", "30.5", false},
		{"thousands dot-decimal", "1,299.99", "1299.99", false},
		{"thousands comma-decimal", "1.299,99", "1299.99", false},
		{"thousands no decimals", "1,299", "1299", false},
		{"rand prefix", "R1 234.56", "1234.56", false},
		{"currency code", "USD 15.00", "15", false},
		{"zero", "0", "0", false},
		{"empty", "", "", true},
		{"only symbol", "$", "", true},
		{"non-numeric", "call for price", "", true},
		{"negative", "-5.00", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want, parseErr := decimal.NewFromString(tt.want)
			require.NoError(t, parseErr)
			assert.True(t, got.Equal(want), "Price(%q) = %s, want %s", tt.raw, got, want)
		})
	}
}
