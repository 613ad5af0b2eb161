package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		country string
		want    PhoneNumber
		wantErr bool
	}{
		{name: "national with trunk zero", raw: "0599 12 34 56", country: "GE", want: "+995599123456"},
		{name: "national without trunk zero", raw: "599123456", country: "GE", want: "+995599123456"},
		{name: "already international", raw: "+995599123456", country: "GE", want: "+995599123456"},
		{name: "dial-out prefix", raw: "00995599123456", country: "GE", want: "+995599123456"},
		{name: "bare calling code prefix", raw: "995599123456", country: "GE", want: "+995599123456"},
		{name: "lowercase country", raw: "599123456", country: "ge", want: "+995599123456"},
		{name: "us number", raw: "+1 (202) 555-0176", country: "US", want: "+12025550176"},
		{name: "international wrong country", raw: "+995599123456", country: "DE", wantErr: true},
		{name: "no digits", raw: "+-()", country: "GE", wantErr: true},
		{name: "only trunk zero", raw: "0", country: "GE", wantErr: true},
		{name: "unknown country", raw: "599123456", country: "XX", wantErr: true},
		{name: "empty country", raw: "599123456", country: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.country)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsDomainError(err, ErrCodeInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
