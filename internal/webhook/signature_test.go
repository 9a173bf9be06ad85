package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"id":"pay_1"}}}`)

	tests := []struct {
		name   string
		body   []byte
		header string
		secret string
		want   bool
	}{
		{"valid signature", body, Sign(body, secret), secret, true},
		{"valid with surrounding whitespace", body, " " + Sign(body, secret) + " ", secret, true},
		{"corrupted signature", body, Sign(body, secret)[:10] + "deadbeef", secret, false},
		{"signature for different body", []byte(`{"event":"x"}`), Sign(body, secret), secret, false},
		{"signature with wrong secret", body, Sign(body, "other"), secret, false},
		{"missing header", body, "", secret, false},
		{"missing secret", body, Sign(body, secret), "", false},
		{"empty body", nil, Sign(nil, secret), secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.body, tt.header, tt.secret))
		})
	}
}

func TestVerifySignatureUsesRawBytes(t *testing.T) {
	secret := "whsec_test"
	// semantically identical JSON, different bytes: only the exact raw body
	// must verify
	raw := []byte(`{"event":"payment.captured", "payload":{}}`)
	reserialized := []byte(`{"event":"payment.captured","payload":{}}`)

	header := Sign(raw, secret)
	assert.True(t, VerifySignature(raw, header, secret))
	assert.False(t, VerifySignature(reserialized, header, secret))
}
