package twocheckout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "sk_test_cafe"

func notificationFields() Fields {
	return Fields{
		{"IPN_PID", "1"},
		{"IPN_PNAME", "Ceramic Mug"},
		{"IPN_DATE", "20260828120000"},
		{"REFNOEXT", "PF-1001"},
		{"ORDERSTATUS", "COMPLETE"},
		{"IPN_TOTALGENERAL", "49.90"},
		{"CURRENCY", "USD"},
	}
}

// signFields mirrors the provider side: length-prefixed value concat,
// HMAC-SHA-256 with the secret key.
func signFields(secretKey string, fields Fields) string {
	var src strings.Builder
	for _, f := range fields {
		if strings.EqualFold(f.Key, SignatureField) {
			continue
		}
		fmt.Fprintf(&src, "%d%s", len(f.Value), f.Value)
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(src.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyNotificationSignature(t *testing.T) {
	t.Run("fixed vector", func(t *testing.T) {
		fields := append(notificationFields(),
			Field{SignatureField, "0764a2bcaeb847fb8660dd447e610b699816ce9e5981356a90e88606e0989f8c"})
		assert.True(t, VerifyNotificationSignature(testSecretKey, fields))
	})

	t.Run("signature compare is case-insensitive", func(t *testing.T) {
		fields := append(notificationFields(),
			Field{SignatureField, "0764A2BCAEB847FB8660DD447E610B699816CE9E5981356A90E88606E0989F8C"})
		assert.True(t, VerifyNotificationSignature(testSecretKey, fields))
	})

	t.Run("absent signature field returns false", func(t *testing.T) {
		assert.False(t, VerifyNotificationSignature(testSecretKey, notificationFields()))
	})

	t.Run("sign then verify round-trips", func(t *testing.T) {
		fields := notificationFields()
		signed := append(fields, Field{SignatureField, signFields(testSecretKey, fields)})
		assert.True(t, VerifyNotificationSignature(testSecretKey, signed))
	})

	t.Run("any single-byte mutation flips the result", func(t *testing.T) {
		fields := notificationFields()
		signed := append(Fields{}, fields...)
		signed = append(signed, Field{SignatureField, signFields(testSecretKey, fields)})

		for i := range signed {
			if strings.EqualFold(signed[i].Key, SignatureField) {
				continue
			}
			mutated := append(Fields{}, signed...)
			b := []byte(mutated[i].Value)
			b[0] ^= 0x01
			mutated[i] = Field{mutated[i].Key, string(b)}
			assert.False(t, VerifyNotificationSignature(testSecretKey, mutated),
				"mutating %s must invalidate the signature", signed[i].Key)
		}
	})

	t.Run("field order is part of the signature", func(t *testing.T) {
		fields := notificationFields()
		signed := append(Fields{}, fields...)
		signed = append(signed, Field{SignatureField, signFields(testSecretKey, fields)})

		signed[0], signed[1] = signed[1], signed[0]
		// Same bag, different order: the length-prefix concat differs only
		// when value lengths differ, which they do here.
		assert.False(t, VerifyNotificationSignature(testSecretKey, signed))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		fields := notificationFields()
		signed := append(fields, Field{SignatureField, signFields(testSecretKey, fields)})
		assert.False(t, VerifyNotificationSignature("sk_other", signed))
	})
}

func TestVerifyReturnChecksum(t *testing.T) {
	t.Run("live vector", func(t *testing.T) {
		assert.True(t, VerifyReturnChecksum(
			"tango", "2501234", "9093717", "49.90",
			"EC3AF3F7AA78398FF2C89B5621ADC9DF", false))
	})

	t.Run("received key compare is case-insensitive", func(t *testing.T) {
		assert.True(t, VerifyReturnChecksum(
			"tango", "2501234", "9093717", "49.90",
			"ec3af3f7aa78398ff2c89b5621adc9df", false))
	})

	t.Run("demo mode hashes literal order number 1", func(t *testing.T) {
		assert.True(t, VerifyReturnChecksum(
			"tango", "2501234", "9093717", "49.90",
			"36579A20F65AF72E164AB4DF7CF28C15", true))
	})

	t.Run("wrong total fails", func(t *testing.T) {
		assert.False(t, VerifyReturnChecksum(
			"tango", "2501234", "9093717", "1.00",
			"EC3AF3F7AA78398FF2C89B5621ADC9DF", false))
	})
}

func TestVerifyInvoiceHash(t *testing.T) {
	cfg := Config{MerchantCode: "2501234", SecretWord: "tango", SecretKey: testSecretKey}

	t.Run("sha2-256 vector", func(t *testing.T) {
		fields := Fields{
			{"sale_id", "SALE1"},
			{"invoice_id", "INV9"},
			{"hash", "SHA2-256:D0213DE52A85B06C2B1CFFC9970DF5691A3BE82B5945F232C1CBF552A7E19692"},
		}
		assert.True(t, VerifyInvoiceHash(cfg, fields))
	})

	t.Run("missing algo separator fails", func(t *testing.T) {
		fields := Fields{
			{"sale_id", "SALE1"},
			{"invoice_id", "INV9"},
			{"hash", "D0213DE52A85B06C2B1CFFC9970DF569"},
		}
		assert.False(t, VerifyInvoiceHash(cfg, fields))
	})

	t.Run("unknown algo fails", func(t *testing.T) {
		fields := Fields{
			{"sale_id", "SALE1"},
			{"invoice_id", "INV9"},
			{"hash", "CRC32:DEADBEEF"},
		}
		assert.False(t, VerifyInvoiceHash(cfg, fields))
	})

	t.Run("tampered invoice id fails", func(t *testing.T) {
		fields := Fields{
			{"sale_id", "SALE1"},
			{"invoice_id", "INV8"},
			{"hash", "SHA2-256:D0213DE52A85B06C2B1CFFC9970DF5691A3BE82B5945F232C1CBF552A7E19692"},
		}
		assert.False(t, VerifyInvoiceHash(cfg, fields))
	})
}

func TestAckBody(t *testing.T) {
	body := AckBody(testSecretKey, "2026-08-28 12:00:00")
	assert.Equal(t,
		"<EPAYMENT>2026-08-28 12:00:00|c13ff49b03e472cac40b82b22da0330e4df18cc866edd463acdd4edb18856f7a</EPAYMENT>",
		body)
}

func TestCheckoutURL(t *testing.T) {
	cfg := Config{MerchantCode: "2501234", Demo: true}
	u := CheckoutURL(cfg, "PF-1001", decimal.RequireFromString("49.9"), "USD", "Ceramic Mug", "https://printforge.example/payment/2co/return")

	require.Contains(t, u, "https://www.2checkout.com/checkout/purchase?")
	assert.Contains(t, u, "merchant_order_id=PF-1001")
	assert.Contains(t, u, "li_0_price=49.90")
	assert.Contains(t, u, "demo=Y")
	assert.Contains(t, u, "sid=2501234")
}
