// Package twocheckout implements the 2Checkout wire formats: notification
// signature verification, the legacy return-URL checksum, the invoice hash
// variant, the acknowledgment body the provider requires, and the mapping
// from provider status vocabulary to the internal payment status.
//
// Everything in this package is pure; it touches neither network nor store.
package twocheckout

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Provider is the provider name recorded on payment rows.
const Provider = "2checkout"

// SignatureField carries the HMAC over the notification payload.
const SignatureField = "SIGNATURE_SHA2_256"

// Config holds the merchant credentials. Injected at construction; nothing
// in this package reads the environment.
type Config struct {
	MerchantCode string
	SecretWord   string
	SecretKey    string
	Demo         bool
}

// VerifyNotificationSignature checks the HMAC-SHA-256 signature over a
// notification payload. The signed message is every field except the
// signature field itself, in received order, each value prefixed with its
// UTF-8 byte length. Returns false when the signature field is absent.
func VerifyNotificationSignature(secretKey string, fields Fields) bool {
	var received string
	var src strings.Builder

	for _, f := range fields {
		if strings.EqualFold(f.Key, SignatureField) {
			received = f.Value
			continue
		}
		fmt.Fprintf(&src, "%d%s", len(f.Value), f.Value)
	}

	if received == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(src.String()))
	calc := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(calc)), []byte(strings.ToLower(received)))
}

// VerifyReturnChecksum checks the legacy MD5 checksum on the browser return
// redirect: UPPER(MD5(secretWord + merchantCode + orderNumber + total)). In
// demo mode the provider hashes the literal order number "1". This scheme is
// weaker than the notification signature and is only ever used for an
// optimistic status hint, never to authorize a paid transition.
func VerifyReturnChecksum(secretWord, merchantCode, orderNumber, total, receivedKey string, demo bool) bool {
	if demo {
		orderNumber = "1"
	}
	sum := md5.Sum([]byte(secretWord + merchantCode + orderNumber + total))
	calc := strings.ToUpper(hex.EncodeToString(sum[:]))
	return calc == strings.ToUpper(receivedKey)
}

// VerifyInvoiceHash checks the invoice-linked confirmation variant. The
// hash field is "ALGO:HEX"; the message is sale id + merchant code +
// invoice id + secret word, HMAC'd with the secret key using ALGO.
func VerifyInvoiceHash(cfg Config, fields Fields) bool {
	raw := fields.Pick("hash", "HASH")
	algoName, received, ok := strings.Cut(raw, ":")
	if !ok {
		return false
	}

	newHash := hashByName(algoName)
	if newHash == nil {
		return false
	}

	saleID := fields.Pick("sale_id", "SALE_ID")
	invoiceID := fields.Pick("invoice_id", "INVOICE_ID")

	msg := saleID + cfg.MerchantCode + invoiceID + cfg.SecretWord
	mac := hmac.New(newHash, []byte(cfg.SecretKey))
	mac.Write([]byte(msg))
	calc := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToUpper(calc)), []byte(strings.ToUpper(received)))
}

// hashByName resolves the provider's algorithm names ("SHA2-256",
// "SHA3-256", "MD5") to hash constructors.
func hashByName(name string) func() hash.Hash {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "sha256", "sha2_256":
		return sha256.New
	case "sha3_256":
		return sha3.New256
	case "md5":
		return md5.New
	default:
		return nil
	}
}

// AckBody computes the acknowledgment body the provider requires before it
// stops re-delivering a notification: the notification date wrapped with
// its hex HMAC-SHA-256 in a fixed delimiter format.
func AckBody(secretKey, date string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(date))
	return fmt.Sprintf("<EPAYMENT>%s|%s</EPAYMENT>", date, hex.EncodeToString(mac.Sum(nil)))
}

const checkoutURL = "https://www.2checkout.com/checkout/purchase"

// CheckoutURL builds the hosted checkout redirect URL for an order.
func CheckoutURL(cfg Config, orderNumber string, total decimal.Decimal, currency, title, returnURL string) string {
	if len(title) > 128 {
		title = title[:128]
	}

	params := url.Values{}
	params.Set("sid", cfg.MerchantCode)
	params.Set("mode", "2CO")
	params.Set("currency_code", currency)
	params.Set("merchant_order_id", orderNumber)
	params.Set("x_receipt_link_url", returnURL)
	params.Set("li_0_type", "product")
	params.Set("li_0_name", title)
	params.Set("li_0_quantity", "1")
	params.Set("li_0_price", total.StringFixed(2))
	params.Set("li_0_tangible", "Y")
	if cfg.Demo {
		params.Set("demo", "Y")
	}

	return checkoutURL + "?" + params.Encode()
}
