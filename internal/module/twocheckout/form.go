package twocheckout

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Field is a single decoded form field. Notifications are decoded into an
// ordered field list rather than a map: the signature covers the fields in
// received order, and providers may repeat a key.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered form field sequence.
type Fields []Field

// ParseFields decodes an application/x-www-form-urlencoded body, preserving
// field order and duplicate keys.
func ParseFields(r io.Reader) (Fields, error) {
	body, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read form body: %w", err)
	}

	var fields Fields
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decode form key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decode form value for %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	return fields, nil
}

// Get returns the first value for key, matched case-insensitively.
func (f Fields) Get(key string) string {
	for _, field := range f {
		if strings.EqualFold(field.Key, key) {
			return field.Value
		}
	}
	return ""
}

// Pick returns the first present, non-empty value among the given alias
// keys, tried in order. The provider uses different key spellings across
// integration modes, so every logical field carries an explicit alias list.
func (f Fields) Pick(aliases ...string) string {
	for _, alias := range aliases {
		for _, field := range f {
			if !strings.EqualFold(field.Key, alias) {
				continue
			}
			if v := strings.TrimSpace(field.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

// sensitiveKeySubstrings marks field names whose values never reach logs.
var sensitiveKeySubstrings = []string{
	"card", "cc", "cvv", "cvc", "security", "pass", "secret",
	"key", "signature", "hash", "authorization", "token",
}

const sanitizeValueLimit = 300

// Sanitize returns a copy of the fields safe for logging: values under
// sensitive keys are masked and long values truncated.
func (f Fields) Sanitize() map[string]string {
	safe := make(map[string]string, len(f))
	for _, field := range f {
		lower := strings.ToLower(field.Key)
		masked := false
		for _, s := range sensitiveKeySubstrings {
			if strings.Contains(lower, s) {
				masked = true
				break
			}
		}
		if masked {
			safe[field.Key] = "***"
			continue
		}
		v := field.Value
		if len(v) > sanitizeValueLimit {
			v = v[:sanitizeValueLimit] + "..."
		}
		safe[field.Key] = v
	}
	return safe
}
