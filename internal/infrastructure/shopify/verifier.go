package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// SignatureParam is the query parameter carrying the platform's HMAC
const SignatureParam = "hmac"

var (
	errMissingSignature = errors.New("missing signature")
	errBadSignature     = errors.New("signature mismatch")
)

// CanonicalQuery builds the platform-mandated signing string: the signature field is
// removed, keys are sorted and joined as key=value pairs with '&'.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// SignQuery returns the hex HMAC-SHA256 of the canonical query
func SignQuery(params map[string]string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalQuery(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyQuery recomputes the signature over params and compares it to the supplied
// hmac field in constant time. It rejects when the field is absent or empty.
func VerifyQuery(params map[string]string, secret string) bool {
	supplied, ok := params[SignatureParam]
	if !ok || supplied == "" || secret == "" {
		return false
	}
	expected := SignQuery(params, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(supplied)))
}

// FlattenQuery turns url.Values into the single-valued map VerifyQuery expects.
// Array parameters (ids[]=1&ids[]=2) are signed by the platform under the bare
// key as ids=["1", "2"]. Other repeated keys keep their first value.
func FlattenQuery(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		if name, ok := strings.CutSuffix(k, "[]"); ok {
			params[name] = `["` + strings.Join(v, `", "`) + `"]`
			continue
		}
		params[k] = v[0]
	}
	return params
}

// WebhookVerifier verifies webhook bodies signed with the app secret
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for X-Shopify-Hmac-Sha256 headers
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify checks the base64 HMAC-SHA256 of the raw payload
func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	if header == "" {
		return errMissingSignature
	}
	supplied, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return errBadSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), supplied) {
		return errBadSignature
	}
	return nil
}
