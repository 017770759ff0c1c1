package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "hush"

func signedParams() map[string]string {
	params := map[string]string{
		"code":      "0907a61c0c8d55e99db179b68161bc00",
		"shop":      "some-shop.myshopify.com",
		"state":     "0.6784241404160823",
		"timestamp": "1337178173",
	}
	params[SignatureParam] = SignQuery(params, testSecret)
	return params
}

func TestCanonicalQuerySortsAndDropsSignature(t *testing.T) {
	got := CanonicalQuery(map[string]string{
		"timestamp": "1",
		"hmac":      "ignored",
		"code":      "abc",
		"shop":      "foo.myshopify.com",
	})
	assert.Equal(t, "code=abc&shop=foo.myshopify.com&timestamp=1", got)
}

func TestVerifyQuery(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.True(t, VerifyQuery(signedParams(), testSecret))
	})

	t.Run("missing signature", func(t *testing.T) {
		params := signedParams()
		delete(params, SignatureParam)
		assert.False(t, VerifyQuery(params, testSecret))
	})

	t.Run("empty signature", func(t *testing.T) {
		params := signedParams()
		params[SignatureParam] = ""
		assert.False(t, VerifyQuery(params, testSecret))
	})

	t.Run("altered parameter", func(t *testing.T) {
		params := signedParams()
		params["shop"] = "other-shop.myshopify.com"
		assert.False(t, VerifyQuery(params, testSecret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifyQuery(signedParams(), "other"))
	})

	t.Run("empty secret", func(t *testing.T) {
		assert.False(t, VerifyQuery(signedParams(), ""))
	})

	t.Run("uppercase hex accepted", func(t *testing.T) {
		params := signedParams()
		params[SignatureParam] = toUpper(params[SignatureParam])
		assert.True(t, VerifyQuery(params, testSecret))
	})
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func TestFlattenQuery(t *testing.T) {
	values, err := url.ParseQuery("shop=foo.myshopify.com&ids[]=1&ids[]=2")
	require.NoError(t, err)

	params := FlattenQuery(values)
	assert.Equal(t, "foo.myshopify.com", params["shop"])
	assert.Equal(t, `["1", "2"]`, params["ids"])
	assert.NotContains(t, params, "ids[]")
}

func TestVerifyQuery_ArrayParams(t *testing.T) {
	signed := map[string]string{
		"shop":      "foo.myshopify.com",
		"ids":       `["1", "2"]`,
		"timestamp": "1337178173",
	}
	signature := SignQuery(signed, testSecret)
	assert.Equal(t, `ids=["1", "2"]&shop=foo.myshopify.com&timestamp=1337178173`, CanonicalQuery(signed))

	values, err := url.ParseQuery("shop=foo.myshopify.com&ids[]=1&ids[]=2&timestamp=1337178173&hmac=" + signature)
	require.NoError(t, err)
	assert.True(t, VerifyQuery(FlattenQuery(values), testSecret))

	values.Set("ids[]", "3")
	assert.False(t, VerifyQuery(FlattenQuery(values), testSecret))
}

func TestWebhookVerifier(t *testing.T) {
	body := []byte(`{"domain":"foo.myshopify.com"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	header := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	v := NewWebhookVerifier(testSecret)

	assert.NoError(t, v.Verify(body, header))
	assert.ErrorIs(t, v.Verify(body, ""), errMissingSignature)
	assert.ErrorIs(t, v.Verify(body, "not base64!"), errBadSignature)
	assert.ErrorIs(t, v.Verify([]byte(`{"domain":"bar.myshopify.com"}`), header), errBadSignature)
}
