package amazon

import (
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"
)

func fixedSigner() *signer {
	s := newSigner("AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "us-east-1", "Atza|token")
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func signedRequest(t *testing.T, s *signer, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, "https://sellingpartnerapi-na.amazon.com/listings/2021-08-01/items/S1/SKU?marketplaceIds=ATVPDKIKX0DER", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.Sign(req, []byte(body)); err != nil {
		t.Fatal(err)
	}
	return req
}

// authParts splits an Authorization header into its credential, signed headers and signature
func authParts(t *testing.T, auth string) (string, []string, string) {
	t.Helper()
	rest, ok := strings.CutPrefix(auth, "AWS4-HMAC-SHA256 ")
	if !ok {
		t.Fatalf("authorization = %s", auth)
	}
	var credential, signature string
	var headers []string
	for _, part := range strings.Split(rest, ", ") {
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "Credential":
			credential = value
		case "SignedHeaders":
			headers = strings.Split(value, ";")
		case "Signature":
			signature = value
		}
	}
	return credential, headers, signature
}

func TestSignHeaders(t *testing.T) {
	body := `{"productType":"PRODUCT"}`
	req := signedRequest(t, fixedSigner(), body)

	if req.Header.Get("X-Amz-Date") != "20240102T030405Z" {
		t.Errorf("x-amz-date = %s", req.Header.Get("X-Amz-Date"))
	}
	if req.Header.Get("X-Amz-Access-Token") != "Atza|token" {
		t.Errorf("access token = %s", req.Header.Get("X-Amz-Access-Token"))
	}
	if req.Header.Get("X-Amz-Content-Sha256") != hashHex([]byte(body)) {
		t.Errorf("content hash = %s", req.Header.Get("X-Amz-Content-Sha256"))
	}

	credential, headers, sig := authParts(t, req.Header.Get("Authorization"))
	if credential != "AKIDEXAMPLE/20240102/us-east-1/execute-api/aws4_request" {
		t.Errorf("credential = %s", credential)
	}
	signed := map[string]bool{}
	for _, h := range headers {
		signed[h] = true
	}
	for _, want := range []string{"content-type", "host", "x-amz-access-token", "x-amz-content-sha256", "x-amz-date"} {
		if !signed[want] {
			t.Errorf("%s is not signed: %v", want, headers)
		}
	}
	if _, err := hex.DecodeString(sig); err != nil || len(sig) != 64 {
		t.Errorf("signature %q is not a sha256 hex digest", sig)
	}
}

func TestSignDependsOnPayload(t *testing.T) {
	s := fixedSigner()
	a := signedRequest(t, s, `{"a":1}`).Header.Get("Authorization")
	b := signedRequest(t, s, `{"a":2}`).Header.Get("Authorization")
	if a == b {
		t.Error("different payloads produced the same signature")
	}
	again := signedRequest(t, s, `{"a":1}`).Header.Get("Authorization")
	if a != again {
		t.Error("signing is not deterministic")
	}
}

func TestSignRequiresKeys(t *testing.T) {
	s := fixedSigner()
	s.secretKey = ""
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	if err := s.Sign(req, nil); err == nil {
		t.Error("expected an error without a secret key")
	}
}
