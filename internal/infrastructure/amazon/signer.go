package amazon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const signingService = "execute-api"

// signer adds AWS Signature Version 4 headers to Selling Partner API requests
type signer struct {
	accessKey   string
	secretKey   string
	region      string
	accessToken string
	now         func() time.Time
	v4          *v4.Signer
}

func newSigner(accessKey, secretKey, region, accessToken string) *signer {
	return &signer{
		accessKey:   accessKey,
		secretKey:   secretKey,
		region:      region,
		accessToken: accessToken,
		now:         time.Now,
		v4:          v4.NewSigner(),
	}
}

// Sign signs every header of req except the ones SigV4 leaves out, including the LWA access token
func (s *signer) Sign(req *http.Request, body []byte) error {
	if s.accessKey == "" || s.secretKey == "" {
		return fmt.Errorf("access key and secret key are required")
	}

	payloadHash := hashHex(body)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if s.accessToken != "" {
		req.Header.Set("X-Amz-Access-Token", s.accessToken)
	}

	creds := aws.Credentials{AccessKeyID: s.accessKey, SecretAccessKey: s.secretKey}
	if err := s.v4.SignHTTP(req.Context(), creds, req, payloadHash, signingService, s.region, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
