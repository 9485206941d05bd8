package coinbase

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/spooky-finn/marketsync/domain"
)

const verifyPath = "/users/self/verify"

type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// Authenticator produces the fields a private subscribe request carries.
type Authenticator struct {
	apiKey     string
	passphrase string
	signer     *kucoin.KcSigner
	now        func() time.Time
}

// NewAuthenticator expects the secret base64 encoded, the way the venue issues it.
func NewAuthenticator(creds Credentials) (*Authenticator, error) {
	if !creds.Complete() {
		return nil, domain.ErrMissingCredentials
	}
	secret, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not base64: %v", domain.ErrAuthentication, err)
	}

	return &Authenticator{
		apiKey:     creds.APIKey,
		passphrase: creds.Passphrase,
		// KcSigner signs with HMAC-SHA256 and base64 encodes the digest
		signer: kucoin.NewKcSigner(creds.APIKey, string(secret), creds.Passphrase),
		now:    time.Now,
	}, nil
}

// Authenticate signs timestamp + GET + /users/self/verify with the current time in seconds.
func (a *Authenticator) Authenticate() map[string]any {
	timestamp := kucoin.IntToString(a.now().Unix())
	signature := a.signer.Sign([]byte(timestamp + "GET" + verifyPath))

	return map[string]any{
		"timestamp":  timestamp,
		"key":        a.apiKey,
		"signature":  string(signature),
		"passphrase": a.passphrase,
	}
}
