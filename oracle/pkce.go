package oracle

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeVerifierLength  = 128
	codeVerifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
)

// newCodeVerifier returns a maximum-length RFC 7636 code verifier.
func newCodeVerifier() (string, error) {
	limit := big.NewInt(int64(len(codeVerifierCharset)))
	out := make([]byte, codeVerifierLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("oracle auth: generate code verifier: %w", err)
		}
		out[i] = codeVerifierCharset[n.Int64()]
	}
	return string(out), nil
}
