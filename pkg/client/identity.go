package client

import (
	"fmt"
	"os"
	"strings"
)

// TokenFromFile reads an identity token written by 'agentctl token'. The
// file holds the bare token, optionally followed by a trailing newline.
//
//	token, err := client.TokenFromFile(os.ExpandEnv("$HOME/.agentledger/token"))
func TokenFromFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("token file %q is empty", path)
	}
	return token, nil
}

// WithTokenFile is the functional-option form of NewFromTokenFile. Use it
// when token loading has to combine with other New() options:
//
//	c, err := client.New(nodeURL,
//	    client.WithTokenFile(tokenPath),
//	    client.WithTimeout(5*time.Second),
//	)
func WithTokenFile(path string) Option {
	return func(c *Client) error {
		token, err := TokenFromFile(path)
		if err != nil {
			return err
		}
		return WithBearerToken(token)(c)
	}
}

// NewFromTokenFile creates a Bearer-authenticated SDK client from a token
// file written by 'agentctl token'.
//
// Additional options can be appended:
//
//	c, err := client.NewFromTokenFile(
//	    "https://ledger.example.com",
//	    os.ExpandEnv("$HOME/.agentledger/token"),
//	    client.WithTimeout(5*time.Second),
//	)
func NewFromTokenFile(nodeBase, path string, opts ...Option) (*Client, error) {
	return New(nodeBase, append([]Option{WithTokenFile(path)}, opts...)...)
}
