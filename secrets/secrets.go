package secrets

import (
	"bytes"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v4"
)

// LoadFromFile loads a secret from a file path
func LoadFromFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("secret file path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}

	return data, nil
}

// LoadToken loads a personal access token from a file
func LoadToken(path string) (string, error) {
	data, err := LoadFromFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadRSAPrivateKey loads a PEM encoded RSA private key and checks that it parses.
// The raw PEM bytes are returned since the GitHub App transport signs with them directly.
func LoadRSAPrivateKey(path string) ([]byte, error) {
	data, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if _, err := jwt.ParseRSAPrivateKeyFromPEM(data); err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}

	return data, nil
}
