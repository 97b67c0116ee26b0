package letters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredentials is returned when a provider has no API key to offer.
var ErrNoCredentials = errors.New("letters: no api key")

// CredentialProvider supplies the API key for each request.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// EnvCredentials reads the key from an environment variable.
type EnvCredentials struct {
	Var string
}

func (e EnvCredentials) APIKey(context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(e.Var))
	if v == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoCredentials, e.Var)
	}
	return v, nil
}

// FileCredentials reads the key from a file, e.g. a mounted secret. The file
// is read on every call so rotated keys are picked up.
type FileCredentials struct {
	Path string
}

func (f FileCredentials) APIKey(context.Context) (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("letters: read api key: %w", err)
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoCredentials, f.Path)
	}
	return v, nil
}

// StaticCredentials is a fixed key.
type StaticCredentials string

func (s StaticCredentials) APIKey(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredentials
	}
	return string(s), nil
}
