package diarization

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
)

// errNoToken is returned by providers that found nothing to offer.
var errNoToken = errors.New("no token")

// CredentialProvider supplies an access token for the diarization engine.
type CredentialProvider interface {
	Name() string
	Token() (string, error)
}

// StaticToken is a token taken directly from configuration.
type StaticToken struct{ Value string }

func (s StaticToken) Name() string { return "config" }

func (s StaticToken) Token() (string, error) {
	if v := strings.TrimSpace(s.Value); v != "" {
		return v, nil
	}
	return "", errNoToken
}

// EnvToken reads the first non-empty variable of Vars from the process environment.
type EnvToken struct{ Vars []string }

func (e EnvToken) Name() string { return "env:" + strings.Join(e.Vars, ",") }

func (e EnvToken) Token() (string, error) {
	for _, name := range e.Vars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", errNoToken
}

// DotEnvToken reads Keys from a .env file without touching the environment.
type DotEnvToken struct {
	Path string
	Keys []string
}

func (d DotEnvToken) Name() string { return "dotenv:" + d.Path }

func (d DotEnvToken) Token() (string, error) {
	vars, err := godotenv.Read(d.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", d.Path, err)
	}
	for _, k := range d.Keys {
		if v := strings.TrimSpace(vars[k]); v != "" {
			return v, nil
		}
	}
	return "", errNoToken
}

// FileToken reads a token stored alone in a file, such as ~/.huggingface/token.
type FileToken struct{ Path string }

func (f FileToken) Name() string { return "file:" + f.Path }

func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		return v, nil
	}
	return "", errNoToken
}

// Providers builds the ordered provider list from configuration: the
// configured token, then environment variables, then the .env file, then
// the token file.
func Providers(cfg config.Diarization) []CredentialProvider {
	var providers []CredentialProvider
	if cfg.Token != "" {
		providers = append(providers, StaticToken{Value: cfg.Token})
	}
	if len(cfg.TokenEnv) > 0 {
		providers = append(providers, EnvToken{Vars: cfg.TokenEnv})
		if cfg.DotEnvFile != "" {
			providers = append(providers, DotEnvToken{Path: cfg.DotEnvFile, Keys: cfg.TokenEnv})
		}
	}
	if cfg.TokenFile != "" {
		providers = append(providers, FileToken{Path: cfg.TokenFile})
	}
	return providers
}

// ResolveToken tries providers in order and returns the first token found
// together with the names of every provider consulted.
func ResolveToken(providers []CredentialProvider) (string, []string) {
	attempted := make([]string, 0, len(providers))
	for _, p := range providers {
		attempted = append(attempted, p.Name())
		if tok, err := p.Token(); err == nil && tok != "" {
			return tok, attempted
		}
	}
	return "", attempted
}
