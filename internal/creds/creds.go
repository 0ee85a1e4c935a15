package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// TokenEnvVar overrides every other credential source when set.
	TokenEnvVar = "CLAUDE_CODE_OAUTH_TOKEN"

	keychainService = "Claude Code-credentials"
	keychainAccount = ""

	credentialsFileName = ".credentials.json"
	claudeConfigDirName = ".claude"
)

// Credential is the resolved bearer token plus whatever plan metadata the
// source carried. The token is held in local scope only and is never logged.
type Credential struct {
	AccessToken      string
	SubscriptionType string
	Source           string
}

// Source yields a credential or an error meaning "try the next source".
type Source interface {
	Name() string
	Resolve() (*Credential, error)
}

// ErrNoCredential reports that every source was exhausted.
var ErrNoCredential = errors.New("no Claude Code credentials found; install Claude Code and log in, or set " + TokenEnvVar)

// SecretStore abstracts the OS secret database behind a service/account lookup.
type SecretStore interface {
	Lookup(service, account string) ([]byte, error)
}

type Resolver struct {
	sources []Source
	logger  zerolog.Logger
}

// NewDefaultResolver builds the standard chain: env override, OS secret
// store, then the plaintext credentials file under the user config dir.
func NewDefaultResolver(logger zerolog.Logger) *Resolver {
	return NewResolver(logger,
		&EnvSource{Var: TokenEnvVar},
		&SecretStoreSource{Store: DefaultSecretStore()},
		&FileSource{},
	)
}

func NewResolver(logger zerolog.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, logger: logger}
}

// Resolve tries each source in order and returns the first credential.
// Per-source failures are collected and surfaced only on exhaustion.
func (r *Resolver) Resolve() (*Credential, error) {
	var failures []string
	for _, source := range r.sources {
		cred, err := source.Resolve()
		if err != nil {
			r.logger.Debug().Str("source", source.Name()).Err(err).Msg("credential source skipped")
			failures = append(failures, fmt.Sprintf("%s: %v", source.Name(), err))
			continue
		}
		r.logger.Debug().Str("source", source.Name()).Msg("credential resolved")
		return cred, nil
	}
	if len(failures) == 0 {
		return nil, ErrNoCredential
	}
	return nil, fmt.Errorf("%w (%s)", ErrNoCredential, strings.Join(failures, "; "))
}

type EnvSource struct {
	Var string
}

func (s *EnvSource) Name() string { return "env" }

func (s *EnvSource) Resolve() (*Credential, error) {
	token := strings.TrimSpace(os.Getenv(s.Var))
	if token == "" {
		return nil, fmt.Errorf("%s is not set", s.Var)
	}
	return &Credential{AccessToken: token, Source: s.Name()}, nil
}

type SecretStoreSource struct {
	Store SecretStore
}

func (s *SecretStoreSource) Name() string { return "keychain" }

func (s *SecretStoreSource) Resolve() (*Credential, error) {
	if s.Store == nil {
		return nil, errors.New("no secret store available on this platform")
	}
	blob, err := s.Store.Lookup(keychainService, keychainAccount)
	if err != nil {
		return nil, fmt.Errorf("secret store lookup: %w", err)
	}
	cred, err := parseCredentialsBlob(blob)
	if err != nil {
		return nil, err
	}
	cred.Source = s.Name()
	return cred, nil
}

// FileSource reads the plaintext credentials file Claude Code writes on
// platforms without a secret store.
type FileSource struct {
	// Path overrides the default location when non-empty.
	Path string
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Resolve() (*Credential, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		var err error
		path, err = DefaultCredentialsPath()
		if err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	cred, err := parseCredentialsBlob(data)
	if err != nil {
		return nil, fmt.Errorf("credentials file %s: %w", path, err)
	}
	cred.Source = s.Name()
	return cred, nil
}

// DefaultCredentialsPath is ~/.claude/.credentials.json.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, claudeConfigDirName, credentialsFileName), nil
}

type credentialsBlob struct {
	ClaudeAiOauth struct {
		AccessToken      string `json:"accessToken"`
		SubscriptionType string `json:"subscriptionType"`
	} `json:"claudeAiOauth"`
}

func parseCredentialsBlob(data []byte) (*Credential, error) {
	var blob credentialsBlob
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &blob); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	token := strings.TrimSpace(blob.ClaudeAiOauth.AccessToken)
	if token == "" {
		return nil, errors.New("credentials missing claudeAiOauth.accessToken")
	}
	return &Credential{
		AccessToken:      token,
		SubscriptionType: strings.TrimSpace(blob.ClaudeAiOauth.SubscriptionType),
	}, nil
}
