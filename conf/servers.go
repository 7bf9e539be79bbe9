// Package conf loads the external-server registry consumed by the
// client and the CLI.
package conf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/extserver/extsrv"
)

type serverToml struct {
	ID            string `toml:"id"`
	Name          string `toml:"name"`
	BaseURL       string `toml:"base_url"`
	UploadURL     string `toml:"upload_url"`
	AuthType      string `toml:"auth_type"`
	Secret        string `toml:"secret"`
	HashAlgorithm string `toml:"hash_algorithm"`
	SkipTLSVerify bool   `toml:"skip_tls_verify"`
	GroupInfo     string `toml:"group_info"`
	TokenEndpoint string `toml:"token_endpoint"`
	ClientID      string `toml:"client_id"`
	TimeoutSec    int    `toml:"timeout_sec"`
}

type registryToml struct {
	Servers []serverToml `toml:"server"`
}

// LoadServers reads a TOML server registry. Secrets may be deferred to
// the environment: a secret of the form "env:NAME" is resolved from
// the variable NAME so registry files can be committed.
func LoadServers(path string) ([]extsrv.ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server registry: %w", err)
	}

	var registry registryToml
	if err := toml.Unmarshal(raw, &registry); err != nil {
		return nil, fmt.Errorf("parse server registry: %w", err)
	}

	servers := make([]extsrv.ServerConfig, 0, len(registry.Servers))
	for _, s := range registry.Servers {
		cfg := extsrv.ServerConfig{
			ID:            s.ID,
			Name:          s.Name,
			BaseURL:       s.BaseURL,
			UploadURL:     s.UploadURL,
			AuthType:      extsrv.AuthType(s.AuthType),
			Secret:        resolveSecret(s.Secret),
			HashAlgorithm: s.HashAlgorithm,
			SkipTLSVerify: s.SkipTLSVerify,
			GroupInfo:     extsrv.GroupInfoMode(s.GroupInfo),
			TokenEndpoint: s.TokenEndpoint,
			ClientID:      s.ClientID,
			Timeout:       time.Duration(s.TimeoutSec) * time.Second,
		}
		if cfg.AuthType == "" {
			cfg.AuthType = extsrv.AuthAPIKey
		}
		if cfg.GroupInfo == "" {
			cfg.GroupInfo = extsrv.GroupInfoNone
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", s.ID, err)
		}
		servers = append(servers, cfg)
	}
	return servers, nil
}

// FindServer returns the registry entry with the given id.
func FindServer(servers []extsrv.ServerConfig, id string) (extsrv.ServerConfig, error) {
	for _, s := range servers {
		if s.ID == id {
			return s, nil
		}
	}
	return extsrv.ServerConfig{}, fmt.Errorf("no server with id %q in registry", id)
}

func resolveSecret(secret string) string {
	if name, found := strings.CutPrefix(secret, "env:"); found {
		return os.Getenv(name)
	}
	return secret
}
