// Package extsrv implements the protocol client for external grading
// servers: it signs requests with the server's shared secret, performs
// the HTTP exchange and interprets the heterogeneous responses (plain
// status probes, multipart upload receipts, XML grade batches).
package extsrv

import "time"

// AuthType selects how outgoing requests authenticate beyond the akey.
type AuthType string

const (
	// AuthAPIKey authenticates with the akey signature alone.
	AuthAPIKey AuthType = "api_key"
	// AuthOAuth2 additionally attaches a bearer token obtained via the
	// client-credentials grant.
	AuthOAuth2 AuthType = "oauth2"
	// AuthJWT behaves like AuthOAuth2; the token endpoint issues JWTs.
	AuthJWT AuthType = "jwt"
)

// GroupInfoMode states whether a server wants the course-group roster
// attached to every request.
type GroupInfoMode string

const (
	GroupInfoNone     GroupInfoMode = "none"
	GroupInfoRequired GroupInfoMode = "required"
)

const (
	DefaultHashAlgorithm = "sha256"
	DefaultTimeout       = 10 * time.Second
)

// ServerConfig is the externally owned record describing one external
// grading server. The client only reads it.
type ServerConfig struct {
	ID   string
	Name string

	BaseURL   string // view / getgrades / connectivity probe
	UploadURL string // multipart submit target, falls back to BaseURL

	AuthType      AuthType
	Secret        string // shared secret (api_key) or client secret (oauth2/jwt)
	HashAlgorithm string // digest both sides can compute, default sha256

	SkipTLSVerify bool
	GroupInfo     GroupInfoMode

	TokenEndpoint string
	ClientID      string

	Timeout time.Duration
}

// UsesBearerToken reports whether calls against this server must carry
// an Authorization header.
func (c ServerConfig) UsesBearerToken() bool {
	return c.AuthType == AuthOAuth2 || c.AuthType == AuthJWT
}

func (c ServerConfig) hashAlgorithm() string {
	if c.HashAlgorithm == "" {
		return DefaultHashAlgorithm
	}
	return c.HashAlgorithm
}

func (c ServerConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c ServerConfig) uploadURL() string {
	if c.UploadURL == "" {
		return c.BaseURL
	}
	return c.UploadURL
}

// Validate rejects configurations that would fail every call anyway.
// Bearer-token auth without a token endpoint or client id must fail
// deterministically here instead of at the identity provider.
func (c ServerConfig) Validate() error {
	if c.BaseURL == "" {
		return newErrMissingConfig("base url")
	}
	if c.Secret == "" {
		return newErrMissingConfig("secret")
	}
	switch c.AuthType {
	case AuthAPIKey, "":
	case AuthOAuth2, AuthJWT:
		if c.TokenEndpoint == "" {
			return newErrMissingConfig("token endpoint")
		}
		if c.ClientID == "" {
			return newErrMissingConfig("client id")
		}
	default:
		return newErrMissingConfig("auth type")
	}
	return nil
}
