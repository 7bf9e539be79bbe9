package extsrv

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/programme-lv/extserver/akey"
	"github.com/programme-lv/extserver/logger"
	"github.com/wailsapp/mimetype"
)

// TokenSource supplies bearer tokens for servers with oauth2/jwt auth.
// The token package provides the caching implementation.
type TokenSource interface {
	GetToken(ctx context.Context, cfg ServerConfig) (string, error)
}

// Client talks to one external grading server. It holds only the
// configuration, the transport and the memoized connectivity probe;
// every operation returns its outcome as an explicit CallResult.
type Client struct {
	cfg    ServerConfig
	tr     *transport
	tokens TokenSource
	now    func() time.Time

	mu       sync.Mutex
	conCheck *CallResult
}

type ClientOption func(*Client)

// WithTokenSource wires the bearer-token provider. Required for
// servers whose auth type is oauth2 or jwt.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) { c.tokens = ts }
}

// WithClock overrides the timestamp source. Tests use it to produce
// replayable signatures.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(cfg ServerConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		tr:  newTransport(cfg),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.UsesBearerToken() && c.tokens == nil {
		return nil, newErrMissingConfig("token source")
	}
	return c, nil
}

// CheckConnection probes the server with a bare GET; 200 means
// available. The outcome is memoized for the client's lifetime so
// repeated probes within one request cycle do not re-hit the network.
func (c *Client) CheckConnection(ctx context.Context) (CallResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conCheck != nil {
		return *c.conCheck, nil
	}

	header, err := c.authHeader(ctx)
	if err != nil {
		return CallResult{}, err
	}
	res := c.tr.get(ctx, c.cfg.BaseURL, nil, header)
	c.conCheck = &res

	logger.FromContext(ctx).Debug("connectivity probe",
		"server", c.cfg.Name, "status", res.Status)
	return res, nil
}

// UploadFile submits the file to the server's upload URL as multipart
// POST. Only the filename and the file digest enter the signature; the
// bytes themselves ride in the "file" part.
func (c *Client) UploadFile(ctx context.Context, rc RequestContext, file SubmissionFile) (CallResult, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return CallResult{}, newErrFileUnreadable(err)
	}

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	mediaType := file.MimeType
	if mediaType == "" {
		mediaType = mimetype.Detect(content).String()
	}

	fileHash, err := akey.DigestHex(content, c.cfg.hashAlgorithm())
	if err != nil {
		return CallResult{}, newErrSignature(err)
	}

	form, err := c.signedForm(rc, ActionSubmit, RoleStudent, map[string]akey.Value{
		akey.ParamFilename: akey.S(name),
		akey.ParamFilehash: akey.S(fileHash),
	})
	if err != nil {
		return CallResult{}, err
	}

	header, err := c.authHeader(ctx)
	if err != nil {
		return CallResult{}, err
	}

	res := c.tr.postMultipart(ctx, c.cfg.uploadURL(), form, header, name, mediaType, content)

	log := logger.FromContext(ctx)
	if res.Ok() {
		log.Info("submission uploaded",
			"server", c.cfg.Name, "filename", name, "status", res.Status)
	} else {
		log.Warn("submission upload failed",
			"server", c.cfg.Name, "filename", name, "status", res.Status)
	}
	return res, nil
}

// LoadGrades fetches and parses the grade batch for the given
// usernames. A non-200 response or an unparseable body yields an empty
// grade set plus the diagnostic CallResult, never a hard failure: the
// calling UI renders a simple "could not get grades" message from it.
func (c *Client) LoadGrades(ctx context.Context, rc RequestContext, usernames []string) ([]GradeRecord, CallResult, error) {
	res, err := c.LoadGradesRaw(ctx, rc, usernames)
	if err != nil {
		return nil, res, err
	}
	if !res.Ok() {
		logger.FromContext(ctx).Warn("grade fetch failed",
			"server", c.cfg.Name, "status", res.Status)
		return nil, res, nil
	}

	grades, err := ParseGrades(res.Body)
	if err != nil {
		logger.FromContext(ctx).Warn("grade response unparseable",
			"server", c.cfg.Name, "err", err)
		return nil, res, nil
	}
	return grades, res, nil
}

// LoadGradesRaw returns the raw grade response for diagnostics. The
// username list keeps its order on the wire; duplicates are meaningful
// for auditing.
func (c *Client) LoadGradesRaw(ctx context.Context, rc RequestContext, usernames []string) (CallResult, error) {
	form, err := c.signedForm(rc, ActionGetGrades, RoleTeacher, map[string]akey.Value{
		akey.ParamUsernames: akey.L(usernames...),
	})
	if err != nil {
		return CallResult{}, err
	}

	header, err := c.authHeader(ctx)
	if err != nil {
		return CallResult{}, err
	}
	return c.tr.postForm(ctx, c.cfg.BaseURL, form, header), nil
}

// StudentViewURL builds the signed URL a student's embedded view loads
// from. Pure URL construction, no I/O.
func (c *Client) StudentViewURL(rc RequestContext) (string, error) {
	form, err := c.signedForm(rc, ActionView, RoleStudent, nil)
	if err != nil {
		return "", err
	}
	return mergeQuery(c.cfg.BaseURL, form)
}

// TeacherViewURL builds the signed teacher-view URL, optionally
// narrowed to one student. An empty studUsername still enters the
// signature: the teacherview parameter set is fixed.
func (c *Client) TeacherViewURL(rc RequestContext, studUsername string) (string, error) {
	form, err := c.signedForm(rc, ActionView, RoleTeacher, map[string]akey.Value{
		akey.ParamStudUsername: akey.S(studUsername),
	})
	if err != nil {
		return "", err
	}
	return mergeQuery(c.cfg.BaseURL, form)
}

// authHeader returns the Authorization header for bearer-token auth
// types and nil otherwise. Token acquisition failures propagate as-is
// so the UI can show a specific "could not obtain token" message.
func (c *Client) authHeader(ctx context.Context) (http.Header, error) {
	if !c.cfg.UsesBearerToken() {
		return nil, nil
	}
	token, err := c.tokens.GetToken(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header, nil
}
