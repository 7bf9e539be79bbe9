package extsrv

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// CallResult is the immutable outcome of one HTTP exchange. Status 0
// is the synthetic code for transport-level failures (DNS, TLS,
// timeout, connection refused); any real HTTP status, including 4xx
// and 5xx, is a normal outcome.
type CallResult struct {
	Status     int
	Body       []byte
	Transcript string
}

// Ok reports whether the call reached the server and got a 2xx.
func (r CallResult) Ok() bool {
	return r.Status >= 200 && r.Status < 300
}

type transport struct {
	httpc *http.Client
}

func newTransport(cfg ServerConfig) *transport {
	return &transport{
		httpc: &http.Client{
			Timeout: cfg.timeout(),
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.SkipTLSVerify,
				},
			},
		},
	}
}

// get issues a GET with the form rendered into the query string.
func (t *transport) get(ctx context.Context, rawURL string, query url.Values, header http.Header) CallResult {
	target, err := mergeQuery(rawURL, query)
	if err != nil {
		return failure(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(err)
	}
	copyHeader(req, header)
	return t.do(req)
}

// postForm issues a form-encoded POST.
func (t *transport) postForm(ctx context.Context, rawURL string, form url.Values, header http.Header) CallResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	copyHeader(req, header)
	return t.do(req)
}

// postMultipart issues a multipart POST carrying every form field plus
// one file part named "file". The part keeps the original filename and
// declares the detected media type.
func (t *transport) postMultipart(
	ctx context.Context,
	rawURL string,
	form url.Values,
	header http.Header,
	filename string,
	mediaType string,
	content []byte,
) CallResult {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := make([]string, 0, len(form))
	for name := range form {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		for _, value := range form[name] {
			if err := mw.WriteField(name, value); err != nil {
				return failure(err)
			}
		}
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	partHeader.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return failure(err)
	}
	if _, err := part.Write(content); err != nil {
		return failure(err)
	}
	if err := mw.Close(); err != nil {
		return failure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &body)
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	copyHeader(req, header)
	return t.do(req)
}

func (t *transport) do(req *http.Request) CallResult {
	resp, err := t.httpc.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err)
	}

	return CallResult{
		Status:     resp.StatusCode,
		Body:       body,
		Transcript: renderTranscript(resp, body),
	}
}

// failure maps a transport-level error onto the synthetic status 0.
// The error text becomes the transcript so operators still get a
// diagnostic even though no response was received.
func failure(err error) CallResult {
	return CallResult{
		Status:     0,
		Transcript: "transport failure: " + err.Error(),
	}
}

// renderTranscript reconstructs a readable status line + headers +
// body block for operator diagnostics. Recorded on every call.
func renderTranscript(resp *http.Response, body []byte) string {
	var sb strings.Builder
	sb.WriteString(resp.Proto)
	sb.WriteString(" ")
	sb.WriteString(resp.Status)
	sb.WriteString("\n")

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(resp.Header[name], ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.Write(body)
	return sb.String()
}

func mergeQuery(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for name, values := range query {
		q[name] = values
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func copyHeader(req *http.Request, header http.Header) {
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
}

var quoteReplacer = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}
