// Package client builds request envelopes and sends them to a bandkeeper
// server.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"bandkeeper/internal/adapters/protocol"
	"bandkeeper/pkg/domain"
)

// FieldReader supplies the band fields of payload-carrying commands.
type FieldReader interface {
	ReadBand(ctx context.Context) (domain.Band, error)
}

// JSONFieldReader decodes one band document from r.
type JSONFieldReader struct {
	r io.Reader
}

// NewJSONFieldReader reads band fields from r.
func NewJSONFieldReader(r io.Reader) *JSONFieldReader {
	return &JSONFieldReader{r: r}
}

// ReadBand implements FieldReader. Unknown fields are rejected.
func (j *JSONFieldReader) ReadBand(context.Context) (domain.Band, error) {
	if j.r == nil {
		return domain.Band{}, fmt.Errorf("no band input configured")
	}
	dec := json.NewDecoder(j.r)
	dec.DisallowUnknownFields()
	var band domain.Band
	if err := dec.Decode(&band); err != nil {
		return domain.Band{}, fmt.Errorf("decode band fields: %w", err)
	}
	return band, nil
}

// RequestFactory builds requests for one user. Commands in the extended set
// get a payload from the field reader; all others carry none.
type RequestFactory struct {
	extended map[string]struct{}
	fields   FieldReader
	user     domain.User
}

// NewRequestFactory constructs a factory.
func NewRequestFactory(extended []string, fields FieldReader, user domain.User) *RequestFactory {
	set := make(map[string]struct{}, len(extended))
	for _, name := range extended {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &RequestFactory{extended: set, fields: fields, user: user}
}

// NewRequest builds the envelope for command and argument. Payload identity
// and creation date are left zero for the server to assign.
func (f *RequestFactory) NewRequest(ctx context.Context, command, argument string) (domain.Request, error) {
	req := domain.Request{Command: command, Argument: argument, User: f.user}
	if _, ok := f.extended[strings.ToLower(strings.TrimSpace(command))]; !ok {
		return req, nil
	}
	if f.fields == nil {
		return domain.Request{}, fmt.Errorf("command %s needs band fields but no reader is configured", command)
	}
	band, err := f.fields.ReadBand(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	band.ID = 0
	band.CreationDate = time.Time{}
	band.Owner = ""
	req.Payload = &band
	return req, nil
}

// HTTPClient posts envelopes to a server.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient targets baseURL with a bounded timeout.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// Do sends req and decodes the response envelope. Command failures come back
// as error responses, not as Go errors.
func (c *HTTPClient) Do(ctx context.Context, req domain.Request) (domain.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+protocol.CommandsPath, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(protocol.RequestIDHeader, uuid.NewString())

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return domain.Response{}, fmt.Errorf("post %s: %w", req.Command, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp domain.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return domain.Response{}, fmt.Errorf("decode response (HTTP %d): %w", httpResp.StatusCode, err)
	}
	return resp, nil
}
