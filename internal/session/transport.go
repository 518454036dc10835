package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/stream-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Transport opens the server-push stream that answers a request.
type Transport interface {
	Open(ctx context.Context, requestText string) (Stream, error)
}

// Stream is an open server-push connection. Frames yields the received frames in arrival order and
// stops after the first error; the end of the body is reported as io.EOF. Close releases the
// connection and may be called more than once.
type Stream interface {
	Frames() iter.Seq2[models.Frame, error]
	Close() error
}

// RequestError is returned by Transport.Open when the request could not be built at all, as opposed to
// a failure of the connection itself.
type RequestError struct {
	Err error
}

// HTTPTransport opens streams with a GET request to a fixed endpoint, carrying the request text in the
// "message" query field.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	readCfg  *sse.ReadConfig
}

type httpStream struct {
	resp    *http.Response
	readCfg *sse.ReadConfig
}

const (
	// StreamContentType is the content type of a server-push stream.
	StreamContentType = "text/event-stream"

	// DefaultMaxEventSize bounds a single received event. Every content event carries the whole answer
	// accumulated so far, so this is also the longest answer that can be shown.
	DefaultMaxEventSize = 8 << 20
)

// ErrUnexpectedStatus is wrapped in the error returned by HTTPTransport.Open for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

func (e *RequestError) Error() string {
	return fmt.Sprintf("failed to build request: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewHTTPTransport creates a transport for the given endpoint. A nil client means http.DefaultClient, and
// a maxEventSize that is not positive means DefaultMaxEventSize.
func NewHTTPTransport(endpoint string, client *http.Client, maxEventSize int) HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if maxEventSize <= 0 {
		maxEventSize = DefaultMaxEventSize
	}
	return HTTPTransport{
		endpoint: endpoint,
		client:   client,
		readCfg:  &sse.ReadConfig{MaxEventSize: maxEventSize},
	}
}

// Open sends the request and returns the stream once the response headers arrived. The connection is
// bound to ctx: cancelling it closes the stream.
func (t HTTPTransport) Open(ctx context.Context, requestText string) (Stream, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	q := u.Query()
	q.Set("message", requestText)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", StreamContentType)
	req.Header.Set("Accept", StreamContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return &httpStream{resp: resp, readCfg: t.readCfg}, nil
}

func (s *httpStream) Frames() iter.Seq2[models.Frame, error] {
	return func(yield func(models.Frame, error) bool) {
		for ev, err := range sse.Read(s.resp.Body, s.readCfg) {
			if err != nil {
				yield(models.Frame{}, fmt.Errorf("error reading stream: %w", err))
				return
			}
			if !yield(models.Frame{Type: ev.Type, Data: ev.Data}, nil) {
				return
			}
		}
		yield(models.Frame{}, io.EOF)
	}
}

func (s *httpStream) Close() error {
	return s.resp.Body.Close()
}
