package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/angeloszaimis/chama-gateway/pkg/errors"
)

const RequestIDHeader = "X-Request-ID"

// Headers that describe the inbound hop. The transport recomputes them.
var strippedRequestHeaders = []string{"Host", "Content-Length"}

// Response is what the backend answered, or the synthetic 503 standing in
// for it after a transport failure.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Forwarder replays inbound requests against a backend instance.
type Forwarder struct {
	client *http.Client
}

// NewForwarder returns a Forwarder whose outbound calls are bounded by timeout.
func NewForwarder(timeout time.Duration) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward sends method, header and body to target and captures the reply.
//
// Backend error statuses are passed through untouched. On a transport
// failure the returned Response carries status 503 and a {"error": ...}
// body, and the error describes the failure. The Response is never nil.
func (f *Forwarder) Forward(ctx context.Context, target, method string, header http.Header, body []byte) (*Response, error) {
	outHeader := header.Clone()
	if outHeader == nil {
		outHeader = http.Header{}
	}
	for _, h := range strippedRequestHeaders {
		outHeader.Del(h)
	}

	requestID := outHeader.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		outHeader.Set(RequestIDHeader, requestID)
	}

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return transportFailure(requestID, apperrors.BackendTransport(target, err))
	}
	req.Header = outHeader

	res, err := f.client.Do(req)
	if err != nil {
		return transportFailure(requestID, apperrors.BackendTransport(target, err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return transportFailure(requestID, apperrors.BackendTransport(target, err))
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

func transportFailure(requestID string, err *apperrors.Error) (*Response, error) {
	message := err.Message
	if err.Cause != nil {
		message = err.Cause.Error()
	}

	body, _ := json.Marshal(map[string]string{"error": message})

	return &Response{
		StatusCode: err.HTTPStatusCode(),
		Header:     http.Header{},
		Body:       body,
		RequestID:  requestID,
	}, err
}
