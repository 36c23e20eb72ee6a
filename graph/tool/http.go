package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// httpTransport reaches a tool server exposed as an HTTP endpoint. Unlike
// stdio transports, HTTP transports may run invocations concurrently; the
// broker only serializes calls for stdio servers.
type httpTransport struct {
	desc   ServerDescriptor
	client *http.Client
}

func newHTTPTransport(desc ServerDescriptor) *httpTransport {
	return &httpTransport{
		desc:   desc,
		client: &http.Client{},
	}
}

func (h *httpTransport) do(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.desc.URL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.desc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: server returned %d", ErrTransportLost, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (h *httpTransport) Handshake(ctx context.Context) error {
	var result struct {
		OK bool `json:"ok"`
	}
	return h.do(ctx, "/handshake", struct{}{}, &result)
}

func (h *httpTransport) ListTools(ctx context.Context) ([]Spec, error) {
	var result struct {
		Tools []Spec `json:"tools"`
	}
	if err := h.do(ctx, "/list_tools", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (h *httpTransport) Invoke(ctx context.Context, toolName string, args map[string]interface{}, correlationID string) (Result, error) {
	params := struct {
		Tool          string                 `json:"tool"`
		Args          map[string]interface{} `json:"args"`
		CorrelationID string                 `json:"correlation_id"`
	}{Tool: toolName, Args: args, CorrelationID: correlationID}

	var reply struct {
		CorrelationID string                 `json:"correlation_id"`
		Result        map[string]interface{} `json:"result"`
		Error         string                 `json:"error"`
	}
	if err := h.do(ctx, "/invoke", params, &reply); err != nil {
		return Result{}, err
	}
	if reply.CorrelationID != correlationID {
		return Result{}, fmt.Errorf("tool: correlation id mismatch: sent %q, received %q", correlationID, reply.CorrelationID)
	}
	if reply.Error != "" {
		return Result{IsError: true, ErrorMessage: reply.Error}, nil
	}
	return Result{Value: reply.Result}, nil
}

func (h *httpTransport) Shutdown(ctx context.Context) error {
	return h.do(ctx, "/shutdown", struct{}{}, nil)
}
