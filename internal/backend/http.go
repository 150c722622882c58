package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// HTTPRequestWire is the payload carried by a MessageHTTPRequest,
// addressing one of the node's configured HTTP services.
type HTTPRequestWire struct {
	Service string            `json:"service"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Header  map[string]string `json:"header,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// HTTPResponseWire is the reply forwarded back to the requesting peer as
// an overlay.Event.
type HTTPResponseWire struct {
	Status int               `json:"status"`
	Header map[string]string `json:"header,omitempty"`
	Body   []byte            `json:"body,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// HTTPProxy forwards a decoded HTTPRequestWire to the local service it
// names and returns the upstream's response.
type HTTPProxy interface {
	Forward(ctx context.Context, req HTTPRequestWire) (HTTPResponseWire, error)
}

// ServiceHTTPProxy is the default HTTPProxy: it resolves the request's
// Service name through a ServiceRegistry and forwards over a plain
// net/http client.
type ServiceHTTPProxy struct {
	Registry *ServiceRegistry
	Client   *http.Client
}

// NewServiceHTTPProxy creates a ServiceHTTPProxy with a bounded-timeout
// client, suitable for forwarding to trusted local upstreams.
func NewServiceHTTPProxy(registry *ServiceRegistry) *ServiceHTTPProxy {
	return &ServiceHTTPProxy{
		Registry: registry,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Forward implements HTTPProxy.
func (p *ServiceHTTPProxy) Forward(ctx context.Context, wire HTTPRequestWire) (HTTPResponseWire, error) {
	base, ok := p.Registry.ResolveHTTP(wire.Service)
	if !ok {
		return HTTPResponseWire{Error: fmt.Sprintf("unknown http service %q", wire.Service)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, wire.Method, base+wire.Path, bytes.NewReader(wire.Body))
	if err != nil {
		return HTTPResponseWire{}, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range wire.Header {
		req.Header.Set(k, v)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return HTTPResponseWire{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return HTTPResponseWire{Error: err.Error()}, nil
	}

	out := HTTPResponseWire{Status: resp.StatusCode, Header: make(map[string]string, len(resp.Header)), Body: body}
	for k := range resp.Header {
		out.Header[k] = resp.Header.Get(k)
	}
	return out, nil
}

// HTTPEndpoint handles MessageHTTPRequest: it decodes the request,
// forwards it through Proxy, and emits a single reply event carrying
// the encoded response addressed back to the originating peer.
type HTTPEndpoint struct {
	Proxy  HTTPProxy
	Logger *slog.Logger
}

// NewHTTPEndpoint creates an HTTPEndpoint forwarding through proxy.
func NewHTTPEndpoint(proxy HTTPProxy, logger *slog.Logger) *HTTPEndpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPEndpoint{Proxy: proxy, Logger: logger.With(slog.String("component", "backend.http"))}
}

// Handle implements Endpoint.
func (e *HTTPEndpoint) Handle(ctx context.Context, from overlay.Did, msg envelope.Message) ([]overlay.Event, error) {
	var req HTTPRequestWire
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("decode http request: %w", err)
	}

	resp, err := e.Proxy.Forward(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("forward http request: %w", err)
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode http response: %w", err)
	}

	reply := envelope.Message{Type: envelope.MessageHTTPRequest, Data: encoded}
	return []overlay.Event{{
		Kind:    "http_response",
		Peer:    from,
		Message: overlay.CustomMessage{Data: envelope.Wrap(envelope.FlagInline, reply.Marshal())},
	}}, nil
}
