// Package chain connects to a wallet credential provider that speaks
// EIP-1193 style JSON-RPC over a websocket: requests are answered by id and
// account/chain changes arrive as notifications.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// Provider error codes (EIP-1193 / EIP-3326).
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// ErrClosed is returned for calls on a closed or dropped connection.
var ErrClosed = errors.New("provider connection closed")

// RPCError is an error object returned by the provider.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Unwrap maps the unknown-chain code onto the domain sentinel.
func (e *RPCError) Unwrap() error {
	if e.Code == CodeUnrecognizedChain {
		return domain.ErrUnrecognizedChain
	}
	return nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// message is either a response (ID set) or a notification (Method set).
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	result json.RawMessage
	err    error
}

// Provider is a ports.CredentialProvider over a websocket connection.
type Provider struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	subs    map[int]func(ports.ProviderEvent)
	nextSub int
	closed  bool

	done chan struct{}
}

// Dial connects to the provider at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, logger zerolog.Logger) (*Provider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	cfg, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, fmt.Errorf("provider config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial provider: %w", err)
	}
	return newProvider(conn, logger), nil
}

func newProvider(conn *websocket.Conn, logger zerolog.Logger) *Provider {
	p := &Provider{
		conn:    conn,
		logger:  logger,
		pending: make(map[uint64]chan response),
		subs:    make(map[int]func(ports.ProviderEvent)),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := p.call(ctx, "eth_requestAccounts", []any{}, &accounts)
	return accounts, err
}

func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := p.call(ctx, "eth_accounts", []any{}, &accounts)
	return accounts, err
}

func (p *Provider) ChainID(ctx context.Context) (string, error) {
	var id string
	err := p.call(ctx, "eth_chainId", []any{}, &id)
	return id, err
}

func (p *Provider) SwitchChain(ctx context.Context, chainID string) error {
	params := []any{map[string]string{"chainId": chainID}}
	return p.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (p *Provider) AddChain(ctx context.Context, chain ports.ChainDescriptor) error {
	return p.call(ctx, "wallet_addEthereumChain", []any{chain}, nil)
}

// Subscribe registers fn for notifications. fn runs on the connection's read
// goroutine and must not block.
func (p *Provider) Subscribe(fn func(ports.ProviderEvent)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	err := p.conn.Close()
	<-p.done
	return err
}

func (p *Provider) call(ctx context.Context, method string, params any, out any) error {
	ch := make(chan response, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ErrClosed)
	}
	p.nextID++
	id := p.nextID
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	p.writeMu.Lock()
	err := websocket.JSON.Send(p.conn, request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	p.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: send: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case resp := <-ch:
		if resp.err != nil {
			return fmt.Errorf("%s: %w", method, resp.err)
		}
		if out == nil || len(resp.result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (p *Provider) readLoop() {
	defer close(p.done)
	for {
		var msg message
		if err := websocket.JSON.Receive(p.conn, &msg); err != nil {
			p.shutdown(err)
			return
		}
		if msg.ID != nil {
			p.deliver(*msg.ID, msg)
			continue
		}
		if msg.Method != "" {
			p.notify(msg)
		}
	}
}

func (p *Provider) deliver(id uint64, msg message) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if !ok {
		p.logger.Debug().Uint64("id", id).Msg("response for unknown request")
		return
	}
	resp := response{result: msg.Result}
	if msg.Error != nil {
		resp.err = msg.Error
	}
	ch <- resp
}

func (p *Provider) notify(msg message) {
	ev := ports.ProviderEvent{Kind: ports.ProviderEventKind(msg.Method)}
	switch ev.Kind {
	case ports.EventAccountsChanged:
		var params []any
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			ev.Accounts = flattenAccounts(params)
		}
	case ports.EventChainChanged:
		var params []string
		if err := json.Unmarshal(msg.Params, &params); err == nil && len(params) > 0 {
			ev.ChainID = params[0]
		} else {
			var id string
			if json.Unmarshal(msg.Params, &id) == nil {
				ev.ChainID = id
			}
		}
	case ports.EventDisconnect:
	default:
		p.logger.Debug().Str("method", msg.Method).Msg("ignoring provider notification")
		return
	}
	p.emit(ev)
}

// shutdown fails every pending call and tells subscribers the provider is
// gone.
func (p *Provider) shutdown(cause error) {
	p.mu.Lock()
	wasClosed := p.closed
	p.closed = true
	pending := p.pending
	p.pending = make(map[uint64]chan response)
	p.mu.Unlock()

	for _, ch := range pending {
		ch <- response{err: ErrClosed}
	}
	if !wasClosed {
		p.logger.Warn().Err(cause).Msg("provider connection dropped")
	}
	p.emit(ports.ProviderEvent{Kind: ports.EventDisconnect})
}

func (p *Provider) emit(ev ports.ProviderEvent) {
	p.mu.Lock()
	subs := make([]func(ports.ProviderEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// flattenAccounts accepts both [["0x.."]] and ["0x.."] parameter shapes.
func flattenAccounts(params []any) []string {
	var out []string
	for _, v := range params {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, a := range t {
				if s, ok := a.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
