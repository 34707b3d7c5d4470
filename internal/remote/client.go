// Package remote reaches the ledgers and indexers over NATS request/reply.
//
// Each call is a JSON request on "<prefix>.<service id>.<method>" answered
// with a JSON envelope:
//
//	{"ok": <result>}                 success
//	{"err": <ledger.TransferError>}  ledger rejection
//	{"error": "<message>"}           any other failure
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
)

// DefaultSubjectPrefix prefixes every request subject.
const DefaultSubjectPrefix = "tokenswap"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// ErrRemote is wrapped by failures the remote service reported as plain
// errors rather than ledger rejections.
var ErrRemote = errors.New("remote service error")

// Requester sends a request and waits for its reply. *nats.Conn implements it.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Config holds NATS connection settings.
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Dial connects to NATS.
func Dial(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Client issues requests to the external services and builds typed
// clients for them.
type Client struct {
	conn    Requester
	prefix  string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) ClientOption {
	return func(c *Client) { c.prefix = prefix }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient wraps conn.
func NewClient(conn Requester, opts ...ClientOption) *Client {
	c := &Client{conn: conn, prefix: DefaultSubjectPrefix, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect implements ledger.Connector.
func (c *Client) Connect(ids ledger.ServiceIDs) ledger.Services {
	return ledger.Services{
		OldLedger:  &OldLedger{c: c, id: ids.OldLedger},
		NewLedger:  &NewLedger{c: c, id: ids.NewLedger},
		OldIndexer: &OldIndexer{c: c, id: ids.OldIndexer},
		NewIndexer: &NewIndexer{c: c, id: ids.NewIndexer},
	}
}

// Subject returns the subject of method on service id.
func (c *Client) Subject(id account.Principal, method string) string {
	return c.prefix + "." + id.String() + "." + method
}

type envelope struct {
	Ok    json.RawMessage       `json:"ok,omitempty"`
	Err   *ledger.TransferError `json:"err,omitempty"`
	Error string                `json:"error,omitempty"`
}

func (c *Client) call(ctx context.Context, id account.Principal, method string, req, resp any) error {
	subject := c.Subject(id, method)

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", subject, err)
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("%s: malformed reply: %w", subject, err)
	}
	switch {
	case env.Err != nil:
		return env.Err
	case env.Error != "":
		return fmt.Errorf("%s: %w: %s", subject, ErrRemote, env.Error)
	case resp == nil:
		return nil
	case len(env.Ok) == 0:
		return fmt.Errorf("%s: empty reply", subject)
	}
	if err := json.Unmarshal(env.Ok, resp); err != nil {
		return fmt.Errorf("%s: malformed result: %w", subject, err)
	}
	return nil
}
