// Package e2 is the client SDK for the E2 control plane: bounded-retry
// control and subscription operations plus relocation-transparent
// indication streaming.
package e2

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/onosproject/onos-ric-sdk-go/internal/retrier"
	"github.com/onosproject/onos-ric-sdk-go/internal/transport"
	"github.com/onosproject/onos-ric-sdk-go/internal/wire"
)

// DefaultEndpoint is the sidecar proxy every RIC pod fronts the
// termination cluster with.
const DefaultEndpoint = "localhost:5151"

type Config struct {
	// AppID identifies the xApp to the control plane. Required.
	AppID string
	// InstanceID distinguishes replicas of the same xApp. Defaults to the
	// pod hostname.
	InstanceID string
	// Endpoint of the E2 termination (or its proxy). Defaults to
	// DefaultEndpoint.
	Endpoint string

	CAPath     string
	CertPath   string
	KeyPath    string
	SkipVerify bool

	// RetryAttempts and RetryDelay bound the retry policy for control,
	// subscribe and unsubscribe. Defaults: 20 attempts, 100ms base delay.
	RetryAttempts uint
	RetryDelay    time.Duration

	// Encoding tag stamped on request headers. Defaults to EncodingProto.
	Encoding Encoding
}

// Client is the E2 facade. All operations fail with ErrClientStopped once
// Close has been called.
type Client struct {
	cfg      Config
	channel  *transport.Channel
	rpc      rpc
	resolver Resolver
	streams  StreamOpener
	retrier  *retrier.Retrier
	// ctx scopes background work (unacknowledged control requests) to the
	// client's lifetime; Close cancels it
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	log    zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID == "" {
		return nil, errors.New("e2: app id is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = instanceID()
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingProto
	}
	tcfg := transport.Config{
		CAPath:     cfg.CAPath,
		CertPath:   cfg.CertPath,
		KeyPath:    cfg.KeyPath,
		SkipVerify: cfg.SkipVerify,
	}
	channel, err := transport.Open(cfg.Endpoint, tcfg)
	if err != nil {
		return nil, err
	}
	codec := wire.JSON{}
	wc := wire.NewClient(channel, codec)
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:      cfg,
		channel:  channel,
		rpc:      wc,
		resolver: &rpcResolver{rpc: wc},
		streams:  &rpcStreamOpener{opener: wire.NewStreamOpener(codec, tcfg), instance: cfg.InstanceID},
		retrier:  retrier.New(cfg.RetryAttempts, cfg.RetryDelay),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With().Str("component", "e2").Str("app", cfg.AppID).Logger(),
	}, nil
}

// Control sends a control message to nodeID and returns the outcome
// payload. With AckModeNoAck the request is issued in the background and
// Control returns immediately with no outcome.
func (c *Client) Control(ctx context.Context, nodeID NodeID, sm ServiceModel, header, message []byte, ack AckMode) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	req := &wire.ControlRequest{
		Headers: c.headers(nodeID, sm),
		Header:  header,
		Payload: message,
		AckMode: string(ack),
	}
	if ack == AckModeNoAck {
		go func() {
			if _, err := c.doControl(c.ctx, req); err != nil {
				c.log.Warn().Err(err).Str("node", string(nodeID)).Msg("unacknowledged control request failed")
			}
		}()
		return nil, nil
	}
	return c.doControl(ctx, req)
}

func (c *Client) doControl(ctx context.Context, req *wire.ControlRequest) ([]byte, error) {
	var outcome []byte
	err := c.retrier.Do(ctx, "control", func(ctx context.Context) error {
		resp, err := c.rpc.Control(ctx, req)
		if err != nil {
			return err
		}
		outcome = resp.Outcome
		return nil
	})
	if err != nil {
		return nil, rpcError("control", err)
	}
	return outcome, nil
}

type subscribeOptions struct {
	id SubscriptionID
}

type SubscribeOption func(*subscribeOptions)

// WithSubscriptionID uses a caller-assigned subscription id instead of a
// generated one.
func WithSubscriptionID(id SubscriptionID) SubscribeOption {
	return func(o *subscribeOptions) { o.id = id }
}

// Subscribe registers a subscription with the control plane and returns a
// live session for it. The caller owns the session and must Close it.
func (c *Client) Subscribe(ctx context.Context, nodeID NodeID, sm ServiceModel, trigger []byte, actions []Action, opts ...SubscribeOption) (*Session, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	id := o.id
	if id == "" {
		id = SubscriptionID(uuid.NewString())
	}

	req := &wire.SubscribeRequest{
		Headers:       c.headers(nodeID, sm),
		TransactionID: string(id),
		Subscription: wire.SubscriptionSpec{
			EventTrigger: trigger,
			Actions:      actionSpecs(actions),
		},
	}
	err := c.retrier.Do(ctx, "subscribe", func(ctx context.Context) error {
		return c.rpc.Subscribe(ctx, req)
	})
	if err != nil {
		return nil, rpcError("subscribe", err)
	}
	c.log.Info().Str("subscription", string(id)).Str("node", string(nodeID)).Msg("subscription registered")
	return newSession(c.cfg.AppID, c.cfg.InstanceID, id, c.resolver, c.streams), nil
}

// Unsubscribe removes a subscription from the control plane. It does not
// close sessions created for it; close those separately.
func (c *Client) Unsubscribe(ctx context.Context, id SubscriptionID) error {
	if c.closed.Load() {
		return ErrClientStopped
	}
	req := &wire.UnsubscribeRequest{
		Headers:       c.headers("", ServiceModel{}),
		TransactionID: string(id),
	}
	err := c.retrier.Do(ctx, "unsubscribe", func(ctx context.Context) error {
		return c.rpc.Unsubscribe(ctx, req)
	})
	if err != nil {
		return rpcError("unsubscribe", err)
	}
	return nil
}

// ListNodes enumerates currently connected E2 nodes, optionally filtered
// to those advertising the service model with the given object id. Single
// attempt: the listing is cheap for the caller to re-issue.
func (c *Client) ListNodes(ctx context.Context, oid string) ([]Node, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	records, err := c.rpc.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(records))
	for _, rec := range records {
		node := Node{ID: NodeID(rec.NodeID)}
		for _, sm := range rec.ServiceModels {
			node.ServiceModels = append(node.ServiceModels, NodeServiceModel{
				OID:     sm.OID,
				Name:    sm.Name,
				Version: sm.Version,
			})
		}
		if oid != "" && !node.Supports(oid) {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Close cancels background work and releases the client's channel.
// Idempotent. Sessions created by Subscribe stay up until closed
// individually; their streams run on their own channels.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	if c.channel == nil {
		return nil
	}
	return c.channel.Close()
}

func (c *Client) headers(nodeID NodeID, sm ServiceModel) wire.RequestHeaders {
	return wire.RequestHeaders{
		AppID:               c.cfg.AppID,
		AppInstanceID:       c.cfg.InstanceID,
		NodeID:              string(nodeID),
		ServiceModelName:    sm.Name,
		ServiceModelVersion: sm.Version,
		Encoding:            string(c.cfg.Encoding),
	}
}

func actionSpecs(actions []Action) []wire.ActionSpec {
	specs := make([]wire.ActionSpec, 0, len(actions))
	for _, a := range actions {
		spec := wire.ActionSpec{
			ID:         a.ID,
			Type:       string(a.Type),
			Definition: a.Definition,
		}
		if a.SubsequentAction != nil {
			spec.Subsequent = &wire.SubsequentActionSpec{
				Type:             string(a.SubsequentAction.Type),
				TimeToWaitMillis: a.SubsequentAction.TimeToWait.Milliseconds(),
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// rpcError maps a retrier result onto the public taxonomy: exhausted
// transient attempts keep their identity, context errors pass through, and
// everything else was a deliberate answer from the peer.
func rpcError(op string, err error) error {
	var ex *retrier.ExhaustedError
	if errors.As(err, &ex) {
		return &ExhaustedError{Op: op, Attempts: ex.Attempts, Last: ex.Last}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProtocolError{Op: op, Cause: err}
}

func instanceID() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
