// Package transport owns the gRPC channels the SDK talks over. A channel
// moves opaque request/response frames; what the frames contain is the wire
// package's business.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Config carries the TLS material for a channel. With any path missing the
// channel dials with insecure credentials, matching the sidecar-proxy
// deployment where the proxy terminates TLS.
type Config struct {
	CAPath     string
	CertPath   string
	KeyPath    string
	SkipVerify bool
}

type Channel struct {
	conn *grpc.ClientConn
}

// Open creates a channel to addr ("host:port"). Dialing is lazy; the first
// call establishes the connection.
func Open(addr string, cfg Config) (*Channel, error) {
	creds, err := cfg.credentials()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel to %s: %w", addr, err)
	}
	return &Channel{conn: conn}, nil
}

func (cfg Config) credentials() (credentials.TransportCredentials, error) {
	if cfg.CAPath == "" || cfg.CertPath == "" || cfg.KeyPath == "" {
		return insecure.NewCredentials(), nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key pair: %w", err)
	}
	ca, err := os.ReadFile(cfg.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ca certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("no usable certificates in %s", cfg.CAPath)
	}
	return credentials.NewTLS(&tls.Config{
		Certificates:       []tls.Certificate{cert},
		RootCAs:            pool,
		InsecureSkipVerify: cfg.SkipVerify,
	}), nil
}

// Invoke issues a unary call carrying req and returns the response frame.
func (c *Channel) Invoke(ctx context.Context, method string, req []byte) ([]byte, error) {
	in := rawMessage(req)
	var out rawMessage
	if err := c.conn.Invoke(ctx, method, &in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenStream starts a server-streaming call carrying req. The returned
// stream stays open until Close or until the parent context is cancelled.
func (c *Channel) OpenStream(ctx context.Context, method string, req []byte) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	desc := &grpc.StreamDesc{
		StreamName:    streamName(method),
		ServerStreams: true,
	}
	cs, err := c.conn.NewStream(ctx, desc, method)
	if err != nil {
		cancel()
		return nil, err
	}
	in := rawMessage(req)
	if err := cs.SendMsg(&in); err != nil {
		cancel()
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, err
	}
	return &Stream{cs: cs, cancel: cancel}, nil
}

func (c *Channel) Close() error {
	return c.conn.Close()
}

type Stream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

// Recv blocks for the next response frame. It returns io.EOF when the
// server finishes the stream and a Canceled status after Close.
func (s *Stream) Recv() ([]byte, error) {
	var m rawMessage
	if err := s.cs.RecvMsg(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Stream) Close() {
	s.cancel()
}

func streamName(method string) string {
	if i := strings.LastIndexByte(method, '/'); i >= 0 {
		return method[i+1:]
	}
	return method
}
