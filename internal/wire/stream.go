package wire

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/onosproject/onos-ric-sdk-go/internal/transport"
)

// StreamOpener dials termination endpoints and opens indication streams
// against them. Each binding gets its own channel: the endpoint serving a
// subscription moves, so connections are per-binding, not pooled.
type StreamOpener struct {
	codec Codec
	tcfg  transport.Config
}

func NewStreamOpener(codec Codec, tcfg transport.Config) *StreamOpener {
	return &StreamOpener{codec: codec, tcfg: tcfg}
}

func (o *StreamOpener) Open(ctx context.Context, addr string, req *StreamRequest) (*IndicationStream, error) {
	ch, err := transport.Open(addr, o.tcfg)
	if err != nil {
		return nil, err
	}
	b, err := o.codec.Encode(req)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to encode stream request: %w", err)
	}
	s, err := ch.OpenStream(ctx, methodOpenStream, b)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &IndicationStream{s: s, ch: ch, codec: o.codec}, nil
}

// IndicationStream is one server-streaming call bound to one termination
// endpoint. Closing it tears down the underlying channel as well.
type IndicationStream struct {
	s     *transport.Stream
	ch    *transport.Channel
	codec Codec
}

func (i *IndicationStream) Recv() (*IndicationMessage, error) {
	frame, err := i.s.Recv()
	if err != nil {
		return nil, err
	}
	msg := new(IndicationMessage)
	if err := i.codec.Decode(frame, msg); err != nil {
		return nil, fmt.Errorf("failed to decode indication: %w", err)
	}
	return msg, nil
}

func (i *IndicationStream) Close() {
	i.s.Close()
	i.ch.Close()
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
