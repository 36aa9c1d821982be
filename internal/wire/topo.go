package wire

import (
	"context"
	"fmt"

	"github.com/onosproject/onos-ric-sdk-go/internal/transport"
)

const (
	methodTopoGet    = "/onos.topo.Topo/Get"
	methodTopoList   = "/onos.topo.Topo/List"
	methodTopoUpdate = "/onos.topo.Topo/Update"
	methodTopoWatch  = "/onos.topo.Topo/Watch"
)

type RelationFilter struct {
	SrcID        string `json:"src_id"`
	RelationKind string `json:"relation_kind"`
	TargetKind   string `json:"target_kind"`
}

type EqualFilter struct {
	Value string `json:"value"`
}

type Filters struct {
	Relation *RelationFilter `json:"relation_filter,omitempty"`
	Kind     *EqualFilter    `json:"kind_filter,omitempty"`
}

// Object is a topology entity or relation. Aspects hold opaque typed
// payloads keyed by aspect type.
type Object struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	KindID      string            `json:"kind_id"`
	Aspects     map[string][]byte `json:"aspects,omitempty"`
	SrcEntityID string            `json:"src_entity_id,omitempty"`
	TgtEntityID string            `json:"tgt_entity_id,omitempty"`
}

const (
	ObjectTypeEntity   = "entity"
	ObjectTypeRelation = "relation"
)

type GetRequest struct {
	ID string `json:"id"`
}

type GetResponse struct {
	Object Object `json:"object"`
}

type ListRequest struct {
	Filters *Filters `json:"filters,omitempty"`
}

type ListResponse struct {
	Objects []Object `json:"objects"`
}

type UpdateRequest struct {
	Object Object `json:"object"`
}

type UpdateResponse struct{}

type WatchRequest struct {
	Filters *Filters `json:"filters,omitempty"`
}

type TopoEventType string

const (
	TopoEventNone    TopoEventType = "NONE"
	TopoEventAdded   TopoEventType = "ADDED"
	TopoEventUpdated TopoEventType = "UPDATED"
	TopoEventRemoved TopoEventType = "REMOVED"
)

type TopoEvent struct {
	Type   TopoEventType `json:"type"`
	Object Object        `json:"object"`
}

type WatchResponse struct {
	Event TopoEvent `json:"event"`
}

// TopoClient speaks the topology service over one channel.
type TopoClient struct {
	ch    *transport.Channel
	codec Codec
}

func NewTopoClient(ch *transport.Channel, codec Codec) *TopoClient {
	return &TopoClient{ch: ch, codec: codec}
}

func (c *TopoClient) Get(ctx context.Context, id string) (*Object, error) {
	b, err := c.codec.Encode(&GetRequest{ID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to encode get request: %w", err)
	}
	out, err := c.ch.Invoke(ctx, methodTopoGet, b)
	if err != nil {
		return nil, err
	}
	resp := new(GetResponse)
	if err := c.codec.Decode(out, resp); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	return &resp.Object, nil
}

func (c *TopoClient) List(ctx context.Context, filters *Filters) ([]Object, error) {
	b, err := c.codec.Encode(&ListRequest{Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to encode list request: %w", err)
	}
	out, err := c.ch.Invoke(ctx, methodTopoList, b)
	if err != nil {
		return nil, err
	}
	resp := new(ListResponse)
	if err := c.codec.Decode(out, resp); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return resp.Objects, nil
}

func (c *TopoClient) Update(ctx context.Context, obj *Object) error {
	b, err := c.codec.Encode(&UpdateRequest{Object: *obj})
	if err != nil {
		return fmt.Errorf("failed to encode update request: %w", err)
	}
	out, err := c.ch.Invoke(ctx, methodTopoUpdate, b)
	if err != nil {
		return err
	}
	return c.codec.Decode(out, new(UpdateResponse))
}

func (c *TopoClient) Watch(ctx context.Context, filters *Filters) (*TopoStream, error) {
	b, err := c.codec.Encode(&WatchRequest{Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to encode watch request: %w", err)
	}
	s, err := c.ch.OpenStream(ctx, methodTopoWatch, b)
	if err != nil {
		return nil, err
	}
	return &TopoStream{s: s, codec: c.codec}, nil
}

type TopoStream struct {
	s     *transport.Stream
	codec Codec
}

func (t *TopoStream) Recv() (*TopoEvent, error) {
	frame, err := t.s.Recv()
	if err != nil {
		return nil, err
	}
	resp := new(WatchResponse)
	if err := t.codec.Decode(frame, resp); err != nil {
		return nil, fmt.Errorf("failed to decode topo event: %w", err)
	}
	return &resp.Event, nil
}

func (t *TopoStream) Close() {
	t.s.Close()
}
