// Package topo is the client for the RIC topology service: cell and node
// metadata lookups and the E2 connection watch.
package topo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/onosproject/onos-ric-sdk-go/internal/transport"
	"github.com/onosproject/onos-ric-sdk-go/internal/wire"
)

type Config struct {
	// Endpoint of the topology service. Required.
	Endpoint string

	CAPath     string
	CertPath   string
	KeyPath    string
	SkipVerify bool
}

// rpc is the slice of the wire topo client this package needs; tests
// substitute a fake.
type rpc interface {
	Get(ctx context.Context, id string) (*wire.Object, error)
	List(ctx context.Context, filters *wire.Filters) ([]wire.Object, error)
	Update(ctx context.Context, obj *wire.Object) error
	Watch(ctx context.Context, filters *wire.Filters) (topoStream, error)
}

type topoStream interface {
	Recv() (*wire.TopoEvent, error)
	Close()
}

// wireRPC adapts the concrete wire client to the rpc interface.
type wireRPC struct {
	*wire.TopoClient
}

func (w wireRPC) Watch(ctx context.Context, filters *wire.Filters) (topoStream, error) {
	s, err := w.TopoClient.Watch(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type Client struct {
	channel *transport.Channel
	rpc     rpc
	closed  atomic.Bool
	log     zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("topo: endpoint is required")
	}
	channel, err := transport.Open(cfg.Endpoint, transport.Config{
		CAPath:     cfg.CAPath,
		CertPath:   cfg.CertPath,
		KeyPath:    cfg.KeyPath,
		SkipVerify: cfg.SkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		channel: channel,
		rpc:     wireRPC{wire.NewTopoClient(channel, wire.JSON{})},
		log:     log.With().Str("component", "topo").Logger(),
	}, nil
}

// GetCells returns the cells contained by the given E2 node.
func (c *Client) GetCells(ctx context.Context, nodeID string) ([]Cell, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	objects, err := c.listContained(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	var cells []Cell
	for _, obj := range objects {
		if obj.KindID != kindE2Cell {
			continue
		}
		cell, err := decodeCell(obj)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

// GetCellData reads aspect values attached to a cell, one entry per key,
// nil for keys the cell does not carry. Returns nil if the cell itself is
// unknown.
func (c *Client) GetCellData(ctx context.Context, nodeID, cellGlobalID string, keys []string) ([][]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	entityID, err := c.cellEntityID(ctx, nodeID, cellGlobalID)
	if err != nil {
		return nil, err
	}
	if entityID == "" {
		return nil, nil
	}
	obj, err := c.rpc.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	data := make([][]byte, 0, len(keys))
	for _, k := range keys {
		data = append(data, obj.Aspects[k])
	}
	return data, nil
}

// SetCellData writes aspect values on a cell. A nil value deletes the
// aspect. A write that changes nothing is skipped.
func (c *Client) SetCellData(ctx context.Context, nodeID, cellGlobalID string, data map[string][]byte) error {
	if c.closed.Load() {
		return ErrClientStopped
	}
	entityID, err := c.cellEntityID(ctx, nodeID, cellGlobalID)
	if err != nil {
		return err
	}
	if entityID == "" {
		return fmt.Errorf("topo: cell %s not found under node %s", cellGlobalID, nodeID)
	}
	obj, err := c.rpc.Get(ctx, entityID)
	if err != nil {
		return err
	}
	if obj.Aspects == nil {
		obj.Aspects = make(map[string][]byte)
	}

	changed := 0
	for k, v := range data {
		if v == nil {
			if _, ok := obj.Aspects[k]; ok {
				delete(obj.Aspects, k)
				changed++
			}
			continue
		}
		obj.Aspects[k] = v
		changed++
	}
	if changed == 0 {
		return nil
	}
	return c.rpc.Update(ctx, obj)
}

// WatchE2Connections streams newly available E2 node connections.
func (c *Client) WatchE2Connections(ctx context.Context) (*ConnWatch, error) {
	if c.closed.Load() {
		return nil, ErrClientStopped
	}
	filters := &wire.Filters{
		Kind: &wire.EqualFilter{Value: relationControls},
	}
	stream, err := c.rpc.Watch(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ConnWatch{stream: stream, rpc: c.rpc}, nil
}

func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.channel.Close()
}

func (c *Client) listContained(ctx context.Context, nodeID string) ([]wire.Object, error) {
	filters := &wire.Filters{
		Relation: &wire.RelationFilter{
			SrcID:        nodeID,
			RelationKind: relationContains,
		},
	}
	return c.rpc.List(ctx, filters)
}

// cellEntityID maps a cell global id to its topology entity id; empty if
// the node has no such cell.
func (c *Client) cellEntityID(ctx context.Context, nodeID, cellGlobalID string) (string, error) {
	objects, err := c.listContained(ctx, nodeID)
	if err != nil {
		return "", err
	}
	for _, obj := range objects {
		if obj.KindID != kindE2Cell {
			continue
		}
		cell, err := decodeCell(obj)
		if err != nil {
			return "", err
		}
		if cell.CellGlobalID == cellGlobalID {
			return obj.ID, nil
		}
	}
	return "", nil
}

func decodeCell(obj wire.Object) (Cell, error) {
	var cell Cell
	raw, ok := obj.Aspects[aspectE2Cell]
	if !ok {
		return cell, fmt.Errorf("topo: object %s has no %s aspect", obj.ID, aspectE2Cell)
	}
	if err := json.Unmarshal(raw, &cell); err != nil {
		return cell, fmt.Errorf("topo: failed to decode cell aspect of %s: %w", obj.ID, err)
	}
	return cell, nil
}

// ConnWatch follows controls-relation events and resolves each added node.
type ConnWatch struct {
	stream topoStream
	rpc    rpc
}

// Recv blocks for the next E2 node connection. Relation events other than
// ADDED/NONE are skipped.
func (w *ConnWatch) Recv(ctx context.Context) (NodeEvent, error) {
	for {
		ev, err := w.stream.Recv()
		if err != nil {
			return NodeEvent{}, err
		}
		if ev.Type != wire.TopoEventAdded && ev.Type != wire.TopoEventNone {
			continue
		}
		nodeID := ev.Object.TgtEntityID
		obj, err := w.rpc.Get(ctx, nodeID)
		if err != nil {
			return NodeEvent{}, err
		}
		raw, ok := obj.Aspects[aspectE2Node]
		if !ok {
			continue
		}
		var node Node
		if err := json.Unmarshal(raw, &node); err != nil {
			return NodeEvent{}, fmt.Errorf("topo: failed to decode node aspect of %s: %w", nodeID, err)
		}
		return NodeEvent{NodeID: nodeID, Node: node}, nil
	}
}

func (w *ConnWatch) Close() {
	w.stream.Close()
}
