package topo

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onosproject/onos-ric-sdk-go/internal/wire"
)

type fakeTopoRPC struct {
	objects     map[string]*wire.Object
	listed      []wire.Object
	lastFilters *wire.Filters
	updated     []*wire.Object
	events      []*wire.TopoEvent
}

func (f *fakeTopoRPC) Get(_ context.Context, id string) (*wire.Object, error) {
	obj, ok := f.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s not found", id)
	}
	cp := *obj
	return &cp, nil
}

func (f *fakeTopoRPC) List(_ context.Context, filters *wire.Filters) ([]wire.Object, error) {
	f.lastFilters = filters
	return f.listed, nil
}

func (f *fakeTopoRPC) Update(_ context.Context, obj *wire.Object) error {
	f.updated = append(f.updated, obj)
	return nil
}

func (f *fakeTopoRPC) Watch(context.Context, *wire.Filters) (topoStream, error) {
	return &fakeTopoStream{events: f.events}, nil
}

type fakeTopoStream struct {
	events []*wire.TopoEvent
}

func (f *fakeTopoStream) Recv() (*wire.TopoEvent, error) {
	if len(f.events) == 0 {
		return nil, context.Canceled
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func (f *fakeTopoStream) Close() {}

func testClient(rpc rpc) *Client {
	return &Client{rpc: rpc, log: zerolog.Nop()}
}

func cellObject(id, globalID string) wire.Object {
	aspect, _ := json.Marshal(Cell{CellGlobalID: globalID, CellObjectID: id, PCI: 7})
	return wire.Object{
		ID:      id,
		Type:    wire.ObjectTypeEntity,
		KindID:  "e2cell",
		Aspects: map[string][]byte{"onos.topo.E2Cell": aspect},
	}
}

func TestGetCells(t *testing.T) {
	rpc := &fakeTopoRPC{listed: []wire.Object{
		cellObject("cell-1", "g1"),
		{ID: "antenna-1", Type: wire.ObjectTypeEntity, KindID: "antenna"},
		cellObject("cell-2", "g2"),
	}}
	c := testClient(rpc)

	cells, err := c.GetCells(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "g1", cells[0].CellGlobalID)
	assert.Equal(t, uint32(7), cells[0].PCI)

	require.NotNil(t, rpc.lastFilters)
	require.NotNil(t, rpc.lastFilters.Relation)
	assert.Equal(t, "n1", rpc.lastFilters.Relation.SrcID)
	assert.Equal(t, "contains", rpc.lastFilters.Relation.RelationKind)
}

func TestGetCellDataUnknownCell(t *testing.T) {
	c := testClient(&fakeTopoRPC{})

	data, err := c.GetCellData(context.Background(), "n1", "missing", []string{"k"})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGetCellDataMissingKeysAreNil(t *testing.T) {
	obj := cellObject("cell-1", "g1")
	obj.Aspects["custom.Data"] = []byte(`{"v":1}`)
	rpc := &fakeTopoRPC{
		listed:  []wire.Object{obj},
		objects: map[string]*wire.Object{"cell-1": &obj},
	}
	c := testClient(rpc)

	data, err := c.GetCellData(context.Background(), "n1", "g1", []string{"custom.Data", "absent"})
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, []byte(`{"v":1}`), data[0])
	assert.Nil(t, data[1])
}

func TestSetCellData(t *testing.T) {
	obj := cellObject("cell-1", "g1")
	obj.Aspects["drop.Me"] = []byte(`1`)
	rpc := &fakeTopoRPC{
		listed:  []wire.Object{obj},
		objects: map[string]*wire.Object{"cell-1": &obj},
	}
	c := testClient(rpc)

	err := c.SetCellData(context.Background(), "n1", "g1", map[string][]byte{
		"new.Key": []byte(`2`),
		"drop.Me": nil,
	})
	require.NoError(t, err)
	require.Len(t, rpc.updated, 1)
	assert.Equal(t, []byte(`2`), rpc.updated[0].Aspects["new.Key"])
	assert.NotContains(t, rpc.updated[0].Aspects, "drop.Me")
}

func TestSetCellDataNoChangeSkipsUpdate(t *testing.T) {
	obj := cellObject("cell-1", "g1")
	rpc := &fakeTopoRPC{
		listed:  []wire.Object{obj},
		objects: map[string]*wire.Object{"cell-1": &obj},
	}
	c := testClient(rpc)

	// deleting an aspect that is not there changes nothing
	err := c.SetCellData(context.Background(), "n1", "g1", map[string][]byte{"absent": nil})
	require.NoError(t, err)
	assert.Empty(t, rpc.updated)
}

func TestSetCellDataUnknownCell(t *testing.T) {
	c := testClient(&fakeTopoRPC{})

	err := c.SetCellData(context.Background(), "n1", "missing", map[string][]byte{"k": []byte(`1`)})
	assert.ErrorContains(t, err, "not found")
}

func TestWatchE2Connections(t *testing.T) {
	nodeAspect, _ := json.Marshal(Node{ServiceModels: map[string]ServiceModelInfo{
		"1.2.3": {OID: "1.2.3", Name: "kpm", Version: "v2"},
	}})
	rpc := &fakeTopoRPC{
		objects: map[string]*wire.Object{
			"n1": {ID: "n1", Type: wire.ObjectTypeEntity, Aspects: map[string][]byte{"onos.topo.E2Node": nodeAspect}},
			"n2": {ID: "n2", Type: wire.ObjectTypeEntity},
		},
		events: []*wire.TopoEvent{
			{Type: wire.TopoEventRemoved, Object: wire.Object{Type: wire.ObjectTypeRelation, TgtEntityID: "n1"}},
			{Type: wire.TopoEventAdded, Object: wire.Object{Type: wire.ObjectTypeRelation, TgtEntityID: "n2"}},
			{Type: wire.TopoEventAdded, Object: wire.Object{Type: wire.ObjectTypeRelation, TgtEntityID: "n1"}},
		},
	}
	c := testClient(rpc)

	w, err := c.WatchE2Connections(context.Background())
	require.NoError(t, err)
	defer w.Close()

	// the REMOVED event and the node without an E2Node aspect are skipped
	ev, err := w.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n1", ev.NodeID)
	assert.Equal(t, "kpm", ev.Node.ServiceModels["1.2.3"].Name)

	_, err = w.Recv(context.Background())
	assert.Error(t, err)
}

func TestOperationsFailAfterClose(t *testing.T) {
	c := testClient(&fakeTopoRPC{})
	c.closed.Store(true)

	_, err := c.GetCells(context.Background(), "n1")
	assert.ErrorIs(t, err, ErrClientStopped)
	_, err = c.GetCellData(context.Background(), "n1", "g1", nil)
	assert.ErrorIs(t, err, ErrClientStopped)
	assert.ErrorIs(t, c.SetCellData(context.Background(), "n1", "g1", nil), ErrClientStopped)
	_, err = c.WatchE2Connections(context.Background())
	assert.ErrorIs(t, err, ErrClientStopped)
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
