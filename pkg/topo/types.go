package topo

import "errors"

// ErrClientStopped is returned by every operation attempted after Close.
var ErrClientStopped = errors.New("topo: client is stopped")

// Cell is the E2Cell aspect of a topology entity.
type Cell struct {
	CellGlobalID string `json:"cell_global_id"`
	CellObjectID string `json:"cell_object_id"`
	CellType     string `json:"cell_type,omitempty"`
	PCI          uint32 `json:"pci,omitempty"`
	ARFCN        uint32 `json:"arfcn,omitempty"`
}

// ServiceModelInfo describes one RAN function a node supports.
type ServiceModelInfo struct {
	OID     string `json:"oid"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Node is the E2Node aspect of a topology entity.
type Node struct {
	ServiceModels map[string]ServiceModelInfo `json:"service_models,omitempty"`
}

// NodeEvent is one newly available E2 node connection.
type NodeEvent struct {
	NodeID string
	Node   Node
}

const (
	kindE2Cell       = "e2cell"
	relationContains = "contains"
	relationControls = "controls"

	aspectE2Cell = "onos.topo.E2Cell"
	aspectE2Node = "onos.topo.E2Node"
)
