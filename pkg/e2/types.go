package e2

import (
	"fmt"
	"time"
)

type NodeID string

type SubscriptionID string

type EndpointID string

type TaskID string

// ServiceModel identifies the RAN function the request targets.
type ServiceModel struct {
	Name    string
	Version string
}

type Encoding string

const (
	EncodingProto   Encoding = "PROTO"
	EncodingASN1PER Encoding = "ASN1_PER"
)

type AckMode string

const (
	AckModeAck   AckMode = "ACK"
	AckModeNoAck AckMode = "NO_ACK"
)

type ActionType string

const (
	ActionTypeReport ActionType = "REPORT"
	ActionTypeInsert ActionType = "INSERT"
	ActionTypePolicy ActionType = "POLICY"
)

type SubsequentActionType string

const (
	SubsequentActionContinue SubsequentActionType = "CONTINUE"
	SubsequentActionWait     SubsequentActionType = "WAIT"
)

type SubsequentAction struct {
	Type       SubsequentActionType
	TimeToWait time.Duration
}

// Action is one entry of a subscription's ordered action list. Definition
// is an opaque service-model payload.
type Action struct {
	ID               int32
	Type             ActionType
	Definition       []byte
	SubsequentAction *SubsequentAction
}

type TaskStatus string

const (
	TaskStatusNone    TaskStatus = "NONE"
	TaskStatusCreated TaskStatus = "CREATED"
	TaskStatusActive  TaskStatus = "ACTIVE"
	TaskStatusFailed  TaskStatus = "FAILED"
	TaskStatusRemoved TaskStatus = "REMOVED"
)

// TaskEvent describes where the control plane currently serves a
// subscription. Emitted by the resolver's task watch; read-only here.
type TaskEvent struct {
	TaskID         TaskID
	SubscriptionID SubscriptionID
	EndpointID     EndpointID
	Status         TaskStatus
	FailureDetail  string
}

// Endpoint is the resolved address of one termination instance. The
// mapping is transient, relocation invalidates it, so it is never cached.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Indication is one message delivered over an active subscription stream.
type Indication struct {
	Header  []byte
	Payload []byte
}

type NodeServiceModel struct {
	OID     string
	Name    string
	Version string
}

// Node is one currently connected E2 node as reported by the connection
// listing.
type Node struct {
	ID            NodeID
	ServiceModels []NodeServiceModel
}

// Supports reports whether the node advertises the service model with the
// given object id.
func (n Node) Supports(oid string) bool {
	for _, sm := range n.ServiceModels {
		if sm.OID == oid {
			return true
		}
	}
	return false
}
