// Package wire defines the envelope messages exchanged with the RIC
// control plane and the typed clients that move them over a transport
// channel. Encoding is behind the Codec interface; the default codec is
// JSON, a deployment that talks to a proto-only endpoint plugs its own in.
package wire

// RequestHeaders is carried by every control-plane request.
type RequestHeaders struct {
	AppID               string `json:"app_id"`
	AppInstanceID       string `json:"app_instance_id"`
	NodeID              string `json:"e2_node_id"`
	ServiceModelName    string `json:"service_model_name"`
	ServiceModelVersion string `json:"service_model_version"`
	Encoding            string `json:"encoding"`
}

type ControlRequest struct {
	Headers RequestHeaders `json:"headers"`
	Header  []byte         `json:"header"`
	Payload []byte         `json:"payload"`
	AckMode string         `json:"ack_mode"`
}

type ControlResponse struct {
	Outcome []byte `json:"outcome"`
}

type SubsequentActionSpec struct {
	Type             string `json:"type"`
	TimeToWaitMillis int64  `json:"time_to_wait_millis"`
}

type ActionSpec struct {
	ID         int32                 `json:"id"`
	Type       string                `json:"type"`
	Definition []byte                `json:"definition,omitempty"`
	Subsequent *SubsequentActionSpec `json:"subsequent_action,omitempty"`
}

type SubscriptionSpec struct {
	EventTrigger []byte       `json:"event_trigger"`
	Actions      []ActionSpec `json:"actions"`
}

type SubscribeRequest struct {
	Headers       RequestHeaders   `json:"headers"`
	TransactionID string           `json:"transaction_id"`
	Subscription  SubscriptionSpec `json:"subscription"`
}

type SubscribeResponse struct{}

type UnsubscribeRequest struct {
	Headers       RequestHeaders `json:"headers"`
	TransactionID string         `json:"transaction_id"`
}

type UnsubscribeResponse struct{}

type WatchTasksRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

// TaskEvent mirrors the control plane's subscription-task record. Status
// values match pkg/e2's TaskStatus strings.
type TaskEvent struct {
	TaskID         string `json:"task_id"`
	SubscriptionID string `json:"subscription_id"`
	EndpointID     string `json:"endpoint_id"`
	Status         string `json:"status"`
	FailureDetail  string `json:"failure_detail,omitempty"`
}

type GetTerminationRequest struct {
	EndpointID string `json:"endpoint_id"`
}

type GetTerminationResponse struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

type StreamRequest struct {
	AppID          string `json:"app_id"`
	AppInstanceID  string `json:"app_instance_id"`
	SubscriptionID string `json:"subscription_id"`
}

type IndicationMessage struct {
	Header  []byte `json:"header"`
	Payload []byte `json:"payload"`
}

type ListConnectionsRequest struct{}

type ServiceModelInfo struct {
	OID     string `json:"oid"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ConnectionRecord struct {
	NodeID        string             `json:"e2_node_id"`
	ServiceModels []ServiceModelInfo `json:"service_models,omitempty"`
}
