package wire

import (
	"context"
	"fmt"

	"github.com/onosproject/onos-ric-sdk-go/internal/transport"
)

const (
	methodControl         = "/onos.e2t.e2.v1beta1.ControlService/Control"
	methodSubscribe       = "/onos.e2t.e2.v1beta1.SubscriptionService/Subscribe"
	methodUnsubscribe     = "/onos.e2t.e2.v1beta1.SubscriptionService/Unsubscribe"
	methodWatchTasks      = "/onos.e2sub.task.v1beta1.TaskService/WatchTasks"
	methodGetTermination  = "/onos.e2sub.endpoint.v1beta1.RegistryService/GetTermination"
	methodOpenStream      = "/onos.e2t.stream.v1beta1.StreamService/Open"
	methodListConnections = "/onos.e2t.admin.v1beta1.AdminService/ListConnections"
)

// Client speaks the E2 termination control-plane services over one channel.
type Client struct {
	ch    *transport.Channel
	codec Codec
}

func NewClient(ch *transport.Channel, codec Codec) *Client {
	return &Client{ch: ch, codec: codec}
}

func (c *Client) Control(ctx context.Context, req *ControlRequest) (*ControlResponse, error) {
	resp := new(ControlResponse)
	if err := c.invoke(ctx, methodControl, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) error {
	return c.invoke(ctx, methodSubscribe, req, new(SubscribeResponse))
}

func (c *Client) Unsubscribe(ctx context.Context, req *UnsubscribeRequest) error {
	return c.invoke(ctx, methodUnsubscribe, req, new(UnsubscribeResponse))
}

// WatchTasks opens the control plane's task event stream. The stream is
// global; callers filter by subscription id.
func (c *Client) WatchTasks(ctx context.Context, subscriptionID string) (*TaskStream, error) {
	b, err := c.codec.Encode(&WatchTasksRequest{SubscriptionID: subscriptionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode watch request: %w", err)
	}
	s, err := c.ch.OpenStream(ctx, methodWatchTasks, b)
	if err != nil {
		return nil, err
	}
	return &TaskStream{s: s, codec: c.codec}, nil
}

func (c *Client) GetTermination(ctx context.Context, endpointID string) (*GetTerminationResponse, error) {
	resp := new(GetTerminationResponse)
	if err := c.invoke(ctx, methodGetTermination, &GetTerminationRequest{EndpointID: endpointID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListConnections drains the connection-listing stream into a slice. The
// listing is finite and cheap to re-issue, so no retry wrapping here.
func (c *Client) ListConnections(ctx context.Context) ([]ConnectionRecord, error) {
	b, err := c.codec.Encode(&ListConnectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to encode list request: %w", err)
	}
	s, err := c.ch.OpenStream(ctx, methodListConnections, b)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var records []ConnectionRecord
	for {
		frame, err := s.Recv()
		if err != nil {
			if isEOF(err) {
				return records, nil
			}
			return nil, err
		}
		var rec ConnectionRecord
		if err := c.codec.Decode(frame, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode connection record: %w", err)
		}
		records = append(records, rec)
	}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	b, err := c.codec.Encode(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	out, err := c.ch.Invoke(ctx, method, b)
	if err != nil {
		return err
	}
	if err := c.codec.Decode(out, resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// TaskStream delivers subscription task lifecycle events.
type TaskStream struct {
	s     *transport.Stream
	codec Codec
}

func (t *TaskStream) Recv() (*TaskEvent, error) {
	frame, err := t.s.Recv()
	if err != nil {
		return nil, err
	}
	ev := new(TaskEvent)
	if err := t.codec.Decode(frame, ev); err != nil {
		return nil, fmt.Errorf("failed to decode task event: %w", err)
	}
	return ev, nil
}

func (t *TaskStream) Close() {
	t.s.Close()
}
