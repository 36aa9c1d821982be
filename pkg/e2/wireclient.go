package e2

import (
	"context"

	"github.com/onosproject/onos-ric-sdk-go/internal/wire"
)

// rpc is the slice of the wire client the facade needs. Declared here so
// tests can substitute a fake control plane.
type rpc interface {
	Control(ctx context.Context, req *wire.ControlRequest) (*wire.ControlResponse, error)
	Subscribe(ctx context.Context, req *wire.SubscribeRequest) error
	Unsubscribe(ctx context.Context, req *wire.UnsubscribeRequest) error
	ListConnections(ctx context.Context) ([]wire.ConnectionRecord, error)
}

// rpcResolver adapts the wire task/endpoint services to the Resolver
// boundary the session consumes.
type rpcResolver struct {
	rpc *wire.Client
}

func (r *rpcResolver) WatchTasks(ctx context.Context, id SubscriptionID) (TaskEventStream, error) {
	s, err := r.rpc.WatchTasks(ctx, string(id))
	if err != nil {
		return nil, err
	}
	return &taskStream{s: s}, nil
}

func (r *rpcResolver) ResolveEndpoint(ctx context.Context, id EndpointID) (Endpoint, error) {
	resp, err := r.rpc.GetTermination(ctx, string(id))
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Host: resp.Host, Port: resp.Port}, nil
}

type taskStream struct {
	s *wire.TaskStream
}

func (t *taskStream) Recv() (TaskEvent, error) {
	ev, err := t.s.Recv()
	if err != nil {
		return TaskEvent{}, err
	}
	return TaskEvent{
		TaskID:         TaskID(ev.TaskID),
		SubscriptionID: SubscriptionID(ev.SubscriptionID),
		EndpointID:     EndpointID(ev.EndpointID),
		Status:         TaskStatus(ev.Status),
		FailureDetail:  ev.FailureDetail,
	}, nil
}

func (t *taskStream) Close() {
	t.s.Close()
}

// rpcStreamOpener adapts the wire stream service to the StreamOpener
// boundary.
type rpcStreamOpener struct {
	opener   *wire.StreamOpener
	instance string
}

func (o *rpcStreamOpener) OpenStream(ctx context.Context, ep Endpoint, appID string, id SubscriptionID) (IndicationStream, error) {
	s, err := o.opener.Open(ctx, ep.Addr(), &wire.StreamRequest{
		AppID:          appID,
		AppInstanceID:  o.instance,
		SubscriptionID: string(id),
	})
	if err != nil {
		return nil, err
	}
	return &indicationStream{s: s}, nil
}

type indicationStream struct {
	s *wire.IndicationStream
}

func (i *indicationStream) Recv() (Indication, error) {
	msg, err := i.s.Recv()
	if err != nil {
		return Indication{}, err
	}
	return Indication{Header: msg.Header, Payload: msg.Payload}, nil
}

func (i *indicationStream) Close() {
	i.s.Close()
}
