package e2

import "context"

// TaskEventStream delivers subscription task lifecycle events. The stream
// is infinite; Recv blocks until the next event or until the stream's
// context is cancelled.
type TaskEventStream interface {
	Recv() (TaskEvent, error)
	Close()
}

// Resolver answers where a subscription is currently served. Backed by the
// control plane's task and endpoint registry services.
type Resolver interface {
	WatchTasks(ctx context.Context, id SubscriptionID) (TaskEventStream, error)
	ResolveEndpoint(ctx context.Context, id EndpointID) (Endpoint, error)
}

// IndicationStream is one open server-streaming call against one
// termination endpoint.
type IndicationStream interface {
	Recv() (Indication, error)
	Close()
}

// StreamOpener opens an indication stream scoped to (app, subscription)
// against a resolved endpoint.
type StreamOpener interface {
	OpenStream(ctx context.Context, ep Endpoint, appID string, id SubscriptionID) (IndicationStream, error)
}
