package e2

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Session owns the lifecycle of one subscription. A background watcher
// follows the control plane's task events and rebinds the indication
// stream whenever the serving endpoint moves; consumers pull indications
// with Recv and never see the relocation.
//
// The gate is a binary semaphore holding zero permits while no stream is
// bound. The watcher releases it on bind and re-acquires it on unbind, so
// Recv blocks exactly while the session is unbound. The watcher is the
// only writer of the binding.
type Session struct {
	id       SubscriptionID
	appID    string
	instance string
	resolver Resolver
	streams  StreamOpener

	gate   *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger

	mu           sync.Mutex
	binding      *binding
	err          error
	errDelivered bool
	closed       bool
}

type binding struct {
	endpointID EndpointID
	stream     IndicationStream
}

// errRebound signals a Recv loop iteration that lost its binding to a
// relocation and should wait for the next one.
var errRebound = errors.New("binding superseded")

func newSession(appID, instance string, id SubscriptionID, resolver Resolver, streams StreamOpener) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		appID:    appID,
		instance: instance,
		resolver: resolver,
		streams:  streams,
		gate:     semaphore.NewWeighted(1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log.With().Str("subscription", string(id)).Logger(),
	}
	// start unbound: drain the semaphore's single permit
	s.gate.TryAcquire(1)
	go s.watch()
	return s
}

func (s *Session) ID() SubscriptionID {
	return s.id
}

// Recv blocks until an indication is available on the currently bound
// stream. While the subscription is being relocated it keeps blocking and
// resumes on the new endpoint's stream. After Close it returns
// ErrSessionClosed; after a task failure it returns the failure once and
// ErrSessionClosed from then on.
func (s *Session) Recv(ctx context.Context) (Indication, error) {
	for {
		s.mu.Lock()
		err := s.takeErrLocked()
		s.mu.Unlock()
		if err != nil {
			return Indication{}, err
		}

		b, err := s.acquireBinding(ctx)
		if errors.Is(err, errRebound) {
			continue
		}
		if err != nil {
			return Indication{}, err
		}

		ind, err := b.stream.Recv()
		if err == nil {
			indicationsReceived.WithLabelValues(string(s.id)).Inc()
			return ind, nil
		}

		s.mu.Lock()
		superseded := s.binding != b
		s.mu.Unlock()
		if superseded && s.ctx.Err() == nil {
			// the watcher tore this stream down mid-read; wait for
			// the next binding
			continue
		}
		if s.ctx.Err() != nil {
			s.mu.Lock()
			stored := s.takeErrLocked()
			s.mu.Unlock()
			if stored != nil {
				return Indication{}, stored
			}
			return Indication{}, ErrSessionClosed
		}
		return Indication{}, err
	}
}

// acquireBinding waits on the gate and returns the active binding. It
// aborts on the caller's context, on session close, or on task failure.
func (s *Session) acquireBinding(ctx context.Context) (*binding, error) {
	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.gate.Acquire(acqCtx, 1); err != nil {
		s.mu.Lock()
		stored := s.takeErrLocked()
		closed := s.closed
		s.mu.Unlock()
		if stored != nil {
			return nil, stored
		}
		if closed || s.ctx.Err() != nil {
			return nil, ErrSessionClosed
		}
		return nil, ctx.Err()
	}

	s.mu.Lock()
	b := s.binding
	s.mu.Unlock()
	s.gate.Release(1)
	if b == nil {
		return nil, errRebound
	}
	return b, nil
}

// takeErrLocked hands the stored failure to exactly one caller; everyone
// after that sees a closed session.
func (s *Session) takeErrLocked() error {
	if s.err != nil && !s.errDelivered {
		s.errDelivered = true
		return s.err
	}
	if s.err != nil || s.closed {
		return ErrSessionClosed
	}
	return nil
}

// Close cancels the watcher, waits for it to finish, and tears down any
// open stream. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	b := s.binding
	s.binding = nil
	s.mu.Unlock()

	s.cancel()
	<-s.done
	if b != nil {
		b.stream.Close()
	}
	return nil
}

func (s *Session) watch() {
	defer close(s.done)
	err := s.run()
	if err == nil || s.ctx.Err() != nil {
		return
	}
	s.fail(err)
}

func (s *Session) run() error {
	events, err := s.resolver.WatchTasks(s.ctx, s.id)
	if err != nil {
		return err
	}
	defer events.Close()

	for {
		ev, err := events.Recv()
		if err != nil {
			return err
		}
		// the task stream is global; drop other subscriptions' events
		if ev.SubscriptionID != s.id {
			continue
		}
		switch ev.Status {
		case TaskStatusCreated, TaskStatusNone:
			if err := s.bind(ev.EndpointID); err != nil {
				return err
			}
		case TaskStatusRemoved:
			if err := s.unbind(); err != nil {
				return err
			}
		case TaskStatusFailed:
			return &TaskError{SubscriptionID: s.id, Detail: ev.FailureDetail}
		}
	}
}

func (s *Session) bind(epID EndpointID) error {
	s.mu.Lock()
	cur := s.binding
	s.mu.Unlock()
	if cur != nil && cur.endpointID == epID {
		// already streaming from this endpoint; rebinding would drop
		// buffered indications for nothing
		s.log.Debug().Str("endpoint", string(epID)).Msg("task event for bound endpoint, ignoring")
		return nil
	}

	ep, err := s.resolver.ResolveEndpoint(s.ctx, epID)
	if err != nil {
		return err
	}
	stream, err := s.streams.OpenStream(s.ctx, ep, s.appID, s.id)
	if err != nil {
		return err
	}

	if cur != nil {
		// relocation without an intervening REMOVED: swap under the gate
		if err := s.gate.Acquire(s.ctx, 1); err != nil {
			stream.Close()
			return err
		}
	}
	s.mu.Lock()
	s.binding = &binding{endpointID: epID, stream: stream}
	s.mu.Unlock()
	if cur != nil {
		// swap before closing: a pull woken by the close must observe
		// it is superseded, not surface the old stream's error
		cur.stream.Close()
		rebinds.WithLabelValues(string(s.id)).Inc()
	}
	s.gate.Release(1)

	s.log.Info().Str("endpoint", string(epID)).Str("addr", ep.Addr()).Msg("subscription stream bound")
	return nil
}

func (s *Session) unbind() error {
	s.mu.Lock()
	cur := s.binding
	s.mu.Unlock()
	if cur == nil {
		return nil
	}
	if err := s.gate.Acquire(s.ctx, 1); err != nil {
		return err
	}
	s.mu.Lock()
	s.binding = nil
	s.mu.Unlock()
	// clear before closing: a pull woken by the close must observe it is
	// superseded and go back to the gate
	cur.stream.Close()

	s.log.Info().Str("endpoint", string(cur.endpointID)).Msg("subscription stream unbound")
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil && !s.closed {
		s.err = err
	}
	b := s.binding
	s.binding = nil
	s.mu.Unlock()
	if b != nil {
		b.stream.Close()
	}
	// unblock pulls waiting on the gate
	s.cancel()
	s.log.Error().Err(err).Msg("subscription watcher failed")
}
