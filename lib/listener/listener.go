package listener

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/commit"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"sync/atomic"
)

var (
	// ErrNoCommitFunctions is wrapped by the error Attach returns if the listener has no commit functions
	ErrNoCommitFunctions = errors.New("listener: no commit functions configured")
	// ErrNoReference is wrapped by the error Attach returns if there is no query to subscribe to
	ErrNoReference = errors.New("listener: no reference configured")
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// State is the lifecycle state of a listener
type State int32

const (
	StateIdle      State = iota // no live subscription
	StateAttaching              // a subscribe call is in flight
	StateActive                 // exactly one live subscription, changes are flowing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttaching:
		return "attaching"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Params are passed through Attach to the RefFunc of a listener
type Params map[string]any

// RefFunc computes the query a listener subscribes to from its base reference
// and the params of the Attach call
type RefFunc func(base docdb.IQuery, params Params) docdb.IQuery

// Options configures a listener
type Options struct {
	// Name labels log messages and metrics (default: "listener")
	Name string
	// LogLevel of the logger created for the listener, ignored if Logger is set.
	// The zero value logs errors only.
	LogLevel logger.LogLevel
	// RefFunc, if set, computes the subscribed query on every attach
	RefFunc RefFunc
	// Logger replaces the logger created for the listener
	Logger logger.ILogger
}

// IListener keeps a local mirror in sync with a remote query.
//
// Attach and Detach must not be called concurrently on the same listener.
// Change batches are dispatched to the commit functions from the goroutine
// of the document store, one batch at a time.
type IListener interface {
	// Attach makes sure exactly one subscription is live and returns it.
	//
	//   - If more than one subscription is tracked or resetIfActive is set,
	//     all subscriptions are detached first.
	//   - If one subscription is tracked, it is returned unchanged.
	//   - Otherwise the mirror is emptied with RemoveAll and a new subscription
	//     is created for the query (computed by the RefFunc from params if set).
	//
	// The returned error is only set for configuration errors. If the document
	// store fails to subscribe, the failure is logged and (nil, nil) is returned.
	Attach(ctx context.Context, params Params, resetIfActive bool) (*Subscription, error)
	// Detach cancels every tracked subscription. Batches delivered afterwards
	// are dropped. Detaching an idle listener is a no-op.
	Detach()
	// State returns the current lifecycle state
	State() State
	// Active reports whether a subscription is live
	Active() bool
	// Name returns the name of the listener
	Name() string
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

type listenerImpl struct {
	name    string
	ref     docdb.IQuery
	refFunc RefFunc
	commit  commit.ICommitFunctions
	logger  logger.ILogger

	// tracked subscriptions, normally at most one
	subs  []*Subscription
	state atomic.Int32

	attachCounter      *metrics.Counter
	attachErrorCounter *metrics.Counter
	staleCounter       *metrics.Counter
	eventCounters      map[docdb.ChangeKind]*metrics.Counter
}

// NewListener creates an idle listener for ref that mirrors into commitFns.
// Configuration errors (nil ref or commit functions) are reported by Attach.
func NewListener(ref docdb.IQuery, commitFns commit.ICommitFunctions, opts Options) IListener {
	l := &listenerImpl{
		name:    opts.Name,
		ref:     ref,
		refFunc: opts.RefFunc,
		commit:  commitFns,
		logger:  opts.Logger,
	}
	if l.name == "" {
		l.name = "listener"
	}
	if l.logger == nil {
		l.logger = common.NewLogger(l.name, opts.LogLevel, nil)
	}

	l.attachCounter = metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_listener_attach_total{listener=%q}`, l.name))
	l.attachErrorCounter = metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_listener_attach_errors_total{listener=%q}`, l.name))
	l.staleCounter = metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_listener_stale_batches_total{listener=%q}`, l.name))
	l.eventCounters = map[docdb.ChangeKind]*metrics.Counter{}
	for _, kind := range []docdb.ChangeKind{docdb.ChangeAdded, docdb.ChangeModified, docdb.ChangeRemoved} {
		l.eventCounters[kind] = metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_listener_events_total{listener=%q,kind=%q}`, l.name, kind))
	}
	return l
}

// configError builds, and logs, the error of a misconfigured listener
func (l *listenerImpl) configError(err error) error {
	e := store.NewError(store.RetCConfigurationError, "attach", "listener is misconfigured", err)
	e.Name = l.name
	l.logger.Errorf("%s", e.Error())
	return e
}

// --------------------------------------------------------------------------
// Interface Methods (docu see listener.IListener)
// --------------------------------------------------------------------------

func (l *listenerImpl) Attach(ctx context.Context, params Params, resetIfActive bool) (*Subscription, error) {
	if l.commit == nil {
		return nil, l.configError(ErrNoCommitFunctions)
	}

	if len(l.subs) > 1 || resetIfActive {
		if !resetIfActive {
			l.logger.Infof("too many listeners, all detached")
		}
		l.Detach()
	}

	if len(l.subs) == 1 {
		return l.subs[0], nil
	}

	query := l.ref
	if l.refFunc != nil {
		query = l.refFunc(l.ref, params)
	}
	if query == nil {
		return nil, l.configError(ErrNoReference)
	}

	l.attachCounter.Inc()
	l.state.Store(int32(StateAttaching))

	// every attach starts the mirror from empty
	l.commit.RemoveAll()

	sub := newSubscription(uuid.NewString(), query)
	cancel, err := query.OnChange(ctx, func(snapshot docdb.QuerySnapshot) {
		l.dispatch(sub, snapshot)
	})
	if err != nil {
		sub.live.Store(false)
		l.attachErrorCounter.Inc()
		l.state.Store(int32(StateIdle))
		l.logger.Errorf("attach: subscribing to %s failed: %v", query.Path(), err)
		return nil, nil
	}
	sub.cancel = cancel

	l.subs = append(l.subs, sub)
	l.state.Store(int32(StateActive))
	l.logger.Debugf("attached to %s (subscription %s)", query.Path(), sub.id)
	return sub, nil
}

func (l *listenerImpl) Detach() {
	for _, sub := range l.subs {
		sub.stop()
		l.logger.Debugf("detached from %s (subscription %s)", sub.Path(), sub.id)
	}
	l.subs = nil
	l.state.Store(int32(StateIdle))
}

func (l *listenerImpl) State() State {
	return State(l.state.Load())
}

func (l *listenerImpl) Active() bool {
	return l.State() == StateActive
}

func (l *listenerImpl) Name() string {
	return l.name
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// dispatch forwards the changes of one batch, in order, to the commit functions.
// Batches of retired subscriptions are dropped.
func (l *listenerImpl) dispatch(sub *Subscription, snapshot docdb.QuerySnapshot) {
	for _, change := range snapshot.Changes {
		if !sub.live.Load() {
			l.staleCounter.Inc()
			l.logger.Debugf("dropped stale batch of subscription %s", sub.id)
			return
		}

		record := identity.Attach(change.Doc.Data.Clone(), change.Doc.ID, change.Doc.Path)
		switch change.Kind {
		case docdb.ChangeAdded:
			l.commit.Add(record)
		case docdb.ChangeModified:
			l.commit.Update(record)
		case docdb.ChangeRemoved:
			l.commit.Remove(record)
		default:
			l.logger.Warningf("ignored change of unknown kind %q for %s", change.Kind, change.Doc.Path)
			continue
		}
		l.logger.Debugf("%s %s: %v", change.Kind, record.Path(), record)
		l.eventCounters[change.Kind].Inc()
	}
}
