package portal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-portal/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-portal/cache"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// ErrAbandoned resolves a request its caller lost interest in.
var ErrAbandoned = errors.New("portal: request abandoned")

var (
	errDisconnected = errors.New("broker connection closed")
	errClosed       = errors.New("correlator closed")
)

// Request is one in-flight broker request. It resolves exactly once.
type Request struct {
	c *Correlator

	mu     sync.Mutex
	handle RequestHandle

	once    sync.Once
	done    chan struct{}
	outcome Outcome
	err     error
}

func (r *Request) Handle() RequestHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Done is closed once the request is resolved.
func (r *Request) Done() <-chan struct{} { return r.done }

// Await blocks until the outcome arrives or ctx ends. Cancelling ctx
// abandons the request locally; the broker is not told.
// Once resolved, every call returns the same outcome.
func (r *Request) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, r.err
	case <-ctx.Done():
	}
	select {
	case <-r.done:
		return r.outcome, r.err
	default:
	}
	r.Close()
	return Outcome{Handle: r.Handle()}, ctx.Err()
}

// Close releases the subscription without contacting the broker.
// It is a no-op on a resolved request.
func (r *Request) Close() {
	r.resolve(Outcome{Handle: r.Handle()}, ErrAbandoned)
}

// Cancel asks the broker to close the request, then releases it.
func (r *Request) Cancel(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	default:
	}
	h := r.Handle()
	r.Close()
	if err := r.c.transport.CallAt(ctx, h.Path(), REQUEST_METHOD_CLOSE); err != nil {
		return &TransportError{Method: REQUEST_METHOD_CLOSE, Err: err}
	}
	return nil
}

func (r *Request) resolve(outcome Outcome, err error) {
	r.once.Do(func() {
		r.outcome = outcome
		r.err = err
		r.c.finish(r, outcome, err)
		close(r.done)
	})
}

// resolution is what the broker delivered for a handle.
type resolution struct {
	outcome Outcome
	err     error
}

// brokerResolved reports whether err still means the broker answered.
// Abandoned requests and transport failures were never resolved by it.
func brokerResolved(err error) bool {
	_, decodeFailed := err.(*DecodeError)
	return err == nil || decodeFailed
}

// Correlator routes Request::Response signals to the request that
// subscribed to them.
type Correlator struct {
	transport Transport
	ctx       context.Context
	cancel    context.CancelFunc

	mu       sync.Mutex
	pending  map[RequestHandle]*Request
	resolved *cache.Cache[RequestHandle, resolution]
	closed   bool
	stopped  chan struct{}
}

// NewCorrelator starts dispatching signals from t until ctx ends or
// Close is called. Resolved outcomes are remembered for ttl (0 = forever).
func NewCorrelator(ctx context.Context, t Transport, ttl time.Duration) *Correlator {
	ctx, cancel := context.WithCancel(ctx)
	c := &Correlator{
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[RequestHandle]*Request),
		resolved:  cache.New[RequestHandle, resolution](ttl),
		stopped:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Register subscribes to the outcome of h. It must be called before the
// method that creates h is sent, so the outcome cannot be missed.
func (c *Correlator) Register(h RequestHandle) (*Request, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &TransportError{Method: REQUEST_SIGNAL, Err: errClosed}
	}
	if req, ok := c.pending[h]; ok {
		c.mu.Unlock()
		return req, nil
	}
	req := &Request{c: c, handle: h, done: make(chan struct{})}
	if res, ok := c.resolved.Get(h); ok {
		c.mu.Unlock()
		req.once.Do(func() {
			req.outcome = res.outcome
			req.err = res.err
			close(req.done)
		})
		return req, nil
	}
	c.pending[h] = req
	c.mu.Unlock()

	if err := c.transport.Watch(h.Path()); err != nil {
		c.mu.Lock()
		delete(c.pending, h)
		c.mu.Unlock()
		return nil, &TransportError{Method: "AddMatch", Err: err}
	}
	logger.Debug("[portal] watching %s", h)
	return req, nil
}

// rebind moves req to the handle the broker actually returned.
func (c *Correlator) rebind(req *Request, h RequestHandle) error {
	old := req.Handle()
	if old == h {
		return nil
	}
	logger.Debug("[portal] broker returned %s instead of %s", h, old)

	c.mu.Lock()
	if c.pending[old] != req {
		// resolved or abandoned meanwhile
		c.mu.Unlock()
		return nil
	}
	delete(c.pending, old)
	req.mu.Lock()
	req.handle = h
	req.mu.Unlock()
	c.pending[h] = req
	c.mu.Unlock()

	if err := c.transport.Watch(h.Path()); err != nil {
		req.resolve(Outcome{Handle: h}, &TransportError{Method: "AddMatch", Err: err})
		return err
	}
	c.unwatch(old)
	return nil
}

// AwaitOutcome waits for the outcome of h. A handle the broker resolved
// earlier returns its cached outcome, or decode error, without subscribing
// again.
//
// Resolutions are only remembered for the correlator's ttl. Past it, h is
// unknown again: AwaitOutcome subscribes afresh and, since the broker
// never answers a request twice, waits until ctx ends. Bound ctx when
// awaiting old handles.
func (c *Correlator) AwaitOutcome(ctx context.Context, h RequestHandle) (Outcome, error) {
	if res, ok := c.resolved.Get(h); ok {
		return res.outcome, res.err
	}
	req, err := c.Register(h)
	if err != nil {
		return Outcome{Handle: h}, err
	}
	return req.Await(ctx)
}

// Pending reports how many requests still wait for an outcome.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops dispatching and fails every pending request.
func (c *Correlator) Close() {
	c.cancel()
	<-c.stopped
}

func (c *Correlator) run() {
	defer close(c.stopped)
	signals := c.transport.Signals()
	for {
		select {
		case <-c.ctx.Done():
			c.failAll(&TransportError{Method: REQUEST_SIGNAL, Err: errClosed})
			return
		case sig, ok := <-signals:
			if !ok {
				logger.Error("[portal] broker connection lost, failing pending requests")
				c.failAll(&TransportError{Method: REQUEST_SIGNAL, Err: errDisconnected})
				return
			}
			c.dispatch(sig)
		}
	}
}

func (c *Correlator) dispatch(sig *dbus.Signal) {
	if sig == nil || sig.Name != REQUEST_SIGNAL {
		return
	}
	h := RequestHandle(sig.Path)

	c.mu.Lock()
	req := c.pending[h]
	c.mu.Unlock()
	if req == nil {
		logger.Debug("[portal] dropping response for unwatched request %s", h)
		return
	}

	code, results, err := idbus.ParseResponse(sig)
	if err != nil {
		logger.Error("[portal] malformed response on %s: %v (body: %v)", h, err, sig.Body)
		req.resolve(Outcome{Handle: h}, &DecodeError{Kind: Malformed, Value: sig.Body, Err: err})
		return
	}
	logger.Debug("[portal] %s resolved with code %d, keys %v", h, code, idbus.Keys(results))
	req.resolve(Outcome{Handle: h, Code: ResponseCode(code), Results: results}, nil)
}

func (c *Correlator) finish(req *Request, outcome Outcome, err error) {
	h := outcome.Handle
	c.mu.Lock()
	if c.pending[h] == req {
		delete(c.pending, h)
	}
	if brokerResolved(err) {
		c.resolved.Set(h, resolution{outcome: outcome, err: err})
	}
	c.mu.Unlock()
	c.unwatch(h)
}

func (c *Correlator) unwatch(h RequestHandle) {
	if err := c.transport.Unwatch(h.Path()); err != nil {
		logger.Debug("[portal] failed to unwatch %s: %v", h, err)
	}
}

func (c *Correlator) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	reqs := make([]*Request, 0, len(c.pending))
	for _, req := range c.pending {
		reqs = append(reqs, req)
	}
	c.mu.Unlock()

	for _, req := range reqs {
		req.resolve(Outcome{Handle: req.Handle()}, err)
	}
}
