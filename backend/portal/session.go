package portal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-portal/events"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// RequestData is the payload of request.cancelled and request.failed events.
type RequestData struct {
	Capability Capability    `json:"capability"`
	Handle     RequestHandle `json:"handle,omitempty"`
	Code       *ResponseCode `json:"code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func (d RequestData) EventCapability() string { return string(d.Capability) }

// capability holds what every capability front shares.
type capability struct {
	proxy           *Proxy
	notify          func(events.Event)
	responseTimeout time.Duration
}

func (c *capability) await(ctx context.Context, req *Request) (Outcome, error) {
	if c.responseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.responseTimeout)
		defer cancel()
	}
	return req.Await(ctx)
}

func (c *capability) emit(e events.Event) {
	if c.notify != nil {
		c.notify(e)
	}
}

// settle turns an awaited outcome into the caller error and logs it at
// the severity its kind deserves. A nil return means success.
func (c *capability) settle(name Capability, outcome Outcome, err error) error {
	if err != nil {
		if errors.Is(err, ErrAbandoned) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("[portal] %s request %s abandoned: %v", name, outcome.Handle, err)
		} else {
			logger.Error("[portal] %s request %s failed: %v", name, outcome.Handle, err)
		}
		c.emit(events.Event{Type: events.TypeRequestFailed, Data: RequestData{Capability: name, Handle: outcome.Handle, Error: err.Error()}})
		return err
	}

	switch outcome.Status() {
	case StatusSuccess:
		return nil
	case StatusCancelled:
		logger.Info("[portal] %s request %s cancelled by user", name, outcome.Handle)
		c.emit(events.Event{Type: events.TypeRequestCancelled, Data: RequestData{Capability: name, Handle: outcome.Handle}})
	default:
		code := outcome.Code
		logger.Warn("[portal] %s request %s ended with code %d", name, outcome.Handle, code)
		c.emit(events.Event{Type: events.TypeRequestFailed, Data: RequestData{Capability: name, Handle: outcome.Handle, Code: &code}})
	}
	return outcome.Err()
}

// decodeFailed logs a payload that could not be decoded, with the raw payload.
func (c *capability) decodeFailed(name Capability, outcome Outcome, err error) error {
	logger.Error("[portal] %s request %s: %v (payload: %v)", name, outcome.Handle, err, outcome.Results)
	c.emit(events.Event{Type: events.TypeRequestFailed, Data: RequestData{Capability: name, Handle: outcome.Handle, Error: err.Error()}})
	return err
}

// requestGuard gives one-shot actions the Idle -> Requesting -> Idle shape.
type requestGuard struct {
	mu    sync.Mutex
	state State
}

func (g *requestGuard) begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateRequesting {
		return ErrAlreadyActive
	}
	g.state = StateRequesting
	return nil
}

func (g *requestGuard) end() {
	g.mu.Lock()
	g.state = StateIdle
	g.mu.Unlock()
}

func (g *requestGuard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == "" {
		return StateIdle
	}
	return g.state
}

// CameraStateData is the payload of camera.state events.
type CameraStateData struct {
	State     State `json:"state"`
	Available bool  `json:"available"`
}

// StartResult reports how a camera start resolved. Stream is set only when
// the session reached StateStreaming.
type StartResult struct {
	Available bool
	Stream    *StreamResource
}

// CameraSession drives the Idle -> Starting -> Streaming -> Idle lifecycle.
// At most one broker request is outstanding per session: Stop closes the
// pending access request on the broker before a new Start can issue one.
type CameraSession struct {
	capability

	mu        sync.Mutex
	state     State
	available bool
	gen       uint64
	pending   *Request
	stream    *StreamResource
}

func newCameraSession(base capability) *CameraSession {
	return &CameraSession{capability: base, state: StateIdle}
}

func (s *CameraSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the state together with the last known camera availability.
func (s *CameraSession) Status() CameraStateData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CameraStateData{State: s.state, Available: s.available}
}

// Stream returns the live stream while streaming, for observation only.
func (s *CameraSession) Stream() *StreamResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Start checks for a camera, requests access and opens the stream.
// A missing camera is not an error: it resolves to Idle with Available false.
// If Stop runs before the stream arrives, Start returns ErrStopped and a
// stream arriving late is closed on arrival.
func (s *CameraSession) Start(ctx context.Context) (StartResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return StartResult{}, ErrAlreadyActive
	}
	s.state = StateStarting
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.publish(StateStarting)

	present, err := s.proxy.IsCameraPresent(ctx)
	if err != nil {
		logger.Error("[camera] presence check failed: %v", err)
		return StartResult{}, s.fail(gen, false, err)
	}
	if !present {
		logger.Info("[camera] no camera available")
		return StartResult{Available: false}, s.fail(gen, false, nil)
	}
	if !s.current(gen) {
		return StartResult{Available: true}, ErrStopped
	}

	req, err := s.proxy.AccessCamera(ctx)
	if err != nil {
		return StartResult{Available: true}, s.fail(gen, true, err)
	}
	if !s.track(gen, req) {
		// stopped while the call was on the wire
		s.cancel(req)
		return StartResult{Available: true}, ErrStopped
	}
	outcome, err := s.await(ctx, req)
	s.untrack(req)
	if !s.current(gen) {
		logger.Debug("[camera] access request %s settled after stop", req.Handle())
		return StartResult{Available: true}, ErrStopped
	}
	if err := s.settle(CapabilityCamera, outcome, err); err != nil {
		return StartResult{Available: true}, s.fail(gen, true, err)
	}

	stream, err := s.proxy.OpenPipeWireRemote(ctx)
	if err != nil {
		logger.Error("[camera] failed to open stream: %v", err)
		return StartResult{Available: true}, s.fail(gen, true, err)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateStarting {
		s.mu.Unlock()
		if err := stream.close(); err != nil {
			logger.Debug("[camera] closing drained stream: %v", err)
		}
		logger.Debug("[camera] stream arrived after stop, closed it")
		return StartResult{Available: true}, ErrStopped
	}
	s.state = StateStreaming
	s.available = true
	s.stream = stream
	s.mu.Unlock()

	logger.Info("[camera] streaming on fd %d", stream.Fd())
	s.publish(StateStreaming)
	return StartResult{Available: true, Stream: stream}, nil
}

// Stop closes any held stream, closes a pending access request on the
// broker and returns to Idle. It is a no-op when Idle.
func (s *CameraSession) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	req := s.pending
	s.stream = nil
	s.pending = nil
	s.state = StateIdle
	s.gen++
	s.mu.Unlock()

	if req != nil {
		s.cancel(req)
	}
	if err := stream.close(); err != nil {
		logger.Debug("[camera] closing stream: %v", err)
	}
	logger.Info("[camera] stopped")
	s.publish(StateIdle)
}

func (s *CameraSession) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == StateStarting
}

// track records req as the pending request of start gen. It reports false
// when Stop already took over.
func (s *CameraSession) track(gen uint64, req *Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateStarting {
		return false
	}
	s.pending = req
	return true
}

func (s *CameraSession) untrack(req *Request) {
	s.mu.Lock()
	if s.pending == req {
		s.pending = nil
	}
	s.mu.Unlock()
}

func (s *CameraSession) cancel(req *Request) {
	// Cancel releases the request locally before calling the broker, so
	// the Start awaiting it returns at once.
	if err := req.Cancel(context.Background()); err != nil {
		logger.Warn("[camera] failed to close request %s: %v", req.Handle(), err)
		return
	}
	logger.Debug("[camera] closed request %s", req.Handle())
}

// fail returns to Idle and hands back err, or ErrStopped when Stop
// already took over.
func (s *CameraSession) fail(gen uint64, available bool, err error) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = StateIdle
	s.available = available
	s.mu.Unlock()
	s.publish(StateIdle)
	return err
}

func (s *CameraSession) publish(state State) {
	s.emit(events.Event{Type: events.TypeCameraState, Data: s.Status()})
	logger.Debug("[camera] state %s", state)
}
