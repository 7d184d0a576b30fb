// Package portaltest provides an in-memory broker implementing the portal
// transport, for tests.
package portaltest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
)

const (
	// Sender is the unique bus name the broker reports for its client.
	Sender = ":1.42"

	requestPrefix = "/org/freedesktop/portal/desktop/request/"
	responseName  = "org.freedesktop.portal.Request.Response"
	closeName     = "org.freedesktop.portal.Request.Close"
	handleToken   = "handle_token"
)

// Call records one method call received by the broker.
type Call struct {
	Method string
	Path   dbus.ObjectPath
	Args   []interface{}
}

// Options returns the trailing a{sv} argument of the call, if any.
func (c Call) Options() map[string]dbus.Variant {
	if len(c.Args) == 0 {
		return nil
	}
	opts, _ := c.Args[len(c.Args)-1].(map[string]dbus.Variant)
	return opts
}

// Handler answers a call with reply values or an error.
type Handler func(b *Broker, call Call) ([]interface{}, error)

// Broker only delivers Response signals on watched paths, like a bus
// honouring match rules.
type Broker struct {
	mu       sync.Mutex
	signals  chan *dbus.Signal
	watched  map[dbus.ObjectPath]int
	handlers map[string]Handler
	props    map[string]dbus.Variant
	calls    []Call
	closed   bool
}

// NewBroker returns a broker that accepts Request.Close on any path and
// answers nothing else until handlers are installed.
func NewBroker() *Broker {
	return &Broker{
		signals:  make(chan *dbus.Signal, 64),
		watched:  make(map[dbus.ObjectPath]int),
		handlers: map[string]Handler{closeName: closeRequest},
		props:    make(map[string]dbus.Variant),
	}
}

// closeRequest drops the request silently: a closed request never responds.
func closeRequest(*Broker, Call) ([]interface{}, error) { return nil, nil }

// Handle installs h for method ("iface.Member").
func (b *Broker) Handle(method string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
}

func (b *Broker) SetProperty(iface, name string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.props[iface+"."+name] = dbus.MakeVariant(value)
}

func (b *Broker) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *Broker) CallCount(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call to method.
func (b *Broker) LastCall(method string) (Call, bool) {
	calls := b.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i], true
		}
	}
	return Call{}, false
}

func (b *Broker) Watching(path dbus.ObjectPath) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watched[path] > 0
}

// WatchCount is the number of live match rules.
func (b *Broker) WatchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.watched {
		n += c
	}
	return n
}

// Respond emits Request::Response on path. It reports whether the signal
// was delivered, i.e. whether anyone watched path.
func (b *Broker) Respond(path dbus.ObjectPath, code uint32, results map[string]dbus.Variant) bool {
	if results == nil {
		results = map[string]dbus.Variant{}
	}
	return b.Emit(&dbus.Signal{
		Sender: ":1.1",
		Path:   path,
		Name:   responseName,
		Body:   []interface{}{code, results},
	})
}

// Emit delivers sig if its path is watched.
func (b *Broker) Emit(sig *dbus.Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.watched[sig.Path] == 0 {
		return false
	}
	b.signals <- sig
	return true
}

// Disconnect closes the signal channel, as a dropped bus connection would.
func (b *Broker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.signals)
	}
}

func (b *Broker) Call(ctx context.Context, method string, args []interface{}, ret ...interface{}) error {
	vals, err := b.dispatch(ctx, Call{Method: method, Path: "/org/freedesktop/portal/desktop", Args: args})
	if err != nil {
		return err
	}
	if len(ret) == 0 {
		return nil
	}
	return dbus.Store(vals, ret...)
}

func (b *Broker) CallAt(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error {
	_, err := b.dispatch(ctx, Call{Method: method, Path: path, Args: args})
	return err
}

func (b *Broker) dispatch(ctx context.Context, call Call) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.calls = append(b.calls, call)
	h, ok := b.handlers[call.Method]
	b.mu.Unlock()
	if !ok {
		return nil, dbus.MakeFailedError(fmt.Errorf("no such method %s", call.Method))
	}
	return h(b, call)
}

func (b *Broker) Property(_ context.Context, iface, name string) (dbus.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.props[iface+"."+name]
	if !ok {
		return dbus.Variant{}, fmt.Errorf("no such property %s.%s", iface, name)
	}
	return v, nil
}

func (b *Broker) Watch(path dbus.ObjectPath) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watched[path]++
	return nil
}

func (b *Broker) Unwatch(path dbus.ObjectPath) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watched[path] > 0 {
		b.watched[path]--
	}
	if b.watched[path] == 0 {
		delete(b.watched, path)
	}
	return nil
}

func (b *Broker) Signals() <-chan *dbus.Signal { return b.signals }

func (b *Broker) UniqueName() string { return Sender }

// RequestPath is the handle a conforming broker assigns to call.
func RequestPath(call Call) dbus.ObjectPath {
	token := ""
	if v, ok := call.Options()[handleToken]; ok {
		token, _ = v.Value().(string)
	}
	sender := strings.ReplaceAll(strings.TrimPrefix(Sender, ":"), ".", "_")
	return dbus.ObjectPath(requestPrefix + sender + "/" + token)
}

// Reply answers with the request handle after emitting the outcome, the
// ordering that loses outcomes for clients subscribing late.
func Reply(code uint32, results map[string]dbus.Variant) Handler {
	return func(b *Broker, call Call) ([]interface{}, error) {
		path := RequestPath(call)
		b.Respond(path, code, results)
		return []interface{}{path}, nil
	}
}

// Pending answers with the request handle and leaves the outcome to the test.
func Pending(handles chan<- dbus.ObjectPath) Handler {
	return func(b *Broker, call Call) ([]interface{}, error) {
		path := RequestPath(call)
		if handles != nil {
			handles <- path
		}
		return []interface{}{path}, nil
	}
}

// ReplyAt mimics legacy brokers that ignore handle_token and pick their own path.
func ReplyAt(path dbus.ObjectPath, handles chan<- dbus.ObjectPath) Handler {
	return func(b *Broker, call Call) ([]interface{}, error) {
		if handles != nil {
			handles <- path
		}
		return []interface{}{path}, nil
	}
}

// Fail rejects the call with err.
func Fail(err error) Handler {
	return func(*Broker, Call) ([]interface{}, error) {
		return nil, err
	}
}

// Stream answers with a fresh descriptor, the read end of a pipe.
// Each descriptor handed out is sent on fds when fds is non-nil.
func Stream(fds chan<- int) Handler {
	return func(*Broker, Call) ([]interface{}, error) {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		defer w.Close()
		defer r.Close()
		fd, err := syscall.Dup(int(r.Fd()))
		if err != nil {
			return nil, err
		}
		if fds != nil {
			fds <- fd
		}
		return []interface{}{dbus.UnixFD(fd)}, nil
	}
}
