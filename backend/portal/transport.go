package portal

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-portal/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// Transport is an established channel to the broker. The portal package
// never dials or hangs up the underlying connection.
type Transport interface {
	// Call invokes method on the broker desktop object and stores the reply in ret.
	Call(ctx context.Context, method string, args []interface{}, ret ...interface{}) error
	// CallAt invokes method on another broker object, e.g. a request.
	CallAt(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error
	// Property reads a property of iface on the broker desktop object.
	Property(ctx context.Context, iface, name string) (dbus.Variant, error)
	// Watch starts delivering Request::Response signals emitted on path.
	Watch(path dbus.ObjectPath) error
	// Unwatch stops delivering signals emitted on path.
	Unwatch(path dbus.ObjectPath) error
	// Signals is closed when the connection goes away.
	Signals() <-chan *dbus.Signal
	// UniqueName is the caller's unique bus name, e.g. ":1.42".
	UniqueName() string
}

// BusTransport implements Transport on a godbus session connection.
type BusTransport struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	timeout time.Duration
}

// NewBusTransport attaches to conn. Calls are bounded by timeout.
func NewBusTransport(conn *dbus.Conn, timeout time.Duration) *BusTransport {
	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	return &BusTransport{
		conn:    conn,
		obj:     conn.Object(PORTAL_DEST, dbus.ObjectPath(PORTAL_PATH)),
		signals: ch,
		timeout: timeout,
	}
}

func (t *BusTransport) Call(ctx context.Context, method string, args []interface{}, ret ...interface{}) error {
	ctx, cancel := idbus.WithTimeout(ctx, t.timeout)
	defer cancel()
	return idbus.Call(ctx, t.obj, method, args, ret...)
}

func (t *BusTransport) CallAt(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error {
	ctx, cancel := idbus.WithTimeout(ctx, t.timeout)
	defer cancel()
	return idbus.Call(ctx, t.conn.Object(PORTAL_DEST, path), method, args)
}

func (t *BusTransport) Property(ctx context.Context, iface, name string) (dbus.Variant, error) {
	ctx, cancel := idbus.WithTimeout(ctx, t.timeout)
	defer cancel()
	return idbus.GetProperty(ctx, t.obj, iface, name)
}

func (t *BusTransport) Watch(path dbus.ObjectPath) error {
	return t.conn.AddMatchSignal(responseMatch(path)...)
}

func (t *BusTransport) Unwatch(path dbus.ObjectPath) error {
	return t.conn.RemoveMatchSignal(responseMatch(path)...)
}

func (t *BusTransport) Signals() <-chan *dbus.Signal { return t.signals }

func (t *BusTransport) UniqueName() string {
	names := t.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Close detaches the signal channel; the connection stays open.
func (t *BusTransport) Close() {
	t.conn.RemoveSignal(t.signals)
	logger.Debug("[portal] transport detached")
}

func responseMatch(path dbus.ObjectPath) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(REQUEST_IFACE),
		dbus.WithMatchMember(REQUEST_RESPONSE),
	}
}
