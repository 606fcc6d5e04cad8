// Package reactor implements the single-threaded event loop described in
// §4.1: non-blocking sockets multiplexed through a pluggable, level-triggered
// polling backend, a line-buffered read path, and a timer queue drained
// after I/O each iteration. Grounded on original_source/src/ioset.c for the
// overall loop shape and src/ioset-epoll.c / src/ioset-kevent.c for the
// preference-order engine selection.
package reactor

import (
	"fmt"
	"time"

	"ircservd/internal/container"
	"ircservd/internal/logger"
	"ircservd/internal/timerqueue"
)

// State is the lifecycle state of a registered fd (§4.1).
type State int

const (
	Listening State = iota
	Connecting
	Connected
	Closed
)

// Callbacks bundles the up-to-four callbacks a registered fd may carry.
type Callbacks struct {
	// Readable is invoked once per complete line when LineBuffered is set,
	// or once per readability event with the raw bytes otherwise.
	Readable func(fd *FD, line []byte)
	// ConnectComplete fires once a Connecting fd becomes writable.
	ConnectComplete func(fd *FD, err error)
	// Accept fires on a Listening fd when a new connection arrives.
	Accept func(fd *FD, conn Conn)
	// Destroy fires exactly once, when the fd is removed from the loop.
	Destroy func(fd *FD)
}

// Conn is the minimal socket surface the reactor needs; *net.TCPConn and
// friends satisfy it directly via their Fd-exposing SyscallConn.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// FD wraps one registered connection: its state, queues, and callbacks.
// Field names mirror §4.1 verbatim.
type FD struct {
	conn Conn

	state State
	send  *container.RingBuffer
	recv  *container.RingBuffer

	lineBuffered bool
	nextLineLen  int // cached hint; -1 means "unknown, rescan"

	cb Callbacks

	// engineData is opaque storage for the active engine (e.g. the raw
	// integer fd, or a kevent identity); the reactor never interprets it.
	engineData any

	closed bool
}

// Write appends p to the fd's send queue and asks the engine to watch for
// writability. Never blocks (§4.1's scheduling contract).
func (f *FD) Write(p []byte) {
	if f.closed {
		return
	}
	f.send.Write(p)
}

func (f *FD) State() State { return f.state }

// Engine is the pluggable poll backend interface (§4.1): "init, add,
// update, remove, loop(timeout)->proceed?, cleanup". Exactly one is
// selected at startup in preference order.
type Engine interface {
	Name() string
	// Init wires the engine to the reactor that owns it (so the engine can
	// call back into Dispatch* on readiness) and performs any backend setup,
	// returning an error if this engine is unavailable on the host.
	Init(d Dispatcher) error
	Add(fd *FD) error
	Update(fd *FD) error
	Remove(fd *FD) error
	// Loop blocks for up to timeout waiting for readiness, dispatching
	// readable/writable/accept events via the Dispatcher given to Init. It
	// returns false if the engine judges it should stop (fatal backend
	// error).
	Loop(timeout time.Duration) (proceed bool)
	Cleanup()
}

// Dispatcher is the callback surface an Engine uses to hand readiness
// events back to the Reactor. Reactor implements this itself.
type Dispatcher interface {
	DispatchReadable(fd *FD, chunk []byte)
	DispatchConnectComplete(fd *FD, err error)
	DispatchAccept(fd *FD, conn Conn)
}

// Reactor is the event loop itself.
type Reactor struct {
	engine Engine
	timers *timerqueue.Queue

	// activeFD is the agreed hand-off slot (§4.1 and §5 "self-deletion
	// hazard"): while a callback for this fd is running, the loop records
	// it here; if the callback destroys its own fd, Remove notices the
	// match and the loop does not touch the now-freed FD afterward.
	activeFD *FD

	exitFuncs []func()

	configReload func()
	dbFlush      func()

	// pendingReload/pendingFlush are set by signal handlers and consumed on
	// the next loop iteration (§6.1: "deferred to the next loop iteration,
	// not executed from the signal handler").
	pendingReload bool
	pendingFlush  bool
}

// New selects an engine in preference order, failing fatally if none
// initializes (§4.1: "if none initializes, startup fails fatally").
func New(candidates ...Engine) (*Reactor, error) {
	r := &Reactor{timers: timerqueue.New()}
	for _, eng := range candidates {
		if err := eng.Init(r); err != nil {
			logger.Warnf("reactor: engine %s failed to initialize: %v", eng.Name(), err)
			continue
		}
		logger.Infof("reactor: using %s engine", eng.Name())
		r.engine = eng
		return r, nil
	}
	return nil, fmt.Errorf("reactor: no polling engine could be initialized")
}

// Timers exposes the loop's timer queue so other components can schedule
// work without the reactor needing to know what they're scheduling.
func (r *Reactor) Timers() *timerqueue.Queue { return r.timers }

// OnExit registers a callback run in reverse registration order at
// shutdown, matching srvx's reg_exit_func (§4 DESIGN NOTES, "Replay mode"
// sibling concept carried into the reactor per SPEC_FULL §4).
func (r *Reactor) OnExit(fn func()) {
	r.exitFuncs = append(r.exitFuncs, fn)
}

// RunExitFuncs runs every registered exit callback in reverse order, used
// by QUIT handling (§6.1).
func (r *Reactor) RunExitFuncs() {
	for i := len(r.exitFuncs) - 1; i >= 0; i-- {
		r.exitFuncs[i]()
	}
}

// OnConfigReload and OnDatabaseFlush register the hooks the loop invokes on
// wake, per §4.1: "on wake, it runs expired timers, flushes any scheduled
// database writes, and optionally re-reads configuration."
func (r *Reactor) OnConfigReload(fn func()) { r.configReload = fn }
func (r *Reactor) OnDatabaseFlush(fn func()) { r.dbFlush = fn }

// RequestReload marks that configuration should be reloaded on the next
// iteration.
func (r *Reactor) RequestReload() { r.pendingReload = true }

// RequestFlush marks that databases should be flushed on the next
// iteration.
func (r *Reactor) RequestFlush() { r.pendingFlush = true }

// Register adds fd to the engine and returns it, wrapping an already
// non-blocking Conn.
func (r *Reactor) Register(conn Conn, state State, lineBuffered bool, cb Callbacks) (*FD, error) {
	fd := &FD{
		conn:         conn,
		state:        state,
		send:         container.NewRingBuffer(4096),
		recv:         container.NewRingBuffer(4096),
		lineBuffered: lineBuffered,
		nextLineLen:  -1,
		cb:           cb,
	}
	if err := r.engine.Add(fd); err != nil {
		return nil, err
	}
	return fd, nil
}

// Remove unregisters fd, invoking its Destroy callback exactly once. If fd
// is the currently-active fd (a callback is destroying its own connection),
// the hand-off slot is cleared so the loop's post-callback bookkeeping does
// not dereference freed state (§5 "self-deletion hazard").
func (r *Reactor) Remove(fd *FD) {
	if fd.closed {
		return
	}
	fd.closed = true
	fd.state = Closed
	_ = r.engine.Remove(fd)
	if r.activeFD == fd {
		r.activeFD = nil
	}
	if fd.cb.Destroy != nil {
		fd.cb.Destroy(fd)
	}
	_ = fd.conn.Close()
}

// DispatchConnectComplete is called by an engine when a Connecting fd
// finishes its handshake (successfully or not).
func (r *Reactor) DispatchConnectComplete(fd *FD, err error) {
	if err == nil {
		fd.state = Connected
	}
	r.activeFD = fd
	if fd.cb.ConnectComplete != nil {
		fd.cb.ConnectComplete(fd, err)
	}
	if r.activeFD == fd {
		r.activeFD = nil
	}
}

// DispatchAccept is called by an engine on a Listening fd when a new
// connection arrives.
func (r *Reactor) DispatchAccept(fd *FD, conn Conn) {
	r.activeFD = fd
	if fd.cb.Accept != nil {
		fd.cb.Accept(fd, conn)
	}
	if r.activeFD == fd {
		r.activeFD = nil
	}
}

// DispatchReadable is called by an engine implementation when fd becomes
// readable. It reads into the recv buffer and, for line-buffered fds,
// drains complete lines to the Readable callback one at a time, re-checking
// activeFD after every callback invocation in case the callback destroyed
// this very fd.
func (r *Reactor) DispatchReadable(fd *FD, chunk []byte) {
	fd.recv.Write(chunk)
	if !fd.lineBuffered {
		r.activeFD = fd
		data := fd.recv.Peek(-1)
		fd.recv.Discard(len(data))
		if fd.cb.Readable != nil {
			fd.cb.Readable(fd, data)
		}
		r.activeFD = nil
		return
	}
	for {
		idx := fd.recv.IndexByte('\n')
		if idx < 0 {
			return
		}
		line := fd.recv.Peek(idx)
		fd.recv.Discard(idx + 1)
		r.activeFD = fd
		if fd.cb.Readable != nil {
			fd.cb.Readable(fd, trimCR(line))
		}
		if r.activeFD == nil {
			// The callback destroyed fd; recv/send buffers are gone too.
			return
		}
		r.activeFD = nil
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
