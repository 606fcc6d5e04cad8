//go:build darwin || freebsd || netbsd || openbsd

package reactor

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueEngine is the BSD/Darwin backend, grounded on
// original_source/src/ioset-kevent.c: one kqueue instance, EVFILT_READ
// registered per fd. kqueue is naturally level-triggered (the event
// resurfaces every call until the socket is drained), matching §4.1's
// requirement directly.
type kqueueEngine struct {
	d    Dispatcher
	kq   int
	byFD map[int]*FD
}

// NewKqueueEngine constructs the BSD/Darwin kqueue backend.
func NewKqueueEngine() Engine { return &kqueueEngine{byFD: make(map[int]*FD)} }

func (e *kqueueEngine) Name() string { return "kqueue" }

func (e *kqueueEngine) Init(d Dispatcher) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	e.kq = kq
	e.d = d
	return nil
}

func (e *kqueueEngine) rawFD(fd *FD) (int, error) {
	sc, ok := fd.conn.(syscall.Conn)
	if !ok {
		return -1, errNotSyscallConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var rawFD int
	err = raw.Control(func(fdnum uintptr) { rawFD = int(fdnum) })
	return rawFD, err
}

func (e *kqueueEngine) Add(fd *FD) error {
	rawFD, err := e.rawFD(fd)
	if err != nil {
		return err
	}
	fd.engineData = rawFD
	e.byFD[rawFD] = fd
	kev := unix.Kevent_t{
		Ident:  uint64(rawFD),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	_, err = unix.Kevent(e.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (e *kqueueEngine) Update(fd *FD) error {
	rawFD, ok := fd.engineData.(int)
	if !ok {
		return errNotRegistered
	}
	kevs := []unix.Kevent_t{{
		Ident:  uint64(rawFD),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}
	if fd.send.Len() > 0 || fd.state == Connecting {
		kevs = append(kevs, unix.Kevent_t{
			Ident:  uint64(rawFD),
			Filter: unix.EVFILT_WRITE,
			Flags:  unix.EV_ADD | unix.EV_ENABLE,
		})
	}
	_, err := unix.Kevent(e.kq, kevs, nil, nil)
	return err
}

func (e *kqueueEngine) Remove(fd *FD) error {
	rawFD, ok := fd.engineData.(int)
	if !ok {
		return nil
	}
	delete(e.byFD, rawFD)
	kev := unix.Kevent_t{
		Ident:  uint64(rawFD),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	}
	_, err := unix.Kevent(e.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (e *kqueueEngine) Loop(timeout time.Duration) bool {
	events := make([]unix.Kevent_t, 64)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Kevent(e.kq, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return true
		}
		return false
	}
	for i := 0; i < n; i++ {
		fd, ok := e.byFD[int(events[i].Ident)]
		if !ok {
			continue
		}
		e.service(fd, events[i])
	}
	return true
}

func (e *kqueueEngine) service(fd *FD, ev unix.Kevent_t) {
	switch ev.Filter {
	case unix.EVFILT_READ:
		buf := make([]byte, 4096)
		n, err := fd.conn.Read(buf)
		if n > 0 {
			e.d.DispatchReadable(fd, buf[:n])
		}
		_ = err
	case unix.EVFILT_WRITE:
		if fd.state == Connecting {
			e.d.DispatchConnectComplete(fd, nil)
		}
	}
}

func (e *kqueueEngine) Cleanup() {
	unix.Close(e.kq)
}
