//go:build linux

package reactor

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// epollEngine is the Linux backend, grounded on
// original_source/src/ioset-epoll.c: one epoll instance, level-triggered
// (EPOLLIN without EPOLLET), re-armed via epoll_ctl(MOD) on Update.
type epollEngine struct {
	d      Dispatcher
	epfd   int
	byFD   map[int]*FD
}

// NewEpollEngine constructs the Linux epoll backend.
func NewEpollEngine() Engine { return &epollEngine{byFD: make(map[int]*FD)} }

func (e *epollEngine) Name() string { return "epoll" }

func (e *epollEngine) Init(d Dispatcher) error {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return err
	}
	e.epfd = fd
	e.d = d
	return nil
}

func (e *epollEngine) rawFD(fd *FD) (int, error) {
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

func (e *epollEngine) Add(fd *FD) error {
	rawFD, err := e.rawFD(fd)
	if err != nil {
		return err
	}
	fd.engineData = rawFD
	e.byFD[rawFD] = fd
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(rawFD)}
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, rawFD, &ev)
}

func (e *epollEngine) Update(fd *FD) error {
	rawFD, ok := fd.engineData.(int)
	if !ok {
		return errNotRegistered
	}
	events := uint32(unix.EPOLLIN)
	if fd.send.Len() > 0 || fd.state == Connecting {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(rawFD)}
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_MOD, rawFD, &ev)
}

func (e *epollEngine) Remove(fd *FD) error {
	rawFD, ok := fd.engineData.(int)
	if !ok {
		return nil
	}
	delete(e.byFD, rawFD)
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, rawFD, nil)
}

func (e *epollEngine) Loop(timeout time.Duration) bool {
	events := make([]unix.EpollEvent, 64)
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	n, err := unix.EpollWait(e.epfd, events, ms)
	if err != nil {
		if err == unix.EINTR {
			return true
		}
		return false
	}
	for i := 0; i < n; i++ {
		rawFD := int(events[i].Fd)
		fd, ok := e.byFD[rawFD]
		if !ok {
			continue
		}
		e.service(fd, events[i].Events)
	}
	return true
}

func (e *epollEngine) service(fd *FD, events uint32) {
	if events&unix.EPOLLIN != 0 {
		buf := make([]byte, 4096)
		n, err := fd.conn.Read(buf)
		if n > 0 {
			e.d.DispatchReadable(fd, buf[:n])
		}
		_ = err
	}
	if events&unix.EPOLLOUT != 0 && fd.state == Connecting {
		e.d.DispatchConnectComplete(fd, nil)
	}
}

func (e *epollEngine) Cleanup() {
	unix.Close(e.epfd)
}

var errNotSyscallConn = &engineError{"reactor/epoll: connection does not expose a raw fd"}
var errNotRegistered = &engineError{"reactor/epoll: fd not registered"}

type engineError struct{ msg string }

func (e *engineError) Error() string { return e.msg }
