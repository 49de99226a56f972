// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"sync"
	"time"

	"go.chromium.org/infra/build/fakecc/compdb"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/o11y/iometrics"
)

var (
	// ErrSocketExists is returned when the daemon socket already exists,
	// i.e. another daemon is running, or a stale socket is left.
	ErrSocketExists = errors.New("daemon socket exists")

	// ErrAlreadyRunning is returned when another daemon holds the lock
	// of the socket.
	ErrAlreadyRunning = errors.New("daemon is already running")
)

// State is a state of the server.
type State int

const (
	// Unstarted is the state before Listen.
	Unstarted State = iota
	// Listening is the state after Listen, until shutdown.
	Listening
	// Stopped is the state after shutdown.
	Stopped
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Listening:
		return "listening"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// readTimeout is how long we wait for the client to send its message.
// A well-behaved client sends the message immediately after connecting.
const readTimeout = 30 * time.Second

// Server is the capture daemon.
//
// It accepts one connection at a time and handles it fully before
// accepting the next one, so the capture buffer has a single writer
// and needs no lock.
type Server struct {
	sockPath string

	mu    sync.Mutex
	state State
	ln    net.Listener
	lock  *lockFile

	shutdownOnce sync.Once
	shutdownErr  error

	metrics *iometrics.IOMetrics

	// capture buffer. accessed only by the accept loop.
	entries []compdb.Entry
}

// NewServer creates a server to listen on sockPath.
func NewServer(sockPath string) *Server {
	return &Server{
		sockPath: sockPath,
		metrics:  iometrics.New("capture"),
	}
}

// SockPath returns the socket path of the server.
func (s *Server) SockPath() string {
	return s.sockPath
}

// State returns the current state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Listen binds the socket.
// It fails with ErrSocketExists if the socket already exists. It doesn't
// try to remove the socket, because it may be used by another daemon.
// Once Listen returns successfully, clients can connect to the socket.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unstarted {
		return fmt.Errorf("listen in state %s", s.state)
	}
	if err := checkNoSocket(s.sockPath); err != nil {
		return err
	}
	lock, err := acquireLock(s.sockPath + ".lock")
	if err != nil {
		return err
	}
	// recheck while holding the lock.
	if err := checkNoSocket(s.sockPath); err != nil {
		lock.Release()
		return err
	}
	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		lock.Release()
		return fmt.Errorf("failed to listen on %s: %w", s.sockPath, err)
	}
	s.ln = ln
	s.lock = lock
	s.state = Listening
	clog.Infof(ctx, "listening on %s", s.sockPath)
	return nil
}

func checkNoSocket(sockPath string) error {
	_, err := os.Lstat(sockPath)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrSocketExists, sockPath)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Serve runs the accept loop until the daemon receives a stop message
// or ctx is cancelled. The server is shut down when Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	state, ln := s.state, s.ln
	s.mu.Unlock()
	if state != Listening {
		return fmt.Errorf("serve in state %s", state)
	}
	defer s.Shutdown(ctx)
	stop := context.AfterFunc(ctx, func() {
		clog.Infof(ctx, "shutdown: %v", context.Cause(ctx))
		s.Shutdown(ctx)
	})
	defer stop()

	clog.Infof(ctx, "daemon running with PID %d, listening on %s", os.Getpid(), s.sockPath)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.State() == Stopped || errors.Is(err, net.ErrClosed) {
				return nil
			}
			clog.Errorf(ctx, "accept failed: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if s.handleConn(ctx, conn) {
			return nil
		}
	}
}

// handleConn handles one message on conn, and reports whether the
// daemon should stop.
// Errors are logged, not returned, so a bad client never stops the daemon.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) (stop bool) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			clog.Errorf(ctx, "panic in handling message: %v", r)
			stop = false
		}
	}()
	err := conn.SetReadDeadline(time.Now().Add(readTimeout))
	if err != nil {
		clog.Warningf(ctx, "failed to set read deadline: %v", err)
	}
	buf, err := readLine(conn)
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		s.metrics.ReadDone(len(buf), err)
		clog.Warningf(ctx, "failed to read message: %v", err)
		return false
	}
	msg, err := ParseMessage(buf)
	s.metrics.ReadDone(len(buf), err)
	if err != nil {
		clog.Warningf(ctx, "%v: %q", err, buf)
		return false
	}
	return s.dispatch(ctx, msg)
}

// readLine reads a message terminated by a newline, or by EOF.
// It returns io.EOF if the client sent nothing.
func readLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, maxMessageSize))
	buf, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = bytes.TrimSpace(buf)
	if len(buf) == 0 {
		return nil, io.EOF
	}
	return buf, nil
}

func (s *Server) dispatch(ctx context.Context, msg Message) bool {
	switch msg.Cmd {
	case CmdCap:
		if msg.Body == nil {
			clog.Warningf(ctx, "cap without body")
			return false
		}
		s.entries = append(s.entries, *msg.Body)
		clog.Debugf(ctx, "cap %s: %d entries", msg.Body.File, len(s.entries))
	case CmdDump:
		if msg.Path == "" {
			clog.Warningf(ctx, "dump without path")
			return false
		}
		err := compdb.WriteFile(msg.Path, s.entries)
		if err != nil {
			s.metrics.WriteDone(0, err)
			clog.Errorf(ctx, "dump failed: %v", err)
			return false
		}
		var size int64
		if fi, err := os.Stat(msg.Path); err == nil {
			size = fi.Size()
		}
		s.metrics.WriteDone(size, nil)
		clog.Infof(ctx, "dump %d entries to %s", len(s.entries), msg.Path)
	case CmdStop:
		clog.Infof(ctx, "stop with %d entries: %s", len(s.entries), s.metrics.Stats())
		err := s.Shutdown(ctx)
		if err != nil {
			clog.Warningf(ctx, "shutdown: %v", err)
		}
		return true
	default:
		clog.Warningf(ctx, "unknown command %q", msg.Cmd)
	}
	return false
}

// Shutdown closes the listener, and removes the socket and lock file.
// It is safe to call more than once, and from any goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		prev := s.state
		s.state = Stopped
		if prev != Listening {
			return
		}
		var errs []error
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		if err := os.Remove(s.sockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		if err := s.lock.Release(); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
		clog.Infof(ctx, "daemon stopped")
	})
	return s.shutdownErr
}

// Stats returns the I/O stats of the server.
func (s *Server) Stats() iometrics.Stats {
	return s.metrics.Stats()
}

// Entries returns a copy of the captured entries.
// It must not be called concurrently with Serve.
func (s *Server) Entries() []compdb.Entry {
	return append([]compdb.Entry(nil), s.entries...)
}
