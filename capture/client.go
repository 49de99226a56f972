// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"time"

	"go.chromium.org/infra/build/fakecc/compdb"
)

// ErrNotRunning is returned when the daemon can't be connected.
var ErrNotRunning = errors.New("daemon is not running")

// DefaultDumpTimeout is the time to wait for the daemon to finish a dump.
const DefaultDumpTimeout = 1 * time.Minute

// Client sends messages to the daemon.
type Client struct {
	// SockPath is the daemon socket.
	SockPath string

	// DumpTimeout is the time to wait for the daemon to finish a dump.
	// Zero means DefaultDumpTimeout.
	DumpTimeout time.Duration
}

// NewClient creates a client for the daemon listening on sockPath.
func NewClient(sockPath string) *Client {
	return &Client{SockPath: sockPath}
}

func (c *Client) dial(ctx context.Context) (*net.UnixConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	return conn.(*net.UnixConn), nil
}

// Send sends msg to the daemon and disconnects without waiting for
// the daemon to handle it.
func (c *Client) Send(ctx context.Context, msg Message) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return write(conn, msg)
}

// Cap sends a compdb entry to the daemon.
func (c *Client) Cap(ctx context.Context, e compdb.Entry) error {
	return c.Send(ctx, CapMessage(e))
}

// Stop requests the daemon to stop. It doesn't wait for the daemon to exit.
func (c *Client) Stop(ctx context.Context) error {
	return c.Send(ctx, StopMessage())
}

// Dump requests the daemon to write captured entries to path.
// A relative path is resolved against the current directory, since
// the daemon may run in another directory.
//
// It returns after the daemon closes the connection, i.e. the daemon
// has handled the dump, so path is ready to read. Failures of the
// dump itself are only logged by the daemon.
func (c *Client) Dump(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	err = write(conn, DumpMessage(path))
	if err != nil {
		return err
	}
	err = conn.CloseWrite()
	if err != nil {
		return err
	}
	timeout := c.DumpTimeout
	if timeout == 0 {
		timeout = DefaultDumpTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err = conn.SetReadDeadline(deadline)
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, conn)
	if err != nil {
		return fmt.Errorf("failed to wait for dump to %s: %w", path, err)
	}
	return nil
}

func write(conn net.Conn, msg Message) error {
	buf, err := msg.Marshal()
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Cmd, err)
	}
	return nil
}
