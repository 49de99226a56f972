// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package capture

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// lockFile is the flock held by the daemon while it owns the socket.
// The file contains "pid=<pid>" of the daemon.
type lockFile struct {
	f *os.File
}

// acquireLock locks fname without blocking.
//
// Release unlinks the file before unlocking it, so a process that
// locked an unlinked file lost a race with a daemon shutting down, and
// opens fname again.
func acquireLock(fname string) (*lockFile, error) {
	for {
		f, err := os.OpenFile(fname, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if errors.Is(err, unix.EWOULDBLOCK) {
			holder := readHolder(f)
			f.Close()
			return nil, fmt.Errorf("%w: %s is locked by %s", ErrAlreadyRunning, fname, holder)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to lock %s: %w", fname, err)
		}
		linked, err := isLinked(f, fname)
		if err != nil {
			f.Close()
			return nil, err
		}
		if !linked {
			f.Close()
			continue
		}
		l := &lockFile{f: f}
		err = l.writePID()
		if err != nil {
			l.Release()
			return nil, err
		}
		return l, nil
	}
}

// isLinked reports whether f is still the file at fname.
func isLinked(f *os.File, fname string) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	pfi, err := os.Stat(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(fi, pfi), nil
}

func readHolder(f *os.File) string {
	buf, err := io.ReadAll(f)
	if err != nil || len(buf) == 0 {
		return "unknown process"
	}
	return strings.TrimSpace(string(buf))
}

func (l *lockFile) writePID() error {
	err := l.f.Truncate(0)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(l.f, "pid=%d", os.Getpid())
	return err
}

// Release removes the lock file, then unlocks it.
func (l *lockFile) Release() error {
	rerr := os.Remove(l.f.Name())
	if errors.Is(rerr, fs.ErrNotExist) {
		rerr = nil
	}
	uerr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	return errors.Join(rerr, uerr, cerr)
}
