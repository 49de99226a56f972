// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/fakecc/compdb"
)

type testServer struct {
	*Server
	done chan error
}

// startServer starts a server in dir, and stops it at the end of the test.
func startServer(ctx context.Context, t *testing.T, dir string) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(ctx)
	s := NewServer(filepath.Join(dir, "fakecc.sock"))
	err := s.Listen(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Listen()=%v; want nil error", err)
	}
	ts := &testServer{Server: s, done: make(chan error, 1)}
	go func() {
		ts.done <- s.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		ts.wait(t)
	})
	return ts
}

func (ts *testServer) wait(t *testing.T) {
	t.Helper()
	select {
	case err, ok := <-ts.done:
		if !ok {
			return
		}
		if err != nil {
			t.Errorf("Serve()=%v; want nil error", err)
		}
		close(ts.done)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve didn't return")
	}
}

func entry(dir, src string) compdb.Entry {
	return compdb.Entry{
		Arguments: []string{"/usr/bin/clang", "-c", src, "-o", src + ".o"},
		Directory: dir,
		File:      src,
		Output:    src + ".o",
	}
}

func TestServerCapAndDump(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := startServer(ctx, t, dir)
	c := NewClient(s.SockPath())

	var want []compdb.Entry
	for i := range 3 {
		e := entry(dir, fmt.Sprintf("f%d.c", i))
		want = append(want, e)
		err := c.Cap(ctx, e)
		if err != nil {
			t.Fatalf("Cap(%q)=%v; want nil error", e.File, err)
		}
	}
	out := filepath.Join(dir, "compile_commands.json")
	err := c.Dump(ctx, out)
	if err != nil {
		t.Fatalf("Dump()=%v; want nil error", err)
	}
	got, err := compdb.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile()=%v; want nil error", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dump diff -want +got:\n%s", diff)
	}

	// dump doesn't clear the buffer.
	out2 := filepath.Join(dir, "again.json")
	err = c.Dump(ctx, out2)
	if err != nil {
		t.Fatalf("Dump()=%v; want nil error", err)
	}
	got, err = compdb.ReadFile(out2)
	if err != nil {
		t.Fatalf("ReadFile()=%v; want nil error", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("second dump diff -want +got:\n%s", diff)
	}
}

func TestServerDumpEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := startServer(ctx, t, dir)

	out := filepath.Join(dir, "out.json")
	err := NewClient(s.SockPath()).Dump(ctx, out)
	if err != nil {
		t.Fatalf("Dump()=%v; want nil error", err)
	}
	buf, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf), "[]\n"; got != want {
		t.Errorf("dump=%q; want %q", got, want)
	}
}

func TestServerBadMessages(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := startServer(ctx, t, dir)
	c := NewClient(s.SockPath())

	for _, raw := range []string{
		"",
		"not json\n",
		`{"cmd": ""}` + "\n",
		`{"cmd": "frob"}` + "\n",
		`{"cmd": "cap"}` + "\n",
		`{"cmd": "dump"}` + "\n",
		`{"cmd": "cap", "body": {"file": "x.c"`,
	} {
		conn, err := net.Dial("unix", s.SockPath())
		if err != nil {
			t.Fatal(err)
		}
		_, err = conn.Write([]byte(raw))
		if err != nil {
			t.Errorf("write %q: %v", raw, err)
		}
		conn.Close()
	}
	e := entry(dir, "ok.c")
	err := c.Cap(ctx, e)
	if err != nil {
		t.Fatalf("Cap()=%v; want nil error", err)
	}
	// a message terminated by EOF rather than newline.
	conn, err := net.Dial("unix", s.SockPath())
	if err != nil {
		t.Fatal(err)
	}
	buf, err := CapMessage(entry(dir, "eof.c")).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Write(buf[:len(buf)-1])
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	out := filepath.Join(dir, "out.json")
	err = c.Dump(ctx, out)
	if err != nil {
		t.Fatalf("Dump()=%v; want nil error", err)
	}
	got, err := compdb.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []compdb.Entry{e, entry(dir, "eof.c")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dump diff -want +got:\n%s", diff)
	}
	if got := s.State(); got != Listening {
		t.Errorf("State()=%s; want %s", got, Listening)
	}
	st := s.Stats()
	if st.Msgs != 9 || st.MsgErrs != 3 || st.Dumps != 1 || st.DumpErrs != 0 || st.WBytes == 0 {
		t.Errorf("Stats()=%s; want msgs=9 (errs=3) dumps=1 (errs=0) with bytes", st)
	}
}

func TestServerConcurrentCap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := startServer(ctx, t, dir)
	c := NewClient(s.SockPath())

	const n = 50
	var want []compdb.Entry
	for i := range n {
		want = append(want, entry(dir, fmt.Sprintf("f%02d.c", i)))
	}
	eg, gctx := errgroup.WithContext(ctx)
	for _, e := range want {
		eg.Go(func() error {
			return c.Cap(gctx, e)
		})
	}
	err := eg.Wait()
	if err != nil {
		t.Fatalf("Cap()=%v; want nil error", err)
	}
	out := filepath.Join(dir, "out.json")
	err = c.Dump(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	got, err := compdb.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	sortEntries := cmpopts.SortSlices(func(a, b compdb.Entry) bool { return a.File < b.File })
	if diff := cmp.Diff(want, got, sortEntries); diff != "" {
		t.Errorf("dump diff -want +got:\n%s", diff)
	}
}

func TestServerStop(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := startServer(ctx, t, dir)

	err := NewClient(s.SockPath()).Stop(ctx)
	if err != nil {
		t.Fatalf("Stop()=%v; want nil error", err)
	}
	s.wait(t)
	if got := s.State(); got != Stopped {
		t.Errorf("State()=%s; want %s", got, Stopped)
	}
	for _, fname := range []string{s.SockPath(), s.SockPath() + ".lock"} {
		_, err := os.Lstat(fname)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Lstat(%q)=%v; want %v", fname, err, fs.ErrNotExist)
		}
	}
	err = NewClient(s.SockPath()).Cap(ctx, entry(dir, "f.c"))
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Cap after stop=%v; want %v", err, ErrNotRunning)
	}
	err = s.Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown()=%v; want nil error", err)
	}

	// restart on the same socket.
	s2 := startServer(ctx, t, dir)
	out := filepath.Join(dir, "out.json")
	err = NewClient(s2.SockPath()).Dump(ctx, out)
	if err != nil {
		t.Errorf("Dump()=%v; want nil error", err)
	}
}

func TestServerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	s := NewServer(filepath.Join(dir, "fakecc.sock"))
	err := s.Listen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve()=%v; want nil error", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve didn't return after cancel")
	}
	_, err = os.Lstat(s.SockPath())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Lstat(%q)=%v; want %v", s.SockPath(), err, fs.ErrNotExist)
	}
}

func TestServerListenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("running", func(t *testing.T) {
		dir := t.TempDir()
		s := startServer(ctx, t, dir)
		err := NewServer(s.SockPath()).Listen(ctx)
		if !errors.Is(err, ErrSocketExists) {
			t.Errorf("Listen()=%v; want %v", err, ErrSocketExists)
		}
	})

	t.Run("stale", func(t *testing.T) {
		dir := t.TempDir()
		sockPath := filepath.Join(dir, "fakecc.sock")
		err := os.WriteFile(sockPath, nil, 0644)
		if err != nil {
			t.Fatal(err)
		}
		err = NewServer(sockPath).Listen(ctx)
		if !errors.Is(err, ErrSocketExists) {
			t.Errorf("Listen()=%v; want %v", err, ErrSocketExists)
		}
		// the stale socket is left as is.
		_, err = os.Lstat(sockPath)
		if err != nil {
			t.Errorf("Lstat(%q)=%v; want nil error", sockPath, err)
		}
	})

	t.Run("locked", func(t *testing.T) {
		dir := t.TempDir()
		sockPath := filepath.Join(dir, "fakecc.sock")
		lock, err := acquireLock(sockPath + ".lock")
		if err != nil {
			t.Fatal(err)
		}
		defer lock.Release()
		err = NewServer(sockPath).Listen(ctx)
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("Listen()=%v; want %v", err, ErrAlreadyRunning)
		}
	})

	t.Run("twice", func(t *testing.T) {
		dir := t.TempDir()
		s := startServer(ctx, t, dir)
		err := s.Listen(ctx)
		if err == nil {
			t.Errorf("Listen() in %s=nil error; want error", s.State())
		}
	})
}
