// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package iometrics counts I/O of the capture daemon.
package iometrics

import (
	"fmt"
	"sync"
)

// IOMetrics holds I/O metrics.
type IOMetrics struct {
	name string

	mu sync.Mutex

	msgs    int64
	msgErrs int64
	rBytes  int64
	dumps   int64
	dumpErr int64
	wBytes  int64
}

// New returns new iometrics for name.
func New(name string) *IOMetrics {
	return &IOMetrics{name: name}
}

// ReadDone counts when a message is read.
// n is the number of bytes, and err is an error to read or parse it.
func (m *IOMetrics) ReadDone(n int, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs++
	m.rBytes += int64(n)
	if err != nil {
		m.msgErrs++
	}
}

// WriteDone counts when a dump is written.
// n is the number of bytes, and err is a write error.
func (m *IOMetrics) WriteDone(n int64, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumps++
	m.wBytes += n
	if err != nil {
		m.dumpErr++
	}
}

// Name returns the name of the iometrics.
func (m *IOMetrics) Name() string {
	if m == nil {
		return "<nil>"
	}
	return m.name
}

// Stats holds iometrics.
type Stats struct {
	// Number of messages read.
	Msgs int64
	// Number of messages failed to read or parse.
	MsgErrs int64
	// Number of bytes of messages.
	RBytes int64

	// Number of dumps.
	Dumps int64
	// Number of dumps failed to write.
	DumpErrs int64
	// Number of bytes dumped.
	WBytes int64
}

func (s Stats) String() string {
	return fmt.Sprintf("msgs=%d (errs=%d, %dB) dumps=%d (errs=%d, %dB)", s.Msgs, s.MsgErrs, s.RBytes, s.Dumps, s.DumpErrs, s.WBytes)
}

// Stats returns the snapshot of the iometrics.
func (m *IOMetrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Msgs:     m.msgs,
		MsgErrs:  m.msgErrs,
		RBytes:   m.rBytes,
		Dumps:    m.dumps,
		DumpErrs: m.dumpErr,
		WBytes:   m.wBytes,
	}
}
