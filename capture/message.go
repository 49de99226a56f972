// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package capture implements the capture daemon and its protocol.
//
// A client connects to the daemon's Unix domain socket, writes exactly
// one JSON message terminated by a newline, and disconnects:
//
//	{"cmd":"cap","body":{"arguments":[...],"directory":"...","file":"...","output":"..."}}
//	{"cmd":"dump","path":"/abs/compile_commands.json"}
//	{"cmd":"stop"}
//
// No response is sent. The daemon handles one connection at a time in
// accept order, so the order of captured entries is the order in which
// the daemon accepted the connections.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.chromium.org/infra/build/fakecc/compdb"
)

// Commands of the protocol.
const (
	// CmdCap appends the body to the capture buffer.
	CmdCap = "cap"
	// CmdDump writes the capture buffer to path.
	CmdDump = "dump"
	// CmdStop stops the daemon.
	CmdStop = "stop"
)

// maxMessageSize is the maximum size of a single message.
// Compile command lines of large projects can be long, but not this long.
const maxMessageSize = 64 << 20

// Message is a message sent to the daemon.
type Message struct {
	Cmd  string        `json:"cmd"`
	Body *compdb.Entry `json:"body,omitempty"`
	Path string        `json:"path,omitempty"`
}

// CapMessage returns a message to capture e.
func CapMessage(e compdb.Entry) Message {
	return Message{Cmd: CmdCap, Body: &e}
}

// DumpMessage returns a message to dump the capture buffer to path.
func DumpMessage(path string) Message {
	return Message{Cmd: CmdDump, Path: path}
}

// StopMessage returns a message to stop the daemon.
func StopMessage() Message {
	return Message{Cmd: CmdStop}
}

// Marshal encodes msg as a single line.
func (msg Message) Marshal() ([]byte, error) {
	buf, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// ParseMessage decodes a single message.
func ParseMessage(buf []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(buf, &msg)
	if err != nil {
		return Message{}, fmt.Errorf("message decode failed: %w", err)
	}
	if msg.Cmd == "" {
		return Message{}, errors.New("message decode failed: no cmd")
	}
	return msg, nil
}
