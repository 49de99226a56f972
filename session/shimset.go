// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package session sets up a capture session: the shim directory,
// the daemon and the wrapped build command.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/identity"
)

// ShimSet is a directory of symlinks to the fakecc executable,
// one for each intercepted tool.
type ShimSet struct {
	// Dir is the shim directory.
	Dir string
}

// Install creates a new shim directory linking to self.
func Install(self string) (*ShimSet, error) {
	dir, err := os.MkdirTemp("", "fakecc-bin-")
	if err != nil {
		return nil, err
	}
	for _, name := range identity.ShimNames() {
		err := os.Symlink(self, filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to install %s: %w", name, err), os.RemoveAll(dir))
		}
	}
	return &ShimSet{Dir: dir}, nil
}

// Remove removes the shim directory.
func (s *ShimSet) Remove() error {
	return os.RemoveAll(s.Dir)
}

// WriteExports writes shell commands to use the shim set with the
// daemon on sockPath.
func (s *ShimSet) WriteExports(w io.Writer, sockPath string) error {
	_, err := fmt.Fprintf(w, "export PATH=\"%s:$PATH\"\nexport %s=\"%s\"\nexport %s=\"%s\"\n",
		s.Dir,
		config.EnvBinPath, s.Dir,
		config.EnvSock, sockPath)
	return err
}
