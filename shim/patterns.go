// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shim

import "path/filepath"

// Patterns are glob patterns of source base names to filter captures.
type Patterns struct {
	// Pass are patterns of sources to compile without capture.
	Pass []string

	// PassRec are patterns of sources to capture and also compile.
	PassRec []string
}

// IsPass reports whether file matches a pass pattern.
func (p Patterns) IsPass(file string) bool {
	return match(p.Pass, file)
}

// IsPassRec reports whether file matches a pass-and-record pattern.
func (p Patterns) IsPassRec(file string) bool {
	return match(p.PassRec, file)
}

func match(patterns []string, file string) bool {
	base := filepath.Base(file)
	for _, p := range patterns {
		// patterns are validated by config.Load.
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
