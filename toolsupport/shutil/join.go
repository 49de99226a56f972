// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides POSIX shell quoting helpers.
package shutil

import "strings"

// Quote quotes s for a POSIX shell.
// Words consisting only of safe characters are returned as is.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafeRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join joins a command line args to a single string, so it can be
// pasted to a shell to rerun the same command.
func Join(args []string) string {
	qargs := make([]string, 0, len(args))
	for _, arg := range args {
		qargs = append(qargs, Quote(arg))
	}
	return strings.Join(qargs, " ")
}

func unsafeRune(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%_-+=:,./", r)
}
