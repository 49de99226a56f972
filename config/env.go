// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"path/filepath"
	"strings"
)

// StripEnv returns a copy of env without the given keys.
func StripEnv(env []string, keys ...string) []string {
	ret := make([]string, 0, len(env))
	for _, e := range env {
		k, _, _ := strings.Cut(e, "=")
		drop := false
		for _, key := range keys {
			if k == key {
				drop = true
				break
			}
		}
		if drop {
			continue
		}
		ret = append(ret, e)
	}
	return ret
}

// SetEnv returns a copy of env with key set to value.
func SetEnv(env []string, key, value string) []string {
	return append(StripEnv(env, key), key+"="+value)
}

// LookupEnv looks up key in env. The last definition wins.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// ChildEnv returns the environment for processes of a session whose
// shims are installed in binPath: binPath is prepended to PATH, the
// session variables are set and the recursion marker is removed.
func ChildEnv(env []string, binPath, sockPath string) []string {
	path := binPath
	if p, ok := LookupEnv(env, "PATH"); ok && p != "" {
		path = binPath + string(filepath.ListSeparator) + p
	}
	env = StripEnv(env, EnvMarker)
	env = SetEnv(env, "PATH", path)
	env = SetEnv(env, EnvBinPath, binPath)
	env = SetEnv(env, EnvSock, sockPath)
	return env
}
