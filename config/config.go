// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads fakecc configuration from the environment.
//
// All processes of a session (the management command, the daemon and
// every shim started by the build) read the same environment variables,
// so the environment is the only configuration channel.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Environment variables.
const (
	// EnvMarker is set while running inside fakecc, to detect recursive calls.
	EnvMarker = "FAKECC"

	// EnvSock is the path of the daemon socket.
	EnvSock = "FAKECC_SOCK"

	// EnvBinPath is the shim directory created by install.
	EnvBinPath = "FAKECC_BIN_PATH"

	// EnvClangPath is the directory of the real clang.
	EnvClangPath = "FAKECC_CLANG_PATH"

	// EnvPass is a comma separated list of glob patterns of source
	// base names to compile without capture.
	EnvPass = "FAKECC_PASS"

	// EnvPassRec is a comma separated list of glob patterns of source
	// base names to capture and also compile.
	EnvPassRec = "FAKECC_PASS_REC"

	// EnvNoopProgs is a comma separated list of no-op tools to skip.
	EnvNoopProgs = "FAKECC_NOOP_PROGS"

	// EnvLogLevel is the log level (debug, info, warn, error).
	EnvLogLevel = "FAKECC_LOG_LEVEL"

	// EnvDaemonLog is a file to write daemon logs to.
	EnvDaemonLog = "FAKECC_DAEMON_LOG"
)

// DefaultSockName is the socket name in the current directory
// used when FAKECC_SOCK is not set.
const DefaultSockName = "fakecc.sock"

// Config is fakecc configuration.
type Config struct {
	// SockPath is the absolute path of the daemon socket.
	SockPath string

	// BinPath is the shim directory, or empty if not installed.
	BinPath string

	// ClangPath is the directory of the real clang given by
	// FAKECC_CLANG_PATH. If empty, clang is searched in Path.
	ClangPath string

	// Path is the search path (PATH).
	Path string

	// Pass and PassRec are source base name patterns.
	Pass    []string
	PassRec []string

	// NoopProgs are no-op tools to skip rather than forward.
	NoopProgs []string

	// LogLevel is the log level for shims and management commands.
	LogLevel log.Level

	// DaemonLog is a file to write daemon logs, or empty to inherit stderr.
	DaemonLog string
}

// LookupFunc is a function to look up an environment variable,
// such as os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load loads config from the environment.
// Relative paths are resolved against cwd.
func Load(lookup LookupFunc, cwd string) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	cfg := &Config{
		SockPath:  get(EnvSock),
		BinPath:   get(EnvBinPath),
		ClangPath: get(EnvClangPath),
		Path:      get("PATH"),
		NoopProgs: SplitList(get(EnvNoopProgs)),
		LogLevel:  log.WarnLevel,
		DaemonLog: get(EnvDaemonLog),
	}
	if cfg.SockPath == "" {
		cfg.SockPath = DefaultSockName
	}
	for _, p := range []*string{&cfg.SockPath, &cfg.BinPath, &cfg.ClangPath, &cfg.DaemonLog} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(cwd, *p)
		}
	}
	var err error
	cfg.Pass, err = parsePatterns(EnvPass, get(EnvPass))
	if err != nil {
		return nil, err
	}
	cfg.PassRec, err = parsePatterns(EnvPassRec, get(EnvPassRec))
	if err != nil {
		return nil, err
	}
	if s := get(EnvLogLevel); s != "" {
		cfg.LogLevel, err = log.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s=%q: %w", EnvLogLevel, s, err)
		}
	}
	return cfg, nil
}

// IsNoop reports whether the no-op tool name is enabled to skip.
func (c *Config) IsNoop(name string) bool {
	for _, n := range c.NoopProgs {
		if n == name {
			return true
		}
	}
	return false
}

// SplitList splits a comma separated list, dropping empty elements.
func SplitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		list = append(list, v)
	}
	return list
}

func parsePatterns(key, s string) ([]string, error) {
	patterns := SplitList(s)
	for i, p := range patterns {
		p = globPattern(p)
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", key, patterns[i], err)
		}
		patterns[i] = p
	}
	return patterns, nil
}

// globPattern converts fnmatch negated classes "[!...]" in p to
// "[^...]" for filepath.Match.
func globPattern(p string) string {
	var sb strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			sb.WriteByte(c)
			i++
			c = p[i]
		case c == '[' && !inClass:
			inClass = true
			sb.WriteByte(c)
			if i+1 < len(p) && p[i+1] == '!' {
				i++
				c = '^'
			} else {
				continue
			}
		case c == ']' && inClass:
			inClass = false
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
