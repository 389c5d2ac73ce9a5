// Package env names the execution environments a pipe case can be declared
// to pass under.
package env

import (
	"fmt"
	"sort"
	"strings"
)

// Environment identifies the backend providing pipe syscalls.
type Environment uint8

const (
	// Libc is the native environment: the host kernel reached through libc
	// or raw syscalls.
	Libc Environment = iota + 1
	// Shadow is the simulated environment.
	Shadow
)

// All lists every environment in declaration order.
var All = []Environment{Libc, Shadow}

func (e Environment) String() string {
	switch e {
	case Libc:
		return "libc"
	case Shadow:
		return "shadow"
	default:
		return fmt.Sprintf("environment(%d)", uint8(e))
	}
}

// Parse converts "libc" or "shadow" (case-insensitive) to an Environment.
func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "libc":
		return Libc, nil
	case "shadow":
		return Shadow, nil
	}
	return 0, fmt.Errorf("unknown environment %q (want libc or shadow)", s)
}

// Set is an immutable collection of environments.
type Set struct {
	bits uint8
}

// NewSet returns a set holding envs.
func NewSet(envs ...Environment) Set {
	var s Set
	for _, e := range envs {
		s.bits |= 1 << e
	}
	return s
}

// Contains reports whether e is a member of s.
func (s Set) Contains(e Environment) bool {
	return s.bits&(1<<e) != 0
}

// Slice returns the members in declaration order.
func (s Set) Slice() []Environment {
	var out []Environment
	for _, e := range All {
		if s.Contains(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s Set) String() string {
	names := make([]string, 0, len(All))
	for _, e := range s.Slice() {
		names = append(names, e.String())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
