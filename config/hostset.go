package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// HostSet is an immutable set of lowercase hostnames.
type HostSet struct {
	hosts map[string]struct{}
}

func NewHostSet(hosts ...string) *HostSet {
	s := &HostSet{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		if h = normalizeHost(h); h != "" {
			s.hosts[h] = struct{}{}
		}
	}
	return s
}

// Contains reports whether host is in the set. A nil set contains nothing.
func (s *HostSet) Contains(host string) bool {
	if s == nil {
		return false
	}
	_, ok := s.hosts[normalizeHost(host)]
	return ok
}

func (s *HostSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.hosts)
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}

// ParseHostSet reads one host per line. Blank lines and lines starting with
// '#' are ignored.
func ParseHostSet(r io.Reader) (*HostSet, error) {
	var hosts []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewHostSet(hosts...), nil
}

// LoadHostSet reads the host list at path. A missing file yields an empty
// set and fs.ErrNotExist so the caller can decide to warn.
func LoadHostSet(path string) (*HostSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewHostSet(), err
		}
		return nil, fmt.Errorf("open host list: %w", err)
	}
	defer f.Close()

	set, err := ParseHostSet(f)
	if err != nil {
		return nil, fmt.Errorf("read host list %s: %w", path, err)
	}
	return set, nil
}
