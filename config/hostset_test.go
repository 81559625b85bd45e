package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseHostSet(t *testing.T) {
	list := `
# spam sites
spam.example.com
  Tracker.Example.NET

# trailing dot is ignored
evil.example.org.
`
	set, err := ParseHostSet(strings.NewReader(list))
	if err != nil {
		t.Fatalf("ParseHostSet() error = %v", err)
	}

	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
	for _, host := range []string{"spam.example.com", "tracker.example.net", "EVIL.example.org"} {
		if !set.Contains(host) {
			t.Errorf("expected set to contain %q", host)
		}
	}
	for _, host := range []string{"", "# spam sites", "example.com", "sub.spam.example.com"} {
		if set.Contains(host) {
			t.Errorf("did not expect set to contain %q", host)
		}
	}
}

func TestHostSet_Nil(t *testing.T) {
	var set *HostSet
	if set.Contains("example.com") {
		t.Error("nil set must contain nothing")
	}
	if set.Len() != 0 {
		t.Error("nil set must be empty")
	}
}

func TestLoadHostSet(t *testing.T) {
	path := writeFile(t, "banned.txt", "a.example.com\nb.example.com\n")
	set, err := LoadHostSet(path)
	if err != nil {
		t.Fatalf("LoadHostSet() error = %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
}

func TestLoadHostSet_Missing(t *testing.T) {
	set, err := LoadHostSet(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if set == nil || set.Len() != 0 {
		t.Error("expected an empty set for a missing file")
	}
}
