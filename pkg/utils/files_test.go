package utils

import (
	"path/filepath"
	"testing"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"prog.mypl", ".mbc", "prog.mbc"},
		{"dir/prog.masm", ".mbc", "dir/prog.mbc"},
		{"prog", ".mbc", "prog.mbc"},
		{"a.b/prog", ".mbc", "a.b/prog.mbc"},
	}
	for _, tt := range tests {
		if got := ReplaceExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("ReplaceExt(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestIsListing(t *testing.T) {
	for path, want := range map[string]bool{"a.masm": true, "A.MASM": true, "a.mypl": false, "masm": false} {
		if got := IsListing(path); got != want {
			t.Errorf("IsListing(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestGetPathInfo(t *testing.T) {
	full, dir, err := GetPathInfo("x/../prog.mypl")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(full) || filepath.Base(full) != "prog.mypl" {
		t.Errorf("fullPath = %q", full)
	}
	if dir != filepath.Dir(full) {
		t.Errorf("parentDir = %q, want %q", dir, filepath.Dir(full))
	}
}
