package filestore

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"relative", "src/main.go", "/src/main.go"},
		{"absolute", "/src/main.go", "/src/main.go"},
		{"doubled leading", "//src/main.go", "/src/main.go"},
		{"doubled inner", "/src//lib///a.js", "/src/lib/a.js"},
		{"trailing slash kept", "/src/", "/src/"},
		{"whitespace", "  notes.md ", "/notes.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStoreReadWriteDelete(t *testing.T) {
	s := New()
	s.Write("index.html", "<h1>hi</h1>")

	content, ok := s.Read("/index.html")
	if !ok || content != "<h1>hi</h1>" {
		t.Fatalf("Read = %q, %v", content, ok)
	}

	s.Write("//index.html", "v2")
	if content, _ := s.Read("index.html"); content != "v2" {
		t.Errorf("overwrite through unnormalized path: got %q", content)
	}
	if s.Len() != 1 {
		t.Errorf("expected one entry, got %d", s.Len())
	}

	if !s.Delete("index.html") {
		t.Error("Delete returned false for an existing file")
	}
	if s.Delete("index.html") {
		t.Error("Delete returned true for a missing file")
	}
	if s.Exists("/index.html") {
		t.Error("file still exists after delete")
	}
}

func TestStoreList(t *testing.T) {
	s := New()
	s.Write("/src/b.js", "b")
	s.Write("/src/a.js", "a")
	s.Write("/docs/readme.md", "r")
	s.Write("/.extensions/git.toml", "x")

	got := s.List("src")
	want := []string{"/src/a.js", "/src/b.js"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List(src) = %v, want %v", got, want)
	}

	if all := s.List(""); len(all) != 4 {
		t.Errorf("List(\"\") returned %d paths, want 4", len(all))
	}

	if got := s.List("/nothing/"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestStoreSnapshotLoad(t *testing.T) {
	s := New()
	s.Write("/a.txt", "a")
	snap := s.Snapshot()

	// Mutating the snapshot must not leak into the store.
	snap["/b.txt"] = "b"
	if s.Exists("/b.txt") {
		t.Fatal("snapshot aliases store contents")
	}

	other := New()
	other.Load(map[string]string{"c.txt": "c", "//d//e.txt": "e"})
	if !other.Exists("/c.txt") || !other.Exists("/d/e.txt") {
		t.Errorf("Load did not normalize keys: %v", other.List(""))
	}

	other.Clear()
	if other.Len() != 0 {
		t.Errorf("Clear left %d files", other.Len())
	}
}
