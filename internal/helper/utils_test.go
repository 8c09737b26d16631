package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewChunkID(t *testing.T) {
	a, err := NewChunkID()
	if err != nil {
		t.Fatalf("NewChunkID: %v", err)
	}
	b, _ := NewChunkID()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	id, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("not a uuid: %s", a)
	}
	if id.Version() != 7 {
		t.Fatalf("version = %d, want 7", id.Version())
	}
	if a >= b {
		t.Fatalf("ids not ordered: %s then %s", a, b)
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyPrint(&buf, map[string]int{"chunks": 2}); err != nil {
		t.Fatalf("PrettyPrint: %v", err)
	}
	if got := buf.String(); got != "{\n  \"chunks\": 2\n}\n" {
		t.Fatalf("output = %q", got)
	}
	if err := PrettyPrint(&buf, make(chan int)); err == nil || !strings.Contains(err.Error(), "chan int") {
		t.Fatalf("want encode error, got %v", err)
	}
}

func TestCreateParentFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.db")
	if err := CreateParentFolder(path); err != nil {
		t.Fatalf("CreateParentFolder: %v", err)
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil || !info.IsDir() {
		t.Fatalf("parent folder missing: %v", err)
	}
	if err := CreateParentFolder("uploaded_file.pdf"); err != nil {
		t.Fatalf("bare filename: %v", err)
	}
}
