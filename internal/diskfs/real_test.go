package diskfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Stat_Returns_NotExist_When_Path_Missing(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()

	_, err := fsys.Stat(filepath.Join(dir, "missing"))

	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

func Test_RealFS_OpenFile_Creates_And_Round_Trips(t *testing.T) {
	fsys := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "arena")

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek: %v", err)
	}

	buf := make([]byte, 5)
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(buf) != "hello" {
		t.Fatalf("read=%q, want hello", buf)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := fsys.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
