package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"jellyhook/internal/fileutil"
)

func TestMoveFileRenames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "sub", "b.mkv")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := fileutil.MoveFile(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("destination content wrong: %q err=%v", data, err)
	}
}

func TestSHA512FileMatchesKnownDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	digest, err := fileutil.SHA512File(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	const want = "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
	if digest != want {
		t.Fatalf("unexpected digest: %s", digest)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if err := fileutil.CheckFreeSpace(dir, 1); err != nil {
		t.Fatalf("tiny requirement should pass: %v", err)
	}
	if err := fileutil.CheckFreeSpace(dir, int64(1)<<60); err == nil {
		t.Fatal("exabyte requirement should fail")
	}
}
