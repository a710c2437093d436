package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"radio_one", "radio_one"},
		{"Slash/Name", "SlashName"},
		{"Colon:Name", "ColonName"},
		{"Trailing Dot.", "Trailing Dot"},
		{"<Invalid>", "Invalid"},
	}

	for _, tt := range tests {
		got := Sanitize(tt.input)
		if got != tt.expected {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "seg.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Expected written content, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no temp file left behind, got %d entries", len(entries))
	}
}

func TestHashAndVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	hash, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if hash != want {
		t.Errorf("Expected %s, got %s", want, hash)
	}

	ok, err := VerifyFile(path, want)
	if err != nil || !ok {
		t.Errorf("Expected file to verify, got %v, %v", ok, err)
	}
	if ok, _ := VerifyFile(path, "deadbeef"); ok {
		t.Error("Expected mismatched hash to fail verification")
	}
}

func TestDeleteFolderIfEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if err := DeleteFolderIfEmpty(dir); err != nil {
		t.Fatalf("DeleteFolderIfEmpty failed: %v", err)
	}
	if _, err := os.Stat(dir); !IsNotExist(err) {
		t.Errorf("Expected folder removed, got %v", err)
	}
	if err := DeleteFolderIfEmpty(dir); err != nil {
		t.Errorf("Expected missing folder to be ignored, got %v", err)
	}
}
