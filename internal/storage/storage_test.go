package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEncryptRoundTrip(t *testing.T) {
	plain := []byte("%PDF-1.7 booklet body")
	enc, err := Encrypt(plain, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(enc, []byte(FormatGCM)) {
		t.Fatalf("missing GCM magic: %q", enc[:8])
	}
	got, format, err := Decrypt(enc, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatGCM || !bytes.Equal(got, plain) {
		t.Errorf("Decrypt = (%q, %s)", got, format)
	}
	if _, _, err := Decrypt(enc, "wrong"); err == nil {
		t.Error("wrong password decrypted")
	}
}

func TestDecryptLegacyCBC(t *testing.T) {
	plain := bytes.Repeat([]byte("x"), 33)
	enc, err := encryptCBC(plain, "pw")
	if err != nil {
		t.Fatal(err)
	}
	got, format, err := Decrypt(enc, "pw")
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatCBC || !bytes.Equal(got, plain) {
		t.Errorf("Decrypt = (%q, %s)", got, format)
	}

	enc[len(enc)-1] ^= 0xff
	if _, _, err := Decrypt(enc, "pw"); err == nil {
		t.Error("tampered CBC payload passed hash check")
	}
}

func TestDecryptRejectsUnknownFormat(t *testing.T) {
	if _, _, err := Decrypt([]byte("NOTMAGIC-data"), "pw"); err == nil {
		t.Error("expected error")
	}
	if _, _, err := Decrypt([]byte("abc"), "pw"); err == nil {
		t.Error("expected error for short input")
	}
}

func TestLocalPutGet(t *testing.T) {
	for _, pw := range []string{"", "secret"} {
		l, err := NewLocal(t.TempDir(), pw)
		if err != nil {
			t.Fatal(err)
		}
		ctx := context.Background()
		if err := l.Put(ctx, OutputKey("j1"), []byte("%PDF"), Metadata{"name": "a.pdf"}); err != nil {
			t.Fatal(err)
		}
		data, meta, err := l.Get(ctx, OutputKey("j1"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "%PDF" || meta["name"] != "a.pdf" {
			t.Errorf("password %q: got (%q, %v)", pw, data, meta)
		}
		raw, _ := os.ReadFile(filepath.Join(l.dir, OutputKey("j1")))
		if encrypted := bytes.HasPrefix(raw, []byte(FormatGCM)); encrypted != (pw != "") {
			t.Errorf("password %q: on-disk encrypted = %v", pw, encrypted)
		}
	}
}

func TestLocalMissingAndDelete(t *testing.T) {
	l, _ := NewLocal(t.TempDir(), "")
	ctx := context.Background()
	if _, _, err := l.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	_ = l.Put(ctx, "k", []byte("v"), nil)
	if err := l.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(ctx, "k"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if _, _, err := l.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}

func TestLocalKeysStayInsideDir(t *testing.T) {
	dir := t.TempDir()
	l, _ := NewLocal(filepath.Join(dir, "store"), "")
	if err := l.Put(context.Background(), "../../escape", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape")); err == nil {
		t.Error("key escaped the store directory")
	}
	if err := l.Put(context.Background(), "x"+metaSuffix, nil, nil); err == nil {
		t.Error("sidecar key accepted")
	}
}

func TestLocalPrune(t *testing.T) {
	l, _ := NewLocal(t.TempDir(), "")
	ctx := context.Background()
	_ = l.Put(ctx, InputKey("old"), []byte("1"), nil)
	_ = l.Put(ctx, InputKey("new"), []byte("2"), nil)

	old := time.Now().Add(-48 * time.Hour)
	p, _ := l.path(InputKey("old"))
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := l.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	var left []string
	for _, id := range []string{"old", "new"} {
		if _, _, err := l.Get(ctx, InputKey(id)); err == nil {
			left = append(left, id)
		}
	}
	if diff := cmp.Diff([]string{"new"}, left); diff != "" {
		t.Errorf("remaining (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(p + metaSuffix); err == nil {
		t.Error("sidecar of pruned blob left behind")
	}
}
