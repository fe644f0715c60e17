package storage

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "strings"
    "time"
)

const metaSuffix = ".meta.json"

// Local keeps blobs under a directory on disk. Keys map to relative paths.
type Local struct {
    dir      string
    password string
}

// NewLocal creates dir if needed.
func NewLocal(dir, password string) (*Local, error) {
    if dir == "" { dir = filepath.Join(os.TempDir(), "bookletd") }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return nil, fmt.Errorf("create result dir: %w", err)
    }
    return &Local{dir: dir, password: password}, nil
}

func (l *Local) path(key string) (string, error) {
    clean := filepath.Clean("/" + key)
    if clean == "/" || strings.HasSuffix(clean, metaSuffix) {
        return "", fmt.Errorf("invalid key %q", key)
    }
    return filepath.Join(l.dir, clean), nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
    p, err := l.path(key)
    if err != nil { return err }
    if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil { return err }
    md := Metadata{}
    for k, v := range meta { md[k] = v }
    body := data
    if l.password != "" {
        if body, err = Encrypt(data, l.password); err != nil {
            return fmt.Errorf("encrypt %s: %w", key, err)
        }
        md[metaEncryption] = FormatGCM
    }
    // Write to a temp file and rename so readers never see a partial blob.
    tmp := p + ".tmp"
    if err := os.WriteFile(tmp, body, 0o644); err != nil { return err }
    if err := os.Rename(tmp, p); err != nil { return err }
    raw, err := json.Marshal(md)
    if err != nil { return err }
    return os.WriteFile(p+metaSuffix, raw, 0o644)
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
    p, err := l.path(key)
    if err != nil { return nil, nil, err }
    data, err := os.ReadFile(p)
    if errors.Is(err, fs.ErrNotExist) { return nil, nil, ErrNotFound }
    if err != nil { return nil, nil, err }
    meta := Metadata{}
    if raw, err := os.ReadFile(p + metaSuffix); err == nil {
        _ = json.Unmarshal(raw, &meta)
    }
    if meta[metaEncryption] == "" { return data, meta, nil }
    if l.password == "" {
        return nil, nil, fmt.Errorf("object %s is encrypted but no password is configured", key)
    }
    plain, format, err := Decrypt(data, l.password)
    if err != nil { return nil, nil, fmt.Errorf("decrypt %s: %w", key, err) }
    meta[metaEncryption] = format
    return plain, meta, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
    p, err := l.path(key)
    if err != nil { return err }
    if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) { return err }
    _ = os.Remove(p + metaSuffix)
    return nil
}

// Prune removes blobs (and their sidecars) last modified before cutoff.
func (l *Local) Prune(ctx context.Context, cutoff time.Time) (int, error) {
    removed := 0
    err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
        if err != nil || d.IsDir() { return nil }
        if ctx.Err() != nil { return ctx.Err() }
        if strings.HasSuffix(path, metaSuffix) { return nil }
        info, err := d.Info()
        if err != nil || !info.ModTime().Before(cutoff) { return nil }
        if err := os.Remove(path); err == nil {
            removed++
            _ = os.Remove(path + metaSuffix)
        }
        return nil
    })
    return removed, err
}

func (l *Local) Ping(ctx context.Context) error {
    info, err := os.Stat(l.dir)
    if err != nil { return err }
    if !info.IsDir() { return fmt.Errorf("%s is not a directory", l.dir) }
    return nil
}
