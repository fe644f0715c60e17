package orchestrator

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "path"
    "strings"

    "github.com/rs/zerolog/log"
)

// ObjectFetcher reads s3://bucket/key references; *storage.S3Client satisfies it.
type ObjectFetcher interface {
    FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetcher resolves the file_url of a JSON job request to bytes.
// Supports:
// - file://path (only when AllowFiles is set)
// - http(s):// URLs
// - s3://bucket/key (via S3)
type Fetcher struct {
    HTTP       *http.Client
    S3         ObjectFetcher
    AllowFiles bool
    // MaxBytes caps downloads; <= 0 means unlimited.
    MaxBytes int64
}

// ErrUnsupportedRef is returned for schemes the fetcher will not read.
var ErrUnsupportedRef = errors.New("unsupported file reference")

// ErrTooLarge is returned when a download exceeds MaxBytes.
var ErrTooLarge = errors.New("file exceeds upload limit")

// Fetch returns the referenced bytes and a file name derived from the ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
    // Strip optional fragment if present
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }

    var (
        rc  io.ReadCloser
        err error
    )
    switch {
    case strings.HasPrefix(ref, "s3://"):
        var data []byte
        data, err = f.fetchS3(ctx, ref)
        if err != nil { return nil, "", err }
        if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes { return nil, "", ErrTooLarge }
        return data, baseName(ref), nil
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        rc, err = f.openHTTP(ctx, ref)
    case strings.HasPrefix(ref, "file://"):
        if !f.AllowFiles {
            return nil, "", fmt.Errorf("%w: file:// references are disabled", ErrUnsupportedRef)
        }
        rc, err = os.Open(strings.TrimPrefix(ref, "file://"))
    default:
        return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
    }
    if err != nil { return nil, "", err }
    defer rc.Close()

    data, err := readLimited(rc, f.MaxBytes)
    if err != nil { return nil, "", err }
    return data, baseName(ref), nil
}

func (f *Fetcher) openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
    client := f.HTTP
    if client == nil { client = http.DefaultClient }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return nil, err }
    resp, err := client.Do(req)
    if err != nil { return nil, err }
    if resp.StatusCode != http.StatusOK {
        resp.Body.Close()
        return nil, fmt.Errorf("download %s: http %d", url, resp.StatusCode)
    }
    return resp.Body, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, s3url string) ([]byte, error) {
    if f.S3 == nil { return nil, fmt.Errorf("%w: s3 is not configured", ErrUnsupportedRef) }
    // s3://bucket/key
    p := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(p, "/")
    if slash <= 0 || slash == len(p)-1 { return nil, fmt.Errorf("invalid s3 url: %s", s3url) }
    bucket, key := p[:slash], p[slash+1:]
    data, err := f.S3.FetchObject(ctx, bucket, key)
    if err != nil { return nil, err }
    log.Info().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("fetched s3 pdf")
    return data, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
    if max <= 0 { return io.ReadAll(r) }
    data, err := io.ReadAll(io.LimitReader(r, max+1))
    if err != nil { return nil, err }
    if int64(len(data)) > max { return nil, ErrTooLarge }
    return data, nil
}

func baseName(ref string) string {
    if i := strings.Index(ref, "?"); i >= 0 { ref = ref[:i] }
    name := path.Base(ref)
    if name == "." || name == "/" { return "" }
    return name
}
