// Command booklet imposes a local PDF without the HTTP service.
package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "os/signal"
    "path/filepath"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/bookletd/internal/booklet"
    cfgpkg "github.com/local/bookletd/internal/config"
    "github.com/local/bookletd/internal/document"
    "github.com/local/bookletd/internal/filetype"
    "github.com/local/bookletd/internal/inspect"
    logpkg "github.com/local/bookletd/internal/logger"
    "github.com/local/bookletd/internal/pdfengine"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    var (
        in       = flag.String("in", "", "input PDF")
        out      = flag.String("out", "", "output PDF (default <name>_booklet.pdf next to input)")
        modeFlag = flag.String("mode", cfg.Booklet.DefaultMode, "imposition mode: a|single or b|split")
        sample   = flag.Int("sample", 0, "generate an N-page numbered input instead of reading -in")
        fold     = flag.Int("fold", cfg.Booklet.FoldFactor, "fold factor for split mode")
        password = flag.String("password", cfg.Booklet.PDFPassword, "password for encrypted input")
        trace    = flag.Bool("trace", false, "print the placement trace to stdout")
        verify   = flag.Bool("verify", false, "re-read the output and check its sheet count")
    )
    flag.Parse()

    opts := logpkg.FromConfig(cfg, "booklet")
    opts.Console = os.Stderr
    opts.SendToAxiom = false
    if err := logpkg.Init(opts); err != nil {
        fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
    }

    code := run(*in, *out, *modeFlag, *sample, *fold, cfg.Booklet.EmbedConcurrency, *password, *trace, *verify)
    logpkg.Close()
    os.Exit(code)
}

func run(in, out, modeFlag string, sample, fold, embed int, password string, trace, verify bool) int {
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    mode, err := booklet.ParseMode(modeFlag)
    if err != nil {
        log.Error().Err(err).Msg("bad -mode")
        return 2
    }

    var input []byte
    switch {
    case sample > 0:
        input = pdfengine.Sample(sample, document.A4)
        if in == "" {
            in = fmt.Sprintf("sample%d.pdf", sample)
        }
    case in != "":
        info, err := filetype.New().DetectFile(in)
        if err != nil {
            log.Error().Err(err).Str("in", in).Msg("read input")
            return 1
        }
        if !info.Supported {
            log.Error().Str("in", in).Str("mime", info.MIMEType).Msg(info.Description)
            return 1
        }
        if input, err = os.ReadFile(in); err != nil {
            log.Error().Err(err).Str("in", in).Msg("read input")
            return 1
        }
    default:
        fmt.Fprintln(os.Stderr, "usage: booklet -in file.pdf [-mode a|b] [-out path] or booklet -sample N")
        flag.PrintDefaults()
        return 2
    }
    if out == "" {
        out = filetype.OutputName(in)
        if sample == 0 {
            out = filepath.Join(filepath.Dir(in), out)
        }
    }

    engine := pdfengine.New()
    engine.Password = password
    pipeline := booklet.New(engine, booklet.Options{
        FoldFactor:  fold,
        Concurrency: embed,
    })
    res, err := pipeline.Run(ctx, mode, input)
    if err != nil {
        log.Error().Err(err).Str("kind", booklet.Kind(err)).Msg("booklet failed")
        return 1
    }

    if verify {
        rep, err := inspect.Verify(res.Output, mode, res.InputPages, fold)
        if err != nil {
            log.Error().Err(err).Msg("verification failed")
            return 1
        }
        log.Info().Int("pages", rep.Pages).Int("warnings", rep.Warnings).Msg("output verified")
    }

    if err := os.WriteFile(out, res.Output, 0o644); err != nil {
        log.Error().Err(err).Str("out", out).Msg("write output")
        return 1
    }
    if trace {
        fmt.Print(booklet.FormatTrace(res.Trace))
    }
    log.Info().
        Str("out", out).
        Int("input_pages", res.InputPages).
        Int("sheets", res.OutputPages).
        Int("blanks_added", res.BlanksAdded).
        Msg("written")
    return 0
}
