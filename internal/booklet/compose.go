package booklet

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/bookletd/internal/document"
)

// Item is one slot's worth of input for the composer. Src == nil marks an
// empty slot.
type Item struct {
	Src    *document.Document
	Index  int // 0-based page index in Src
	Number int // page number reported in the trace
}

// Placement records which page went into which slot of which sheet. Sheet
// and Slot are 1-based.
type Placement struct {
	Sheet int `json:"sheet"`
	Slot  int `json:"slot"`
	Page  int `json:"page"`
}

// FormatTrace renders a trace one line per placement.
func FormatTrace(trace []Placement) string {
	var b strings.Builder
	for _, p := range trace {
		fmt.Fprintf(&b, "sheet %d, slot %d: page %d\n", p.Sheet, p.Slot, p.Page)
	}
	return b.String()
}

// Composer tiles pages onto output sheets.
type Composer struct {
	Layout Layout
	// Concurrency bounds the copy+embed tasks of one sheet; <= 0 means one
	// task per slot.
	Concurrency int
}

// Compose appends one sheet per chunk of up to SlotsPerSheet items to out.
// The pages of a chunk are copied and embedded concurrently; drawing waits
// for the whole chunk and proceeds in slot order. Empty slots are left
// blank. It returns the trace of drawn placements.
func (c *Composer) Compose(ctx context.Context, out *document.Document, items []Item) ([]Placement, error) {
	var trace []Placement
	for start := 0; start < len(items); start += SlotsPerSheet {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + SlotsPerSheet
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		sheetNo := start/SlotsPerSheet + 1

		embedded, err := c.embedChunk(ctx, out, chunk)
		if err != nil {
			return nil, fmt.Errorf("sheet %d: %w", sheetNo, err)
		}

		sheet := out.AddBlankPage(c.Layout.Size)
		for slot, e := range embedded {
			if e == nil {
				continue
			}
			sheet.DrawPage(e, c.Layout.Slots[slot])
			p := Placement{Sheet: sheetNo, Slot: slot + 1, Page: chunk[slot].Number}
			trace = append(trace, p)
			log.Debug().Int("sheet", p.Sheet).Int("slot", p.Slot).Int("page", p.Page).Msg("page placed")
		}
	}
	return trace, nil
}

func (c *Composer) embedChunk(ctx context.Context, out *document.Document, chunk []Item) ([]*document.EmbeddedPage, error) {
	embedded := make([]*document.EmbeddedPage, len(chunk))
	g, _ := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, it := range chunk {
		if it.Src == nil {
			continue
		}
		i, it := i, it
		g.Go(func() error {
			copies, err := it.Src.CopyPages(it.Index)
			if err != nil {
				return err
			}
			e, err := out.EmbedPage(copies[0])
			if err != nil {
				return err
			}
			embedded[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embedded, nil
}
