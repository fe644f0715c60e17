package pdfengine

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/bookletd/internal/document"
)

type pageKey struct {
	src   *Source
	index int
}

// renderer turns document pages into single-page PDF files. Source pages
// are extracted once per render and reused.
type renderer struct {
	engine    *Engine
	extracted map[pageKey][]byte
}

type form struct {
	ref    types.IndirectRef
	width  float64
	height float64
}

func (r *renderer) page(p *document.Page) ([]byte, error) {
	ops := p.Ops()
	if src, idx, ok := p.Origin(); ok {
		base, err := r.extract(src, idx)
		if err != nil {
			return nil, err
		}
		if len(ops) == 0 {
			return base, nil
		}
		return r.overlay(base, ops)
	}

	var texts []document.TextOp
	for _, op := range ops {
		if t, ok := op.(document.TextOp); ok {
			texts = append(texts, t)
		}
	}
	if len(texts) == len(ops) {
		return writeMinimal([]minimalPage{{size: p.Size(), texts: texts}}), nil
	}
	return r.overlay(writeMinimal([]minimalPage{{size: p.Size()}}), ops)
}

func (r *renderer) extract(src document.Source, index int) ([]byte, error) {
	s, ok := src.(*Source)
	if !ok {
		return nil, fmt.Errorf("page source %T was not parsed by this engine", src)
	}
	if index < 0 || index >= s.PageCount() {
		return nil, &document.PageIndexError{Index: index, Count: s.PageCount()}
	}
	key := pageKey{src: s, index: index}
	if b, ok := r.extracted[key]; ok {
		return b, nil
	}
	single, err := pdfcpu.ExtractPages(s.ctx, []int{index + 1}, false)
	if err != nil {
		return nil, fmt.Errorf("extract page %d: %w", index+1, err)
	}
	b, err := r.engine.write(single)
	if err != nil {
		return nil, err
	}
	r.extracted[key] = b
	return b, nil
}

// overlay draws ops on top of the single page in base. Embedded pages are
// rendered, appended to base as extra pages, turned into form XObjects and
// then dropped again by extracting page 1.
func (r *renderer) overlay(base []byte, ops []document.Op) ([]byte, error) {
	files := [][]byte{base}
	var embeds []string
	seen := map[string]bool{}
	for _, op := range ops {
		po, ok := op.(document.PlaceOp)
		if !ok || seen[po.Embedded.Key] {
			continue
		}
		seen[po.Embedded.Key] = true
		b, err := r.page(po.Embedded.Page())
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", po.Embedded.Key, err)
		}
		files = append(files, b)
		embeds = append(embeds, po.Embedded.Key)
	}

	merged, err := r.engine.merge(files)
	if err != nil {
		return nil, err
	}
	pctx, err := r.engine.read(merged)
	if err != nil {
		return nil, err
	}

	forms := make(map[string]form, len(embeds))
	for i, key := range embeds {
		f, err := formXObject(pctx, i+2)
		if err != nil {
			return nil, fmt.Errorf("form for %s: %w", key, err)
		}
		forms[key] = f
	}

	pageDict, _, _, err := pctx.PageDict(1, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil {
		return nil, errors.New("base page missing")
	}
	orig, err := pageContent(pctx, pageDict, 1)
	if err != nil {
		return nil, err
	}
	res, err := resources(pctx, pageDict)
	if err != nil {
		return nil, err
	}
	xobjects, err := subDict(pctx, res, "XObject")
	if err != nil {
		return nil, err
	}
	fonts, err := subDict(pctx, res, "Font")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if len(orig) > 0 {
		buf.WriteString("q\n")
		buf.Write(orig)
		buf.WriteString("\nQ\n")
	}
	for _, op := range ops {
		switch o := op.(type) {
		case document.PlaceOp:
			f := forms[o.Embedded.Key]
			name := xobjectName(o.Embedded)
			xobjects[name] = f.ref
			writePlacement(&buf, name, o.Rect, f.width, f.height)
		case document.TextOp:
			name := fontName(o.Font)
			fonts[name] = fontDict(o.Font.Name)
			writeText(&buf, name, o)
		}
	}

	sd, err := pctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	ref, err := pctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}
	pageDict["Contents"] = *ref
	pageDict["Resources"] = res

	single, err := pdfcpu.ExtractPages(pctx, []int{1}, false)
	if err != nil {
		return nil, err
	}
	return r.engine.write(single)
}

// formXObject wraps page pageNr of pctx in a form XObject whose bounding
// box starts at the origin and matches the page's visible size.
func formXObject(pctx *model.Context, pageNr int) (form, error) {
	pageDict, _, inh, err := pctx.PageDict(pageNr, false)
	if err != nil {
		return form{}, err
	}
	if pageDict == nil || inh == nil {
		return form{}, fmt.Errorf("page %d missing", pageNr)
	}
	box := inh.CropBox
	if box == nil {
		box = inh.MediaBox
	}
	if box == nil {
		return form{}, fmt.Errorf("page %d has no media box", pageNr)
	}
	content, err := pageContent(pctx, pageDict, pageNr)
	if err != nil {
		return form{}, err
	}

	w, h := box.Width(), box.Height()
	rot := ((inh.Rotate % 360) + 360) % 360
	var buf bytes.Buffer
	buf.WriteString("q ")
	if rot != 0 {
		buf.Write(model.ContentBytesForPageRotation(rot, w, h))
		if rot == 90 || rot == 270 {
			w, h = h, w
		}
	}
	fmt.Fprintf(&buf, "1 0 0 1 %s %s cm\n", num(-box.LL.X), num(-box.LL.Y))
	buf.Write(content)
	buf.WriteString("\nQ")

	sd, err := pctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return form{}, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")
	sd.Dict["BBox"] = types.RectForWidthAndHeight(0, 0, w, h).Array()
	res, err := inheritedResources(pctx, pageDict)
	if err != nil {
		return form{}, err
	}
	if res != nil {
		sd.Dict["Resources"] = res
	}
	if err := sd.Encode(); err != nil {
		return form{}, err
	}
	ref, err := pctx.IndRefForNewObject(*sd)
	if err != nil {
		return form{}, err
	}
	return form{ref: *ref, width: w, height: h}, nil
}

func pageContent(pctx *model.Context, pageDict types.Dict, pageNr int) ([]byte, error) {
	if _, ok := pageDict.Find("Contents"); !ok {
		return nil, nil
	}
	return pctx.PageContent(pageDict, pageNr)
}

// inheritedResources returns the Resources entry of pageDict or its
// nearest ancestor, undereferenced.
func inheritedResources(pctx *model.Context, pageDict types.Dict) (types.Object, error) {
	d := pageDict
	for depth := 0; d != nil && depth < 32; depth++ {
		if res, ok := d.Find("Resources"); ok {
			return res, nil
		}
		parent, ok := d.Find("Parent")
		if !ok {
			return nil, nil
		}
		obj, err := pctx.Dereference(parent)
		if err != nil {
			return nil, err
		}
		d, _ = obj.(types.Dict)
	}
	return nil, nil
}

// resources returns a private copy of the page's resource dictionary.
func resources(pctx *model.Context, pageDict types.Dict) (types.Dict, error) {
	obj, err := inheritedResources(pctx, pageDict)
	if err != nil || obj == nil {
		return types.Dict{}, err
	}
	return copyDict(pctx, obj)
}

// subDict replaces d[key] with a private copy and returns it.
func subDict(pctx *model.Context, d types.Dict, key string) (types.Dict, error) {
	obj, ok := d.Find(key)
	if !ok {
		sub := types.Dict{}
		d[key] = sub
		return sub, nil
	}
	sub, err := copyDict(pctx, obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	d[key] = sub
	return sub, nil
}

func copyDict(pctx *model.Context, obj types.Object) (types.Dict, error) {
	obj, err := pctx.Dereference(obj)
	if err != nil {
		return nil, err
	}
	src, ok := obj.(types.Dict)
	if !ok && obj != nil {
		return nil, fmt.Errorf("want dictionary, got %T", obj)
	}
	out := make(types.Dict, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

func fontDict(name document.StandardFont) types.Dict {
	return types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(string(name)),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
}
