package form

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Annotation flag bits (PDF 32000-1, table 165).
const (
	annotFlagHidden = 1 << 1
	annotFlagNoView = 1 << 5
)

// flattener bakes widget appearances into page content for one document
type flattener struct {
	ctx  *model.Context
	next int // XObject name counter, unique across the document
}

type widgetDraw struct {
	name   string
	ref    types.IndirectRef
	matrix [6]float64
}

// flatten draws every widget's normal appearance into its page as a form
// XObject, removes the widget annotations and drops the AcroForm, leaving a
// document with no interactive fields.
func flatten(ctx *model.Context) error {
	f := &flattener{ctx: ctx}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if err := f.page(pageNr); err != nil {
			return fmt.Errorf("page %d: %w", pageNr, err)
		}
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	delete(rootDict, "AcroForm")
	return nil
}

func (f *flattener) page(pageNr int) error {
	pageDict, _, _, err := f.ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("missing page dictionary")
	}

	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil
	}
	annots, err := f.ctx.DereferenceArray(annotsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Annots: %w", err)
	}

	var keep types.Array
	var draws []widgetDraw
	for _, annot := range annots {
		d, err := f.ctx.DereferenceDict(annot)
		if err != nil || d == nil || nameEntry(f.ctx, d, "Subtype") != "Widget" {
			keep = append(keep, annot)
			continue
		}
		if flags := intEntry(f.ctx, d, "F"); flags&(annotFlagHidden|annotFlagNoView) != 0 {
			continue
		}
		draw, ok, err := f.widget(d)
		if err != nil {
			return err
		}
		if ok {
			draws = append(draws, draw)
		}
	}

	if len(keep) == 0 {
		delete(pageDict, "Annots")
	} else {
		pageDict["Annots"] = keep
	}

	if len(draws) == 0 {
		return nil
	}
	if err := f.registerXObjects(pageDict, draws); err != nil {
		return err
	}
	return f.appendContent(pageDict, draws)
}

// widget resolves the normal appearance of a widget and the matrix that maps
// its bounding box onto the annotation rectangle.
func (f *flattener) widget(d types.Dict) (widgetDraw, bool, error) {
	apObj, found := d.Find("AP")
	if !found {
		return widgetDraw{}, false, nil
	}
	ap, err := f.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return widgetDraw{}, false, nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return widgetDraw{}, false, nil
	}

	ref, ok := nObj.(types.IndirectRef)
	if !ok {
		// Appearance state dictionary: pick the stream named by /AS.
		states, err := f.ctx.DereferenceDict(nObj)
		if err != nil || states == nil {
			return widgetDraw{}, false, nil
		}
		state := nameEntry(f.ctx, d, "AS")
		stateObj, found := states.Find(state)
		if state == "" || !found {
			return widgetDraw{}, false, nil
		}
		if ref, ok = stateObj.(types.IndirectRef); !ok {
			return widgetDraw{}, false, nil
		}
	}

	obj, err := f.ctx.Dereference(ref)
	if err != nil {
		return widgetDraw{}, false, fmt.Errorf("failed to dereference appearance stream: %w", err)
	}
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return widgetDraw{}, false, nil
	}

	rect, ok := numberArray(f.ctx, d, "Rect", 4)
	if !ok {
		return widgetDraw{}, false, nil
	}
	llx, lly := min(rect[0], rect[2]), min(rect[1], rect[3])
	w, h := abs(rect[2]-rect[0]), abs(rect[3]-rect[1])

	bbox, ok := numberArray(f.ctx, sd.Dict, "BBox", 4)
	if !ok {
		bbox = []float64{0, 0, w, h}
		sd.Dict["BBox"] = types.Array{types.Float(0), types.Float(0), types.Float(w), types.Float(h)}
	}
	if _, found := sd.Dict.Find("Subtype"); !found {
		sd.Dict["Type"] = types.Name("XObject")
		sd.Dict["Subtype"] = types.Name("Form")
	}

	bw, bh := abs(bbox[2]-bbox[0]), abs(bbox[3]-bbox[1])
	sx, sy := 1.0, 1.0
	if bw > 0 {
		sx = w / bw
	}
	if bh > 0 {
		sy = h / bh
	}
	bx, by := min(bbox[0], bbox[2]), min(bbox[1], bbox[3])

	f.next++
	return widgetDraw{
		name:   fmt.Sprintf("FlatFx%d", f.next),
		ref:    ref,
		matrix: [6]float64{sx, 0, 0, sy, llx - bx*sx, lly - by*sy},
	}, true, nil
}

// registerXObjects adds the appearance streams to the page's XObject resources,
// copying inherited resources onto the page first.
func (f *flattener) registerXObjects(pageDict types.Dict, draws []widgetDraw) error {
	res, err := f.resources(pageDict)
	if err != nil {
		return err
	}

	xobjects := types.Dict{}
	if obj, found := res.Find("XObject"); found {
		existing, err := f.ctx.DereferenceDict(obj)
		if err != nil {
			return fmt.Errorf("failed to dereference XObject resources: %w", err)
		}
		for k, v := range existing {
			xobjects[k] = v
		}
	}
	for _, d := range draws {
		xobjects[d.name] = d.ref
	}
	res["XObject"] = xobjects
	return nil
}

func (f *flattener) resources(pageDict types.Dict) (types.Dict, error) {
	d := pageDict
	for depth := 0; d != nil && depth <= maxFieldDepth; depth++ {
		if obj, found := d.Find("Resources"); found {
			res, err := f.ctx.DereferenceDict(obj)
			if err != nil {
				return nil, fmt.Errorf("failed to dereference Resources: %w", err)
			}
			if res == nil {
				break
			}
			if depth == 0 {
				return res, nil
			}
			copied := types.Dict{}
			for k, v := range res {
				copied[k] = v
			}
			pageDict["Resources"] = copied
			return copied, nil
		}
		parentObj, found := d.Find("Parent")
		if !found {
			break
		}
		parent, err := f.ctx.DereferenceDict(parentObj)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference page parent: %w", err)
		}
		d = parent
	}

	res := types.Dict{}
	pageDict["Resources"] = res
	return res, nil
}

// appendContent wraps the existing page content in q/Q and appends one
// stream painting every widget appearance.
func (f *flattener) appendContent(pageDict types.Dict, draws []widgetDraw) error {
	var buf bytes.Buffer
	var contents types.Array

	if obj, found := pageDict.Find("Contents"); found {
		existing, err := f.ctx.Dereference(obj)
		if err != nil {
			return fmt.Errorf("failed to dereference Contents: %w", err)
		}
		pre, err := newStream(f.ctx, []byte("q\n"), nil)
		if err != nil {
			return err
		}
		contents = append(contents, *pre)
		if arr, ok := existing.(types.Array); ok {
			contents = append(contents, arr...)
		} else {
			contents = append(contents, obj)
		}
		buf.WriteString("Q\n")
	}

	for _, d := range draws {
		m := d.matrix
		fmt.Fprintf(&buf, "q %s %s %s %s %s %s cm /%s Do Q\n",
			num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]), d.name)
	}

	post, err := newStream(f.ctx, buf.Bytes(), nil)
	if err != nil {
		return err
	}
	pageDict["Contents"] = append(contents, *post)
	return nil
}

// newStream encodes content as a new indirect stream object
func newStream(ctx *model.Context, content []byte, entries types.Dict) (*types.IndirectRef, error) {
	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	for k, v := range entries {
		sd.Dict[k] = v
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode stream: %w", err)
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to register stream: %w", err)
	}
	return ref, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
