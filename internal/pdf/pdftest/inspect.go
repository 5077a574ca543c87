package pdftest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var showText = regexp.MustCompile(`\((.*)\) Tj`)

// PageTexts returns, per page, the strings shown by the page's form XObjects.
// After flattening those are the baked field appearances.
func PageTexts(data []byte) ([][]string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}

	pages := make([][]string, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		resObj, found := pageDict.Find("Resources")
		if !found {
			continue
		}
		res, err := ctx.DereferenceDict(resObj)
		if err != nil || res == nil {
			return nil, fmt.Errorf("page %d resources: %w", pageNr, err)
		}
		xObj, found := res.Find("XObject")
		if !found {
			continue
		}
		xobjects, err := ctx.DereferenceDict(xObj)
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(xobjects))
		for name := range xobjects {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			sd, _, err := ctx.DereferenceStreamDict(xobjects[name])
			if err != nil {
				return nil, fmt.Errorf("page %d XObject %s: %w", pageNr, name, err)
			}
			if sd == nil {
				continue
			}
			if err := sd.Decode(); err != nil {
				return nil, err
			}
			for _, m := range showText.FindAllStringSubmatch(string(sd.Content), -1) {
				pages[pageNr-1] = append(pages[pageNr-1], m[1])
			}
		}
	}
	return pages, nil
}
