// Package pdftest writes small AcroForm documents for tests.
//
// The output is a classic (non-stream) xref PDF with one text widget per
// field. Field names containing a dot produce a parent/kid hierarchy, so
// "Group.Name" is a terminal field "Name" under a non-terminal "Group".
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// TemplateOptions describes the generated document
type TemplateOptions struct {
	Fields     []string
	Pages      int // defaults to 1
	FieldPage  int // 1-based page carrying the widgets, defaults to 1
	NoAcroForm bool
}

// StandardFields are the six fields of the control-copy template
var StandardFields = []string{"Client", "ProSystem's #", "Tax Year", "Return Type", "File Directory", "States"}

// Template returns the control-copy template with the standard fields on one page
func Template() []byte {
	return FormTemplate(TemplateOptions{Fields: StandardFields})
}

// FormTemplate builds a document per opts
func FormTemplate(opts TemplateOptions) []byte {
	pages := opts.Pages
	if pages < 1 {
		pages = 1
	}
	fieldPage := opts.FieldPage
	if fieldPage < 1 || fieldPage > pages {
		fieldPage = 1
	}

	w := &writer{}
	catalog := w.reserve()
	pagesObj := w.reserve()
	acroForm := w.reserve()
	font := w.reserve()

	pageRefs := make([]int, pages)
	contentRefs := make([]int, pages)
	for i := range pageRefs {
		pageRefs[i] = w.reserve()
		contentRefs[i] = w.reserve()
	}

	var topLevel []int
	widgetsByPage := map[int][]int{}
	groups := map[string]int{}
	groupKids := map[string][]int{}
	var groupOrder []string

	for i, name := range opts.Fields {
		y := 700 - i*40
		rect := fmt.Sprintf("[72 %d 400 %d]", y, y+20)
		page := pageRefs[fieldPage-1]

		parent, leaf, nested := strings.Cut(name, ".")
		widget := w.reserve()
		widgetsByPage[fieldPage] = append(widgetsByPage[fieldPage], widget)

		if !nested {
			w.set(widget, fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T %s /Rect %s /P %d 0 R /F 4 /DA (/Helv 10 Tf 0 g) >>",
				literal(name), rect, page))
			topLevel = append(topLevel, widget)
			continue
		}

		groupRef, ok := groups[parent]
		if !ok {
			groupRef = w.reserve()
			groups[parent] = groupRef
			groupOrder = append(groupOrder, parent)
			topLevel = append(topLevel, groupRef)
		}
		groupKids[parent] = append(groupKids[parent], widget)
		w.set(widget, fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T %s /Parent %d 0 R /Rect %s /P %d 0 R /F 4 /DA (/Helv 10 Tf 0 g) >>",
			literal(leaf), groupRef, rect, page))
	}

	for _, g := range groupOrder {
		w.set(groups[g], fmt.Sprintf("<< /T %s /Kids %s >>", literal(g), refs(groupKids[g])))
	}

	if opts.NoAcroForm {
		w.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))
	} else {
		w.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pagesObj, acroForm))
	}
	w.set(pagesObj, fmt.Sprintf("<< /Type /Pages /Kids %s /Count %d >>", refs(pageRefs), pages))
	w.set(acroForm, fmt.Sprintf("<< /Fields %s /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %d 0 R >> >> >>", refs(topLevel), font))
	w.set(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i := range pageRefs {
		annots := ""
		if ws := widgetsByPage[i+1]; len(ws) > 0 {
			annots = " /Annots " + refs(ws)
		}
		w.set(pageRefs[i], fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /Helv %d 0 R >> >> /Contents %d 0 R%s >>",
			pagesObj, font, contentRefs[i], annots))

		content := fmt.Sprintf("BT /Helv 12 Tf 72 750 Td (Control copy page %d) Tj ET", i+1)
		w.set(contentRefs[i], fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	return w.bytes(catalog)
}

type writer struct {
	objects []string
}

func (w *writer) reserve() int {
	w.objects = append(w.objects, "")
	return len(w.objects)
}

func (w *writer) set(num int, body string) {
	w.objects[num-1] = body
}

func (w *writer) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(w.objects))
	for i, body := range w.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(w.objects)+1, root, xref)
	return buf.Bytes()
}

func refs(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d 0 R", n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}
