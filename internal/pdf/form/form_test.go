package form

import (
	"bytes"
	"context"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-batch-fill/internal/fieldmap"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
	"github.com/a3tai/pdf-batch-fill/internal/pdf/pdftest"
)

func standardValues() fieldmap.FieldValueMap {
	return fieldmap.FieldValueMap{
		{Name: "Client", Value: "Acme"},
		{Name: "ProSystem's #", Value: "1040-77"},
		{Name: "Tax Year", Value: "2023"},
		{Name: "Return Type", Value: "1040"},
		{Name: "File Directory", Value: "Clients/Acme"},
		{Name: "States", Value: "CA, NV"},
	}
}

// flattenedTexts returns the text shown by every flattened widget appearance
func flattenedTexts(t *testing.T, data []byte) []string {
	t.Helper()

	pages, err := pdftest.PageTexts(data)
	require.NoError(t, err)

	var texts []string
	for _, page := range pages {
		texts = append(texts, page...)
	}
	return texts
}

func TestLoadTemplate(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	assert.Equal(t, "control.pdf", tpl.Name())
	assert.Equal(t, 1, tpl.Pages())
	assert.Equal(t, pdftest.StandardFields, tpl.Fields())
	assert.Empty(t, tpl.MissingFields(fieldmap.TemplateFields()))
	assert.Greater(t, tpl.Size(), 0)
}

func TestLoadTemplate_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a pdf", data: []byte("Client,Tax Year\nAcme,2023\n")},
		{name: "truncated", data: pdftest.Template()[:64]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := LoadTemplate(tt.name, tt.data)
			require.Error(t, err)
			assert.Nil(t, tpl)
			assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeTemplateLoad), "got %v", err)
		})
	}
}

func TestLoadTemplate_NestedAndMissing(t *testing.T) {
	data := pdftest.FormTemplate(pdftest.TemplateOptions{Fields: []string{"Header.Client", "Tax Year"}})
	tpl, err := LoadTemplate("nested.pdf", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Header.Client", "Tax Year"}, tpl.Fields())
	assert.True(t, tpl.HasField("Client"))
	assert.True(t, tpl.HasField("Header.Client"))
	assert.False(t, tpl.HasField("client"))
	assert.Equal(t, []string{"ProSystem's #", "Return Type", "File Directory", "States"},
		tpl.MissingFields(fieldmap.TemplateFields()))
}

func TestLoadTemplate_WithoutAcroForm(t *testing.T) {
	tpl, err := LoadTemplate("plain.pdf", pdftest.FormTemplate(pdftest.TemplateOptions{
		Fields:     []string{"Client"},
		NoAcroForm: true,
	}))
	require.NoError(t, err)
	assert.Empty(t, tpl.Fields())
}

func TestFiller_Fill(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), standardValues())
	require.NoError(t, err)

	assert.Equal(t, 1, inst.Pages)
	require.Len(t, inst.Fields, 6)
	for _, f := range inst.Fields {
		assert.Equal(t, FieldApplied, f.Status, "field %s", f.Name)
		assert.Equal(t, 1, f.Widgets, "field %s", f.Name)
		assert.Nil(t, f.Warning)
	}
	assert.Empty(t, inst.Warnings())

	pages, err := api.PageCount(bytes.NewReader(inst.Data), NewConfiguration())
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	texts := flattenedTexts(t, inst.Data)
	for _, want := range []string{"Acme", "1040-77", "2023", "1040", "Clients/Acme", "CA, NV"} {
		assert.Contains(t, texts, want)
	}
}

func TestFiller_FlattenRemovesForm(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), standardValues())
	require.NoError(t, err)

	// The flattened output has no fields left to discover.
	flat, err := LoadTemplate("flat.pdf", inst.Data)
	require.NoError(t, err)
	assert.Empty(t, flat.Fields())

	ctx, err := api.ReadContext(bytes.NewReader(inst.Data), NewConfiguration())
	require.NoError(t, err)
	require.NoError(t, ctx.EnsurePageCount())
	pageDict, _, _, err := ctx.PageDict(1, false)
	require.NoError(t, err)
	_, hasAnnots := pageDict.Find("Annots")
	assert.False(t, hasAnnots)
}

func TestFiller_MissingFieldIsWarning(t *testing.T) {
	data := pdftest.FormTemplate(pdftest.TemplateOptions{Fields: []string{"Client", "Tax Year"}})
	tpl, err := LoadTemplate("partial.pdf", data)
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), standardValues())
	require.NoError(t, err)

	statuses := map[string]FieldStatus{}
	for _, f := range inst.Fields {
		statuses[f.Name] = f.Status
	}
	assert.Equal(t, FieldApplied, statuses["Client"])
	assert.Equal(t, FieldApplied, statuses["Tax Year"])
	assert.Equal(t, FieldNotFound, statuses["States"])
	assert.Equal(t, FieldNotFound, statuses["ProSystem's #"])

	warnings := inst.Warnings()
	require.Len(t, warnings, 4)
	for _, w := range warnings {
		assert.Equal(t, pdferrors.ErrorTypeFieldNotFound, w.Type)
		assert.True(t, w.Type.IsRecoverable())
	}

	texts := flattenedTexts(t, inst.Data)
	assert.ElementsMatch(t, []string{"Acme", "2023"}, texts)
}

func TestFiller_NestedFieldByPartialName(t *testing.T) {
	data := pdftest.FormTemplate(pdftest.TemplateOptions{Fields: []string{"Header.Client"}})
	tpl, err := LoadTemplate("nested.pdf", data)
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), fieldmap.FieldValueMap{{Name: "Client", Value: "Globex"}})
	require.NoError(t, err)
	require.Len(t, inst.Fields, 1)
	assert.Equal(t, FieldApplied, inst.Fields[0].Status)
	assert.Equal(t, []string{"Globex"}, flattenedTexts(t, inst.Data))
}

func TestFiller_CaseSensitiveNames(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), fieldmap.FieldValueMap{{Name: "client", Value: "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, FieldNotFound, inst.Fields[0].Status)
}

func TestFiller_TemplateNotMutated(t *testing.T) {
	original := pdftest.Template()
	tpl, err := LoadTemplate("control.pdf", original)
	require.NoError(t, err)
	snapshot := append([]byte(nil), tpl.data...)

	filler := NewFiller(tpl)
	for i := 0; i < 3; i++ {
		_, err := filler.Fill(context.Background(), standardValues())
		require.NoError(t, err)
	}

	assert.Equal(t, snapshot, tpl.data)
	assert.Equal(t, original, tpl.data)
	assert.Equal(t, pdftest.StandardFields, tpl.Fields())
}

func TestFiller_Deterministic(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)
	filler := NewFiller(tpl)

	first, err := filler.Fill(context.Background(), standardValues())
	require.NoError(t, err)
	second, err := filler.Fill(context.Background(), standardValues())
	require.NoError(t, err)

	assert.Equal(t, first.Fields, second.Fields)
	assert.ElementsMatch(t, flattenedTexts(t, first.Data), flattenedTexts(t, second.Data))
}

func TestFiller_MultiPageTemplate(t *testing.T) {
	data := pdftest.FormTemplate(pdftest.TemplateOptions{
		Fields:    pdftest.StandardFields,
		Pages:     3,
		FieldPage: 2,
	})
	tpl, err := LoadTemplate("multi.pdf", data)
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), standardValues())
	require.NoError(t, err)
	assert.Equal(t, 3, inst.Pages)
	assert.Contains(t, flattenedTexts(t, inst.Data), "Acme")
}

func TestFiller_CanceledContext(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inst, err := NewFiller(tpl).Fill(ctx, standardValues())
	require.Error(t, err)
	assert.Nil(t, inst)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeFill))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFiller_RendersAppearanceFromDA(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), fieldmap.FieldValueMap{{Name: "Client", Value: "Acme"}})
	require.NoError(t, err)

	streams := appearanceStreams(t, inst.Data)
	require.Len(t, streams, 1)
	assert.Contains(t, streams[0], "/Tx BMC")
	assert.Contains(t, streams[0], " 10 Tf")
	assert.Contains(t, streams[0], "(Acme) Tj")
}

func TestFiller_EmptyValueLeavesFieldBlank(t *testing.T) {
	tpl, err := LoadTemplate("control.pdf", pdftest.Template())
	require.NoError(t, err)

	inst, err := NewFiller(tpl).Fill(context.Background(), fieldmap.FieldValueMap{
		{Name: "Client", Value: "Acme"},
		{Name: "States", Value: ""},
	})
	require.NoError(t, err)

	require.Len(t, inst.Fields, 2)
	assert.Equal(t, FieldApplied, inst.Fields[1].Status)
	assert.Equal(t, []string{"Acme"}, flattenedTexts(t, inst.Data))
}

// appearanceStreams returns the decoded content of every XObject drawn on page 1
func appearanceStreams(t *testing.T, data []byte) []string {
	t.Helper()

	ctx, err := api.ReadContext(bytes.NewReader(data), NewConfiguration())
	require.NoError(t, err)
	require.NoError(t, ctx.EnsurePageCount())

	pageDict, _, _, err := ctx.PageDict(1, false)
	require.NoError(t, err)
	res, err := ctx.DereferenceDict(pageDict["Resources"])
	require.NoError(t, err)
	xobjects, err := ctx.DereferenceDict(res["XObject"])
	require.NoError(t, err)

	var out []string
	for _, obj := range xobjects {
		sd, _, err := ctx.DereferenceStreamDict(obj)
		require.NoError(t, err)
		require.NotNil(t, sd)
		require.NoError(t, sd.Decode())
		out = append(out, string(sd.Content))
	}
	return out
}
