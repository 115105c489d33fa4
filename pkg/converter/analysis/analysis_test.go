package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/internal/testutil"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/analysis"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

func open(t *testing.T, spec testutil.TemplateSpec) *docx.Document {
	t.Helper()
	doc, err := docx.Open(testutil.BuildDocx(t, spec))
	require.NoError(t, err)
	return doc
}

func check(t *testing.T, doc *docx.Document, mode analysis.Mode) []analysis.Issue {
	t.Helper()
	issues, err := analysis.NewDefaultAnalyzer(testutil.DiscardHandler(), nil).Check(doc, mode)
	require.NoError(t, err)
	return issues
}

func codes(issues []analysis.Issue) []analysis.Code {
	var out []analysis.Code
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func bodyStyled(text string) string {
	return `<w:p><w:pPr><w:pStyle w:val="` + testutil.StyleIDFor(style.RoleParagraph) + `"/></w:pPr>` +
		`<w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestCheck_RunSplit(t *testing.T) {
	issues := check(t, open(t, testutil.AnchorTemplate()), analysis.ModeTemplate)

	require.Len(t, issues, 3)
	want := []analysis.Issue{
		{Code: analysis.CodeRunSplit, Part: "word/document.xml", Paragraph: 1, Detail: "{{version}}", Text: "版本 {{version}}"},
		{Code: analysis.CodeRunSplit, Part: "word/document.xml", Paragraph: 2, Detail: "{{main_content}}", Text: "{{main_content}}"},
		{Code: analysis.CodeRunSplit, Part: "word/header1.xml", Paragraph: 0, Detail: "{{software_name}}", Text: "{{software_name}}"},
	}
	assert.Equal(t, want, issues)
}

func TestCheck_BodyStyleLocation(t *testing.T) {
	spec := testutil.AnchorTemplate()
	spec.Body = bodyStyled("正文段落") +
		`<w:tbl><w:tr><w:tc>` + bodyStyled("单元格") + `</w:tc></w:tr></w:tbl>` +
		testutil.Para("{{main_content}}")
	spec.Headers = map[string]string{"header1.xml": bodyStyled("页眉")}
	spec.Footers = nil

	issues := check(t, open(t, spec), analysis.ModeTemplate)
	require.Len(t, issues, 2)
	assert.Equal(t, analysis.Issue{
		Code: analysis.CodeBodyStyleLocation, Part: "word/document.xml", Paragraph: 1, Detail: "正文", Text: "单元格",
	}, issues[0])
	assert.Equal(t, "word/header1.xml", issues[1].Part)
	assert.Equal(t, "BODY_STYLE_LOCATION word/header1.xml#p0 style=正文 in header/footer/table/textbox: 页眉", issues[1].String())

	custom, err := analysis.NewDefaultAnalyzer(testutil.DiscardHandler(), []string{"Other"}).Check(open(t, spec), analysis.ModeTemplate)
	require.NoError(t, err)
	assert.Empty(t, custom)
}

func TestCheck_ExternalFields(t *testing.T) {
	spec := testutil.AnchorTemplate()
	spec.Headers, spec.Footers = nil, nil
	spec.Body = `<w:p><w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve"> INCLUDETEXT "C:\\share\\a.docx" </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r></w:p>` +
		`<w:p><w:r><w:instrText> HYPERLINK "https://example.com" </w:instrText></w:r></w:p>` +
		`<w:p><w:fldSimple w:instr="LINK Excel.Sheet.12 book.xlsx"><w:r><w:t>1</w:t></w:r></w:fldSimple></w:p>` +
		testutil.Para("{{main_content}}")

	issues := check(t, open(t, spec), analysis.ModeTemplate)
	assert.Equal(t, []analysis.Code{analysis.CodeFieldExternal, analysis.CodeFieldExternal}, codes(issues))
	assert.Equal(t, `INCLUDETEXT "C:\\share\\a.docx"`, issues[0].Detail)
	assert.Equal(t, -1, issues[0].Paragraph)
	assert.Equal(t, "LINK Excel.Sheet.12 book.xlsx", issues[1].Detail)
}

func TestCheck_Modes(t *testing.T) {
	spec := testutil.AnchorTemplate()
	spec.Extra = map[string]string{
		"word/_rels/header1.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="http://example.com/logo.png" TargetMode="External"/>` +
			`</Relationships>`,
		"word/embeddings/oleObject1.bin": "ole",
	}
	doc := open(t, spec)

	template := codes(check(t, doc, analysis.ModeTemplate))
	assert.NotContains(t, template, analysis.CodeExternalRels)
	assert.Contains(t, template, analysis.CodeEmbeddedObject)

	output := check(t, doc, analysis.ModeOutput)
	assert.Equal(t, []analysis.Code{analysis.CodeExternalRels, analysis.CodeEmbeddedObject}, codes(output))
	assert.Equal(t, "http://example.com/logo.png", output[0].Detail)
	assert.Equal(t, "EXTERNAL_RELS word/_rels/header1.xml.rels: http://example.com/logo.png", output[0].String())
	assert.Equal(t, "EMBEDDED_OBJECT word/embeddings/oleObject1.bin", output[1].String())

	all := codes(check(t, doc, analysis.ModeAll))
	assert.Contains(t, all, analysis.CodeRunSplit)
	assert.Contains(t, all, analysis.CodeExternalRels)
}

func TestCheck_CleanTemplate(t *testing.T) {
	spec := testutil.AnchorTemplate()
	spec.Body = testutil.Para("{{software_name}}") + testutil.Para("{{main_content}}")
	spec.Headers, spec.Footers = nil, nil
	assert.Empty(t, check(t, open(t, spec), analysis.ModeAll))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]analysis.Mode{
		"":         analysis.ModeTemplate,
		"template": analysis.ModeTemplate,
		" Output ": analysis.ModeOutput,
		"ALL":      analysis.ModeAll,
	} {
		got, err := analysis.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := analysis.ParseMode("strict")
	assert.Error(t, err)
}

func TestRepair(t *testing.T) {
	t.Run("merges split placeholders", func(t *testing.T) {
		doc := open(t, testutil.AnchorTemplate())
		rep, err := analysis.Repair(doc, "main_content")
		require.NoError(t, err)
		assert.Equal(t, analysis.RepairReport{Merged: 3, AnchorFound: true}, rep)
		assert.Empty(t, check(t, doc, analysis.ModeTemplate))

		data, err := doc.Bytes()
		require.NoError(t, err)
		reopened, err := docx.Open(data)
		require.NoError(t, err)
		assert.Empty(t, check(t, reopened, analysis.ModeTemplate))
	})

	t.Run("rebuilds a cluttered anchor paragraph", func(t *testing.T) {
		spec := testutil.AnchorTemplate()
		spec.Body = `<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:bookmarkStart w:id="0" w:name="body"/>` +
			`<w:r><w:rPr><w:i/></w:rPr><w:t>{{main_content}}</w:t></w:r>` +
			`<w:r><w:t>（自动生成）</w:t></w:r><w:bookmarkEnd w:id="0"/></w:p>`
		doc := open(t, spec)

		rep, err := analysis.Repair(doc, "main_content")
		require.NoError(t, err)
		assert.True(t, rep.AnchorRebuilt)

		body, err := doc.Body()
		require.NoError(t, err)
		p := docx.Paragraphs(body)[0]
		assert.Equal(t, "{{main_content}}", docx.ParagraphText(p))
		require.Len(t, p.SelectElements("w:r"), 1)
		assert.NotNil(t, p.FindElement("./w:pPr/w:jc"))
		assert.NotNil(t, p.FindElement("./w:r/w:rPr/w:i"))
		assert.Nil(t, p.SelectElement("w:bookmarkStart"))
	})

	t.Run("missing anchor is reported, not fatal", func(t *testing.T) {
		spec := testutil.AnchorTemplate()
		spec.Body = testutil.Para("无锚点")
		rep, err := analysis.Repair(open(t, spec), "main_content")
		require.NoError(t, err)
		assert.False(t, rep.AnchorFound)
		assert.Equal(t, 1, rep.Merged, "the header token is still merged")
	})

	t.Run("invalid anchor name", func(t *testing.T) {
		_, err := analysis.Repair(open(t, testutil.AnchorTemplate()), "main content")
		assert.Error(t, err)
	})
}
