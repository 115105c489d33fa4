package markdown_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NonEmptyInputYieldsBlocks(t *testing.T) {
	inputs := []string{
		"hello",
		"---",
		"```go",
		"> ",
		"   text with indent",
		"| not | a table",
		"<div>raw</div>",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			blocks := markdown.Parse(in)
			assert.NotEmpty(t, blocks, "non-blank input must produce at least one block")
		})
	}
	assert.Empty(t, markdown.Parse(""))
	assert.Empty(t, markdown.Parse("\n  \n\t\n"))
}

func TestParse_HeadingLevels(t *testing.T) {
	blocks := markdown.Parse("# One\n## Two\n#### Four\n##### Five\n###### Six ##")
	require.Len(t, blocks, 5)
	want := []int{1, 2, 4, 4, 4}
	for i, b := range blocks {
		h, ok := b.(*markdown.Heading)
		require.True(t, ok, "block %d should be a heading", i)
		assert.Equal(t, want[i], h.Level)
	}
	assert.Equal(t, "Five", markdown.PlainText(blocks[3].(*markdown.Heading).Spans))
	assert.Equal(t, "Six", markdown.PlainText(blocks[4].(*markdown.Heading).Spans))
}

func TestParse_HashWithoutSpaceIsParagraph(t *testing.T) {
	blocks := markdown.Parse("#hashtag")
	require.Len(t, blocks, 1)
	p, ok := blocks[0].(*markdown.Paragraph)
	require.True(t, ok)
	assert.Equal(t, "#hashtag", markdown.PlainText(p.Spans))
}

func TestParse_CodeBlockPreservesInterior(t *testing.T) {
	src := "```python\nprint('a')\n\n    indented\n# not a heading\n```\nafter"
	blocks := markdown.Parse(src)
	require.Len(t, blocks, 2)
	code, ok := blocks[0].(*markdown.CodeBlock)
	require.True(t, ok)
	assert.Equal(t, "python", code.Language)
	assert.Equal(t, []string{"print('a')", "", "    indented", "# not a heading"}, code.Lines)
	assert.Equal(t, "print('a')\n\n    indented\n# not a heading", strings.Join(code.Lines, "\n"))
	assert.IsType(t, &markdown.Paragraph{}, blocks[1])
}

func TestParse_TildeFenceAndLongerCloser(t *testing.T) {
	blocks := markdown.Parse("~~~~\n~~~\ncode\n~~~~~")
	require.Len(t, blocks, 1)
	code := blocks[0].(*markdown.CodeBlock)
	assert.Empty(t, code.Language)
	assert.Equal(t, []string{"~~~", "code"}, code.Lines)
}

func TestParse_UnterminatedFenceDegrades(t *testing.T) {
	blocks := markdown.Parse("```js\n# Title\nbody")
	require.Len(t, blocks, 3)
	p, ok := blocks[0].(*markdown.Paragraph)
	require.True(t, ok)
	assert.Equal(t, "```js", markdown.PlainText(p.Spans))
	assert.IsType(t, &markdown.Heading{}, blocks[1])
	assert.IsType(t, &markdown.Paragraph{}, blocks[2])
}

func TestParse_CaptionedTable(t *testing.T) {
	src := "表 1 模块功能对照表\n| 模块 | 功能 | 备注 |\n| --- | :---: | --- |\n| 解析 | 读取 | |\n| 装配 | 写入 |\n"
	blocks := markdown.Parse(src)
	require.Len(t, blocks, 1)
	tbl, ok := blocks[0].(*markdown.Table)
	require.True(t, ok)
	assert.Equal(t, "表 1 模块功能对照表", tbl.Caption)
	assert.Len(t, tbl.Header, 3)
	require.Len(t, tbl.Rows, 2)
	assert.Len(t, tbl.Rows[0], 3)
	assert.Len(t, tbl.Rows[1], 2, "ragged rows are kept as written")
	assert.Equal(t, 3, tbl.Columns())
	assert.Equal(t, "模块", markdown.PlainText(tbl.Header[0]))
}

func TestParse_CaptionNotAdjacentStaysParagraph(t *testing.T) {
	src := "表 1 模块功能对照表\n\n| a | b |\n|---|---|\n| 1 | 2 |"
	blocks := markdown.Parse(src)
	require.Len(t, blocks, 2)
	assert.IsType(t, &markdown.Paragraph{}, blocks[0])
	tbl := blocks[1].(*markdown.Table)
	assert.Empty(t, tbl.Caption)
}

func TestParse_SeparatorMismatchIsNotTable(t *testing.T) {
	blocks := markdown.Parse("| a | b | c |\n|---|---|\n| 1 | 2 | 3 |")
	require.NotEmpty(t, blocks)
	for _, b := range blocks {
		assert.NotEqual(t, markdown.KindTable, b.Kind())
	}
}

func TestParse_EscapedPipeInCell(t *testing.T) {
	blocks := markdown.Parse("| expr | meaning |\n|---|---|\n| a \\| b | or |")
	tbl := blocks[0].(*markdown.Table)
	assert.Equal(t, "a | b", markdown.PlainText(tbl.Rows[0][0]))
}

func TestParse_Admonitions(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		kind  markdown.Admonition
		lines []string
	}{
		{"tip full-width colon", "> 提示：请先配置模板路径", markdown.AdmonitionTip, []string{"请先配置模板路径"}},
		{"note ascii colon", "> 注意: 保存前请备份", markdown.AdmonitionNote, []string{"保存前请备份"}},
		{"warning", "> 警告：不可恢复", markdown.AdmonitionWarning, []string{"不可恢复"}},
		{"plain", "> 普通引用", markdown.AdmonitionPlain, []string{"普通引用"}},
		{"label after blank line", ">\n> 提示：稍后", markdown.AdmonitionTip, []string{"稍后"}},
		{"label on a later line", "> 普通说明\n> 警告：不要删除模板", markdown.AdmonitionWarning, []string{"普通说明", "不要删除模板"}},
		{"first label wins", "> 注意：甲\n> 提示：乙", markdown.AdmonitionNote, []string{"甲", "提示：乙"}},
		{"label alone on its line", "> 提示：\n> 内容", markdown.AdmonitionTip, []string{"内容"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blocks := markdown.Parse(tc.src)
			require.Len(t, blocks, 1)
			q, ok := blocks[0].(*markdown.BlockQuote)
			require.True(t, ok)
			assert.Equal(t, tc.kind, q.Admonition)
			var lines []string
			for _, l := range q.Lines {
				lines = append(lines, markdown.PlainText(l))
			}
			assert.Equal(t, tc.lines, lines)
		})
	}
}

func TestParse_QuoteKeepsLines(t *testing.T) {
	blocks := markdown.Parse("> 第一行\n> 第二行\n\n正文")
	require.Len(t, blocks, 2)
	q := blocks[0].(*markdown.BlockQuote)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, "第二行", markdown.PlainText(q.Lines[1]))
}

func TestParse_ListDepth(t *testing.T) {
	src := "- top\n  - nested\n    - deeper\n1. first\n\t2) tabbed\n   3. odd indent"
	blocks := markdown.Parse(src)
	require.Len(t, blocks, 6)
	want := []struct {
		ordered bool
		depth   int
	}{{false, 0}, {false, 1}, {false, 2}, {true, 0}, {true, 1}, {true, 1}}
	for i, w := range want {
		li, ok := blocks[i].(*markdown.ListItem)
		require.True(t, ok, "block %d", i)
		assert.Equal(t, w.ordered, li.Ordered, "block %d", i)
		assert.Equal(t, w.depth, li.Depth, "block %d", i)
	}
}

func TestParse_ListIndentUnitOption(t *testing.T) {
	blocks := markdown.Parse("    - four spaces", markdown.WithIndentUnit(4))
	require.Len(t, blocks, 1)
	assert.Equal(t, 1, blocks[0].(*markdown.ListItem).Depth)
}

func TestParse_ListContinuation(t *testing.T) {
	blocks := markdown.Parse("- item starts\n  and continues\n- next")
	require.Len(t, blocks, 2)
	assert.Equal(t, "item starts and continues", markdown.PlainText(blocks[0].(*markdown.ListItem).Spans))
}

func TestParse_ThematicBreakIsNotList(t *testing.T) {
	blocks := markdown.Parse("- - -")
	require.Len(t, blocks, 1)
	assert.IsType(t, &markdown.Paragraph{}, blocks[0])
}

func TestParse_ImageWithCaption(t *testing.T) {
	src := "![架构](images/arch.png \"总体架构\")\n\n图 1 系统架构图\n\n正文"
	blocks := markdown.Parse(src)
	require.Len(t, blocks, 2)
	img, ok := blocks[0].(*markdown.Image)
	require.True(t, ok)
	assert.Equal(t, "架构", img.Alt)
	assert.Equal(t, "images/arch.png", img.Path)
	assert.Equal(t, "总体架构", img.Title)
	assert.Equal(t, "图 1 系统架构图", img.Caption)
}

func TestParse_ImageWithoutCaption(t *testing.T) {
	blocks := markdown.Parse("![a](a.png)\n\n普通段落")
	require.Len(t, blocks, 2)
	assert.Empty(t, blocks[0].(*markdown.Image).Caption)
	assert.IsType(t, &markdown.Paragraph{}, blocks[1])
}

func TestParse_InlineImageStaysParagraph(t *testing.T) {
	blocks := markdown.Parse("see ![a](a.png) here")
	require.Len(t, blocks, 1)
	p := blocks[0].(*markdown.Paragraph)
	assert.Equal(t, "see a here", markdown.PlainText(p.Spans))
}

func TestParse_ParagraphJoinsLines(t *testing.T) {
	blocks := markdown.Parse("first line\nsecond line\n\nthird")
	require.Len(t, blocks, 2)
	assert.Equal(t, "first line second line", markdown.PlainText(blocks[0].(*markdown.Paragraph).Spans))
}

func TestParse_CustomCaptionGrammar(t *testing.T) {
	re := regexp.MustCompile(`^Table \d+`)
	blocks := markdown.Parse("Table 2 Results\n| a |\n|---|\n| 1 |", markdown.WithTableCaption(re))
	require.Len(t, blocks, 1)
	assert.Equal(t, "Table 2 Results", blocks[0].(*markdown.Table).Caption)
}

func TestParse_CRLF(t *testing.T) {
	blocks := markdown.Parse("# Title\r\n\r\nbody\r\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, "Title", markdown.PlainText(blocks[0].(*markdown.Heading).Spans))
}

func TestParseInline_Spans(t *testing.T) {
	spans := markdown.ParseInline("plain **bold** *it* ***both*** `x := 1` [link](http://a) \\*lit\\*")
	kinds := map[markdown.SpanKind]string{}
	for _, s := range spans {
		kinds[s.Kind] += s.Text
	}
	assert.Equal(t, "bold", kinds[markdown.SpanStrong])
	assert.Equal(t, "it", kinds[markdown.SpanEmphasis])
	assert.Equal(t, "both", kinds[markdown.SpanStrongEmphasis])
	assert.Equal(t, "x := 1", kinds[markdown.SpanCode])
	assert.Contains(t, kinds[markdown.SpanText], "link")
	assert.Contains(t, kinds[markdown.SpanText], "*lit*")
}

func TestParseInline_LiteralListMarker(t *testing.T) {
	spans := markdown.ParseInline("1. not a list")
	assert.Equal(t, "1. not a list", markdown.PlainText(spans))
}

func TestParseInline_PlaceholderSurvives(t *testing.T) {
	assert.Equal(t, "版本 {{version}}", markdown.PlainText(markdown.ParseInline("版本 {{version}}")))
}

func TestStripHeadingNumber(t *testing.T) {
	tests := map[string]string{
		"第一章 概述":      "概述",
		"第 2 节：安装":    "安装",
		"三、功能说明":      "功能说明",
		"2.1 模块划分":     "模块划分",
		"3.2.1) 细节":    "细节",
		"4. 部署":        "部署",
		"无编号标题":        "无编号标题",
		"2024":         "2024",
		"第一章":          "第一章",
		"10 Things":    "10 Things",
	}
	for in, want := range tests {
		assert.Equal(t, want, markdown.StripHeadingNumber(in), "input %q", in)
	}
}

func TestStripHeadingNumbers(t *testing.T) {
	blocks := markdown.Parse("## 1.2 **范围**\n正文")
	markdown.StripHeadingNumbers(blocks)
	h := blocks[0].(*markdown.Heading)
	assert.Equal(t, "范围", markdown.PlainText(h.Spans))
	assert.Equal(t, markdown.SpanStrong, h.Spans[0].Kind)
}
