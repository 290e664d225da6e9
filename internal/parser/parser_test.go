package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markexpr/internal/config"
	"markexpr/internal/marker"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"app.js", LanguageJavaScript},
		{"app.MJS", LanguageJavaScript},
		{"app.cjs", LanguageJavaScript},
		{"component.jsx", LanguageJavaScript},
		{"app.ts", LanguageTypeScript},
		{"app.mts", LanguageTypeScript},
		{"view.tsx", LanguageTSX},
		{"main.go", ""},
		{"README", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path))
			assert.Equal(t, tt.want != "", IsSupportedFile(tt.path))
		})
	}
}

func TestParseRejectsUnsupportedAndBrokenSources(t *testing.T) {
	ctx := context.Background()

	_, err := Parse(ctx, "main.go", []byte("package main"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = Parse(ctx, "broken.js", []byte("track(\"a\",\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "broken.js:")
}

func TestParseTypeScript(t *testing.T) {
	src := []byte("const n: number = track<string>(\"a\");\n")
	mod, err := Parse(context.Background(), "app.ts", src)
	require.NoError(t, err)
	defer mod.Close()

	assert.Equal(t, LanguageTypeScript, mod.Language)
	assert.Equal(t, "program", mod.Root().Type())
}

func TestParseTSX(t *testing.T) {
	src := []byte("export const App = () => <div onClick={() => track(\"click\")} />;\n")
	mod, err := Parse(context.Background(), "app.tsx", src)
	require.NoError(t, err)
	defer mod.Close()

	records, _, err := mod.Annotate(config.Config{Title: "T", Functions: []string{"track"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "track", records[0].Name)
}

func TestCommentMapAttachesToNextToken(t *testing.T) {
	src := []byte("/* a */ /* b */\nfoo(); // tail\nbar();\nimport(/* lazy: true */ \"./m\");\n")
	mod, err := Parse(context.Background(), "c.js", src)
	require.NoError(t, err)
	defer mod.Close()

	foo := uint32(indexOf(src, "foo"))
	assert.Equal(t, []marker.Comment{
		{Kind: marker.BlockComment, Text: " a "},
		{Kind: marker.BlockComment, Text: " b "},
	}, mod.Comments.Leading(foo))

	bar := uint32(indexOf(src, "bar"))
	assert.Empty(t, mod.Comments.Leading(bar))

	arg := uint32(indexOf(src, "\"./m\""))
	assert.Equal(t, []marker.Comment{{Kind: marker.BlockComment, Text: " lazy: true "}}, mod.Comments.Leading(arg))

	assert.Empty(t, mod.Comments.Leading(foo+1))
}

func TestCommentMapTrailingComments(t *testing.T) {
	src := []byte("foo(); /* a */ /* b */\n/* c */\nimport(/* d */\n'./m');\nx = /* e */\ny;\n{ /* f */\nz(); }\n")
	mod, err := Parse(context.Background(), "c.js", src)
	require.NoError(t, err)
	defer mod.Close()

	imp := uint32(indexOf(src, "import"))
	assert.Equal(t, []marker.Comment{{Kind: marker.BlockComment, Text: " c "}}, mod.Comments.Leading(imp))

	arg := uint32(indexOf(src, "'./m'"))
	assert.Equal(t, []marker.Comment{{Kind: marker.BlockComment, Text: " d "}}, mod.Comments.Leading(arg))

	y := uint32(indexOf(src, "y;"))
	assert.Equal(t, []marker.Comment{{Kind: marker.BlockComment, Text: " e "}}, mod.Comments.Leading(y))

	z := uint32(indexOf(src, "z()"))
	assert.Empty(t, mod.Comments.Leading(z))
}

func TestCommentMapAddedComesFirst(t *testing.T) {
	src := []byte("// license\nrun();\n")
	mod, err := Parse(context.Background(), "c.js", src)
	require.NoError(t, err)
	defer mod.Close()

	mod.Comments.AddLeading(0, marker.Comment{Kind: marker.BlockComment, Text: "x"})
	run := uint32(indexOf(src, "run"))
	mod.Comments.AddLeading(run, marker.Comment{Kind: marker.LineComment, Text: "y"})
	mod.Comments.AddLeading(0, marker.Comment{Kind: marker.BlockComment, Text: "z"})

	assert.Equal(t, []marker.Comment{
		{Kind: marker.BlockComment, Text: "x"},
		{Kind: marker.BlockComment, Text: "z"},
	}, mod.Comments.Leading(0))

	added := mod.Comments.Added()
	require.Len(t, added, 3)
	assert.Equal(t, "x", added[0].Comment.Text)
	assert.Equal(t, "z", added[1].Comment.Text)
	assert.Equal(t, run, added[2].Offset)
}

func TestLineIndex(t *testing.T) {
	src := []byte("a\r\nb\rc\né = f()")
	idx := NewLineIndex("x.js", src)

	assert.Equal(t, 4, idx.LineCount())
	assert.Equal(t, marker.Position{File: "x.js", Line: 1, Column: 1}, idx.Resolve(0))
	assert.Equal(t, marker.Position{File: "x.js", Line: 2, Column: 1}, idx.Resolve(3))
	assert.Equal(t, marker.Position{File: "x.js", Line: 3, Column: 1}, idx.Resolve(5))
	assert.Equal(t, "x.js:4:5", idx.Resolve(uint32(indexOf(src, "f"))).String())
	assert.Equal(t, "x.js:4:8", idx.Resolve(1000).String())
}

func TestPrint(t *testing.T) {
	src := []byte("#!/usr/bin/env node\nrun();\n")
	cm := &CommentMap{leading: map[uint32][]marker.Comment{}}

	assert.Equal(t, src, Print(src, cm))

	cm.AddLeading(20, marker.Comment{Kind: marker.BlockComment, Text: "note"})
	cm.AddLeading(27, marker.Comment{Kind: marker.LineComment, Text: " end"})
	assert.Equal(t, "#!/usr/bin/env node\n/*note*/\nrun();\n// end\n", string(Print(src, cm)))
}

func TestAnnotate(t *testing.T) {
	src := []byte("track(\"a\", 1, true);\n")
	mod, err := Parse(context.Background(), "test.js", src)
	require.NoError(t, err)
	defer mod.Close()

	records, out, err := mod.Annotate(config.Config{Title: "T", Functions: []string{"track"}})
	require.NoError(t, err)
	require.Len(t, records, 1)

	want := "/*---BEGIN T---\n" +
		`[{"type":"function","name":"track","args":["a",1,true],"position":"test.js:1:1"}]` +
		"\n---END T---*/\n" +
		"track(\"a\", 1, true);\n"
	assert.Equal(t, want, string(out))

	parsed, err := marker.ParseAnnotations(string(out), "T")
	require.NoError(t, err)
	assert.Equal(t, records, parsed)
}

func TestAnnotateAfterHashbangAndBeforeComments(t *testing.T) {
	src := []byte("#!/usr/bin/env node\n// keep\nwindow.fire(42);\n")
	mod, err := Parse(context.Background(), "bin.js", src)
	require.NoError(t, err)
	defer mod.Close()

	_, out, err := mod.Annotate(config.Config{
		Title:   "T",
		Methods: map[string][]string{"window": {"fire"}},
	})
	require.NoError(t, err)

	want := "#!/usr/bin/env node\n" +
		"/*---BEGIN T---\n" +
		`[{"type":"method","object":"window","method":"fire","args":[42],"position":"bin.js:3:1"}]` +
		"\n---END T---*/\n" +
		"// keep\nwindow.fire(42);\n"
	assert.Equal(t, want, string(out))
}

func TestAnnotateNoMatchLeavesSourceUnchanged(t *testing.T) {
	src := []byte("/* lazy: false */\nimport(\"./mod\");\nother(1);\n")
	mod, err := Parse(context.Background(), "n.js", src)
	require.NoError(t, err)
	defer mod.Close()

	records, out, err := mod.Annotate(config.Config{
		Title:          "T",
		Functions:      []string{"track"},
		DynamicImports: []string{"lazy"},
	})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, src, out)
}

func indexOf(src []byte, s string) int {
	for i := 0; i+len(s) <= len(src); i++ {
		if string(src[i:i+len(s)]) == s {
			return i
		}
	}
	return -1
}
