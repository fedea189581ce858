package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/fetch"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultRules())
	require.NoError(t, err)
	return e
}

func domPage(body string) *fetch.Page {
	return &fetch.Page{URL: "https://www.instagram.com/p/abc/", HTML: "<html><body>" + body + "</body></html>", Mode: fetch.ModeDOM, Strategy: "browser"}
}

func markupPage(body string) *fetch.Page {
	return &fetch.Page{URL: "https://www.instagram.com/p/abc/", HTML: "<html><body>" + body + "</body></html>", Mode: fetch.ModeMarkup, Strategy: "proxy"}
}

func TestExtract_MarkupPrimaryCaption(t *testing.T) {
	e := newExtractor(t)
	got, err := e.Extract(markupPage(`<div class="_ae5q">secondary</div><div class="_a9zs">Pancakes &amp; syrup</div>`))
	require.NoError(t, err)
	assert.Equal(t, "Pancakes & syrup", got.TextContent)
	assert.Equal(t, "proxy", got.Strategy)
	assert.Equal(t, "https://www.instagram.com/p/abc/", got.SourceURL)
	assert.Nil(t, got.ImageURL)
	assert.Nil(t, got.VideoURL)
}

func TestExtract_MarkupPriorityOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"secondary container", `<span class="_aacl _aaco">span text</span><div class="_ae5q">Second choice</div>`, "Second choice"},
		{"inline span", `<span class="_aacl _aaco _aacu">Span caption</span>`, "Span caption"},
		{"article fallback", `<article><h2>Soup</h2><p>Boil <b>water</b></p></article>`, "## Soup\n\nBoil **water**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := New(DefaultRules())
			require.NoError(t, err)
			got, err := e.Extract(markupPage(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.TextContent)
		})
	}
}

func TestExtract_MarkupImageHostAllowList(t *testing.T) {
	e := newExtractor(t)
	body := `<div class="_a9zs">caption</div>
<img alt="x" class="_aagt" src="https://evil.example.com/a.jpg">
<img alt="y" class="_aagt" src="https://scontent-lax3-1.cdninstagram.com/v/t51/photo.jpg?a=1&amp;b=2">`

	got, err := e.Extract(markupPage(body))
	require.NoError(t, err)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://scontent-lax3-1.cdninstagram.com/v/t51/photo.jpg?a=1&b=2", *got.ImageURL)
}

func TestExtract_DOMCaptionAndSizedImage(t *testing.T) {
	e := newExtractor(t)
	body := `<article>
<img class="x5yr21d" src="https://scontent.cdninstagram.com/small.jpg" data-natural-width="150" data-natural-height="150">
<img class="x5yr21d abc" src="https://scontent.cdninstagram.com/big.jpg" data-natural-width="1080" data-natural-height="1350">
<div class="_a9zs">  Crispy tofu

bowl  </div>
</article>`

	got, err := e.Extract(domPage(body))
	require.NoError(t, err)
	assert.Equal(t, "Crispy tofu\n\nbowl", got.TextContent)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/big.jpg", *got.ImageURL)
}

func TestExtract_DOMImageSizeRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  string
		want bool
	}{
		{"natural size", `<img class="_aagt" src="https://scontent.x/a.jpg" data-natural-width="640" data-natural-height="640">`, true},
		{"attribute fallback", `<img class="_aagt" src="https://scontent.x/a.jpg" width="640" height="480">`, true},
		{"exactly threshold rejected", `<img class="_aagt" src="https://scontent.x/a.jpg" width="200" height="640">`, false},
		{"unknown size rejected", `<img class="_aagt" src="https://scontent.x/a.jpg">`, false},
		{"wrong host rejected", `<img class="_aagt" src="https://cdn.other.com/a.jpg" width="640" height="640">`, false},
		{"lower priority rule", `<img class="_aagv" src="https://cdninstagram.com/a.jpg" width="1080" height="1080">`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := New(DefaultRules())
			require.NoError(t, err)
			got, err := e.Extract(domPage(`<div class="_a9zs">c</div>` + tt.img))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ImageURL != nil)
		})
	}
}

func TestExtract_DOMArticleMarkdownDropsNoise(t *testing.T) {
	e := newExtractor(t)
	got, err := e.Extract(domPage(`<article><script>var x=1</script><button>Follow</button><h1>Tacos</h1><ul><li>tortillas</li><li>beans</li></ul></article>`))
	require.NoError(t, err)
	assert.Contains(t, got.TextContent, "# Tacos")
	assert.Contains(t, got.TextContent, "- tortillas")
	assert.NotContains(t, got.TextContent, "var x")
	assert.NotContains(t, got.TextContent, "Follow")
}

func TestExtract_MetaFallbacks(t *testing.T) {
	e := newExtractor(t)
	p := &fetch.Page{
		URL: "https://www.instagram.com/reel/xyz/",
		HTML: `<html><head>
<meta property="og:description" content="Easy banana bread: 3 bananas, 2 cups flour">
<meta property="og:image" content="https://scontent.cdninstagram.com/thumb.jpg">
<meta property="og:video" content="https://scontent.cdninstagram.com/video.mp4">
</head><body></body></html>`,
		Mode: fetch.ModeMarkup,
	}

	got, err := e.Extract(p)
	require.NoError(t, err)
	assert.Equal(t, "Easy banana bread: 3 bananas, 2 cups flour", got.TextContent)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/thumb.jpg", *got.ImageURL)
	require.NotNil(t, got.VideoURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/video.mp4", *got.VideoURL)
}

func TestExtract_DOMVideoElement(t *testing.T) {
	e := newExtractor(t)
	got, err := e.Extract(domPage(`<div class="_a9zs">reel</div><video src="https://scontent.cdninstagram.com/r.mp4"></video>`))
	require.NoError(t, err)
	require.NotNil(t, got.VideoURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/r.mp4", *got.VideoURL)
}

func TestExtract_NoContent(t *testing.T) {
	e := newExtractor(t)

	_, err := e.Extract(markupPage(`<div class="unrelated">nothing</div>`))
	require.ErrorIs(t, err, ErrNoContent)

	_, err = e.Extract(domPage(`<div class="_a9zs">   </div>`))
	require.ErrorIs(t, err, ErrNoContent)

	_, err = e.Extract(nil)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestLoadRules_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
text:
  - name: recipe_box
    selector: div.recipe
    pattern: '<div class="recipe">([^<]+)</div>'
image_hosts: [images.example.com]
`), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules.Text, 1)
	assert.Equal(t, "recipe_box", rules.Text[0].Name)
	assert.Equal(t, []string{"images.example.com"}, rules.ImageHosts)
	assert.Len(t, rules.Images, len(DefaultRules().Images), "image rules keep defaults")
	assert.Equal(t, 200, rules.MinImageSize)

	e, err := New(rules)
	require.NoError(t, err)
	got, err := e.Extract(markupPage(`<div class="recipe">Custom caption</div><div class="_a9zs">ignored</div>`))
	require.NoError(t, err)
	assert.Equal(t, "Custom caption", got.TextContent)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("text: [unclosed"), 0644))
	_, err = LoadRules(bad)
	require.Error(t, err)

	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestNew_InvalidRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
		msg  string
	}{
		{"empty", Rule{Name: "empty"}, "neither selector nor pattern"},
		{"bad selector", Rule{Name: "sel", Selector: "div[["}, "selector"},
		{"bad regex", Rule{Name: "re", Pattern: "(unclosed"}, "pattern"},
		{"no group", Rule{Name: "group", Pattern: "<div>"}, "capture group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(Rules{Text: []Rule{tt.rule}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
