// Package extract recovers caption text and representative media URLs from a
// fetched post page, using ordered matcher lists.
package extract

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/fetch"
	"github.com/SquizAI/recipies01/internal/model"
)

// ErrNoContent is returned when no matcher produced any text.
var ErrNoContent = eris.New("extract: no content found in post")

// noiseSelectors are removed from fragments before Markdown conversion.
var noiseSelectors = []string{
	"script", "style", "noscript", "svg", "button", "img", "video", "picture", "iframe", "form",
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// Extractor applies compiled matchers to fetched pages.
type Extractor struct {
	text    []matcher
	images  []matcher
	hosts   []string
	minSize int
}

// New compiles rules into an Extractor.
func New(rules Rules) (*Extractor, error) {
	text, err := compile(rules.Text)
	if err != nil {
		return nil, err
	}
	images, err := compile(rules.Images)
	if err != nil {
		return nil, err
	}
	if rules.MinImageSize <= 0 {
		rules.MinImageSize = 200
	}
	return &Extractor{text: text, images: images, hosts: rules.ImageHosts, minSize: rules.MinImageSize}, nil
}

// Extract reads caption text, a representative image and a video URL from p.
// Text comes from the first matcher that yields any; meta tags are consulted
// after the class matchers.
func (e *Extractor) Extract(p *fetch.Page) (*model.RawContent, error) {
	if p == nil {
		return nil, eris.Wrap(ErrNoContent, "nil page")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	var text, textRule, image, imageRule string
	if p.Mode == fetch.ModeDOM {
		text, textRule = e.textFromDOM(doc)
		image, imageRule = e.imageFromDOM(doc)
	} else {
		text, textRule = e.textFromMarkup(p.HTML)
		image, imageRule = e.imageFromMarkup(p.HTML)
	}

	if text == "" {
		text, textRule = metaContent(doc, "og:description"), "og:description"
	}
	if image == "" {
		if og := metaContent(doc, "og:image"); isHTTPURL(og) {
			image, imageRule = og, "og:image"
		}
	}
	video := videoURL(doc)

	zap.L().Debug("extract: matchers applied",
		zap.String("url", p.URL),
		zap.String("mode", string(p.Mode)),
		zap.String("text_rule", textRule),
		zap.String("image_rule", imageRule),
		zap.Bool("video", video != ""),
		zap.Int("text_len", len(text)),
	)

	if text == "" {
		return nil, eris.Wrapf(ErrNoContent, "%s", p.URL)
	}

	return &model.RawContent{
		TextContent: text,
		ImageURL:    optional(image),
		VideoURL:    optional(video),
		SourceURL:   p.URL,
		Strategy:    p.Strategy,
	}, nil
}

func (e *Extractor) textFromDOM(doc *goquery.Document) (string, string) {
	for _, m := range e.text {
		if m.sel == nil {
			continue
		}
		var text string
		doc.FindMatcher(m.sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m.markdown {
				frag, err := goquery.OuterHtml(s)
				if err == nil {
					text = toMarkdown(frag)
				}
			} else {
				text = cleanText(s.Text())
			}
			return text == ""
		})
		if text != "" {
			return text, m.name
		}
	}
	return "", ""
}

func (e *Extractor) textFromMarkup(raw string) (string, string) {
	for _, m := range e.text {
		if m.re == nil {
			continue
		}
		for _, sub := range m.re.FindAllStringSubmatch(raw, -1) {
			var text string
			if m.markdown {
				text = toMarkdown(sub[1])
			} else {
				text = fragmentText(sub[1])
			}
			if text != "" {
				return text, m.name
			}
		}
	}
	return "", ""
}

func (e *Extractor) imageFromDOM(doc *goquery.Document) (string, string) {
	for _, m := range e.images {
		if m.sel == nil {
			continue
		}
		var src string
		doc.FindMatcher(m.sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			candidate := s.AttrOr("src", "")
			if e.allowedHost(candidate) && e.largeEnough(s) {
				src = candidate
				return false
			}
			return true
		})
		if src != "" {
			return src, m.name
		}
	}
	return "", ""
}

func (e *Extractor) imageFromMarkup(raw string) (string, string) {
	for _, m := range e.images {
		if m.re == nil {
			continue
		}
		for _, sub := range m.re.FindAllStringSubmatch(raw, -1) {
			src := html.UnescapeString(sub[1])
			if e.allowedHost(src) {
				return src, m.name
			}
		}
	}
	return "", ""
}

// largeEnough reads the rendered size annotated by the browser, falling back
// to width/height attributes. Images of unknown size are rejected.
func (e *Extractor) largeEnough(s *goquery.Selection) bool {
	w, okW := dimension(s, "data-natural-width", "width")
	h, okH := dimension(s, "data-natural-height", "height")
	return okW && okH && w > e.minSize && h > e.minSize
}

func dimension(s *goquery.Selection, attrs ...string) (int, bool) {
	for _, a := range attrs {
		if v, ok := s.Attr(a); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

func (e *Extractor) allowedHost(src string) bool {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, token := range e.hosts {
		if strings.Contains(host, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"]`)
	if sel.Length() == 0 {
		sel = doc.Find(`meta[name="` + property + `"]`)
	}
	return cleanText(sel.First().AttrOr("content", ""))
}

func videoURL(doc *goquery.Document) string {
	for _, prop := range []string{"og:video:secure_url", "og:video", "og:video:url"} {
		if v := metaContent(doc, prop); isHTTPURL(v) {
			return v
		}
	}
	if v := doc.Find("video[src]").First().AttrOr("src", ""); isHTTPURL(v) {
		return v
	}
	return ""
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fragmentText decodes entities and strips tags from a captured fragment.
func fragmentText(frag string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + frag + "</div>"))
	if err != nil {
		return cleanText(html.UnescapeString(frag))
	}
	return cleanText(doc.Find("body").Text())
}

func toMarkdown(frag string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(frag))
	if err == nil {
		for _, sel := range noiseSelectors {
			doc.Find(sel).Remove()
		}
		if body, err := doc.Find("body").Html(); err == nil {
			frag = body
		}
	}
	md, err := htmltomarkdown.ConvertString(frag)
	if err != nil {
		return fragmentText(frag)
	}
	return cleanText(md)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
