package extract

import (
	"os"
	"regexp"

	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule is one matcher in a priority list. Selector is used on DOM pages and
// Pattern (with one capture group) on raw markup; either may be empty, in
// which case the rule does not apply to that mode.
type Rule struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Pattern  string `yaml:"pattern"`
	// Markdown converts the matched fragment to Markdown instead of plain text.
	Markdown bool `yaml:"markdown"`
}

// Rules holds the ordered matcher lists and image filters.
type Rules struct {
	Text         []Rule   `yaml:"text"`
	Images       []Rule   `yaml:"images"`
	ImageHosts   []string `yaml:"image_hosts"`
	MinImageSize int      `yaml:"min_image_size"`
}

// DefaultRules returns the built-in Instagram matchers.
func DefaultRules() Rules {
	return Rules{
		Text: []Rule{
			{Name: "caption", Selector: "div._a9zs", Pattern: `<div class="_a9zs">([^<]+)</div>`},
			{Name: "caption_alt", Selector: "div._ae5q", Pattern: `<div class="_ae5q">([^<]+)</div>`},
			{Name: "inline_span", Selector: "span._aacl", Pattern: `<span class="_aacl[^>]*>([^<]+)</span>`},
			{Name: "article", Selector: "article", Pattern: `(?s)<article[^>]*>(.*?)</article>`, Markdown: true},
		},
		Images: []Rule{
			{Name: "x5yr21d", Selector: `img[class*="x5yr21d"]`},
			{Name: "aagt", Selector: `img[class*="_aagt"]`, Pattern: `img[^>]+class="_aagt"[^>]+src="([^"]+)"`},
			{Name: "decoding_sync", Selector: `img[decoding="sync"][style*="width"]`, Pattern: `img[^>]+decoding="sync"[^>]+src="([^"]+)"`},
			{Name: "aa1d", Selector: `img[class*="_aa1d"]`, Pattern: `img[^>]+class="_aa1d"[^>]+src="([^"]+)"`},
			{Name: "aagv", Selector: `img[class*="_aagv"]`},
		},
		ImageHosts:   []string{"scontent", "cdninstagram"},
		MinImageSize: 200,
	}
}

// LoadRules reads a YAML rules file. Lists present in the file replace the
// defaults; absent lists keep them. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "extract: read rules %s", path)
	}
	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return rules, eris.Wrapf(err, "extract: parse rules %s", path)
	}

	if len(file.Text) > 0 {
		rules.Text = file.Text
	}
	if len(file.Images) > 0 {
		rules.Images = file.Images
	}
	if len(file.ImageHosts) > 0 {
		rules.ImageHosts = file.ImageHosts
	}
	if file.MinImageSize > 0 {
		rules.MinImageSize = file.MinImageSize
	}
	return rules, nil
}

// matcher is a compiled Rule.
type matcher struct {
	name     string
	sel      cascadia.Selector
	re       *regexp.Regexp
	markdown bool
}

func compile(rules []Rule) ([]matcher, error) {
	out := make([]matcher, 0, len(rules))
	for _, r := range rules {
		m := matcher{name: r.Name, markdown: r.Markdown}
		if r.Selector == "" && r.Pattern == "" {
			return nil, eris.Errorf("extract: rule %q has neither selector nor pattern", r.Name)
		}
		if r.Selector != "" {
			sel, err := cascadia.Compile(r.Selector)
			if err != nil {
				return nil, eris.Wrapf(err, "extract: rule %q selector", r.Name)
			}
			m.sel = sel
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, eris.Wrapf(err, "extract: rule %q pattern", r.Name)
			}
			if re.NumSubexp() < 1 {
				return nil, eris.Errorf("extract: rule %q pattern needs a capture group", r.Name)
			}
			m.re = re
		}
		out = append(out, m)
	}
	return out, nil
}
