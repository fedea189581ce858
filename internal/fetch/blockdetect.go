package fetch

import (
	"net/http"
	"regexp"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockLoginWall  BlockType = "login_wall"
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockRateLimit  BlockType = "rate_limit"
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// smallBody bounds the size of pages scanned for challenge markers. Real post
// pages carry large script bundles that mention these words incidentally.
const smallBody = 32 * 1024

// DetectBlock checks a response for a login wall or anti-bot page. resp may be
// nil for markup taken from a browser.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return BlockRateLimit
		case http.StatusForbidden, http.StatusServiceUnavailable:
			if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
				return BlockCloudflare
			}
		}
	}

	lower := strings.ToLower(string(body))
	title := ""
	if m := titleRe.FindStringSubmatch(lower); len(m) > 1 {
		title = strings.TrimSpace(m[1])
	}

	hasPost := strings.Contains(lower, `property="og:description"`) || strings.Contains(lower, "<article")
	if !hasPost && (strings.HasPrefix(title, "login") || strings.Contains(lower, `id="loginform"`)) {
		return BlockLoginWall
	}

	if strings.Contains(title, "just a moment") || strings.Contains(title, "attention required") {
		return BlockCloudflare
	}

	if len(body) < smallBody {
		if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification") {
			return BlockCloudflare
		}
		if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") || strings.Contains(lower, "captcha") {
			return BlockCaptcha
		}
	}

	return BlockNone
}
