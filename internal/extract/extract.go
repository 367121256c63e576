// Package extract pulls enrichment signals out of raw HTML: visible page
// text for the classifier, social profile links, and email addresses.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/model"
)

// socialDomains maps a hostname fragment to its platform key.
var socialDomains = map[string]string{
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"linkedin.com":  "linkedin",
	"twitter.com":   "twitter",
	"youtube.com":   "youtube",
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// VisibleText converts HTML to plaintext for the classifier prompt. Scripts,
// styles and noscript blocks are dropped, whitespace collapsed, and the
// result capped at maxChars.
func VisibleText(html string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Debug("extract: html parse failed", zap.Error(err))
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	text := spaceRe.ReplaceAllString(doc.Text(), " ")
	text = strings.TrimSpace(text)
	if maxChars > 0 && len(text) > maxChars {
		// Back off to a rune boundary so the cap never splits a multi-byte
		// character.
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// SocialLinks collects anchors pointing at known social platforms, deduped
// and in document order.
func SocialLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if platformOf(href) == "" {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}

// Emails collects addresses from anchors and page text, mailto: prefixes
// stripped, lowercased, deduped in document order.
func Emails(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var emails []string
	add := func(raw string) {
		addr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "mailto:"))
		if addr == "" || !emailRe.MatchString(addr) || seen[addr] {
			return
		}
		seen[addr] = true
		emails = append(emails, addr)
	}

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		// Drop query params like ?subject=.
		if i := strings.IndexByte(href, '?'); i >= 0 {
			href = href[:i]
		}
		add(href)
	})
	for _, m := range emailRe.FindAllString(doc.Text(), -1) {
		add(m)
	}
	return emails
}

// SearchQuery builds the review/social discovery query for a business.
func SearchQuery(businessName, city string) string {
	return strings.TrimSpace(businessName+" "+city) + " reviews facebook instagram linkedin"
}

// SearchResult is one organic result from a search page: the anchor text and
// where it points.
type SearchResult struct {
	Title string
	URL   string
}

// ParseSearchResults extracts results from a DuckDuckGo HTML results page.
// Links back into duckduckgo.com are navigation, not results. At most max
// results are returned.
func ParseSearchResults(html string, max int) []SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var results []SearchResult
	doc.Find("a.result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || strings.Contains(href, "duckduckgo.com") {
			return true
		}
		results = append(results, SearchResult{
			Title: strings.TrimSpace(sel.Text()),
			URL:   href,
		})
		return max <= 0 || len(results) < max
	})
	return results
}

// MergeSocialLinks folds site and search links into a per-platform map with
// every known platform present. First link wins per platform, with site
// links taking precedence over search results.
func MergeSocialLinks(siteLinks, searchLinks []string) map[string]*string {
	merged := make(map[string]*string, len(model.SocialPlatforms))
	for _, platform := range model.SocialPlatforms {
		merged[platform] = nil
	}
	for _, link := range append(append([]string{}, siteLinks...), searchLinks...) {
		platform := platformOf(link)
		if platform == "" || merged[platform] != nil {
			continue
		}
		l := link
		merged[platform] = &l
	}
	return merged
}

// platformOf returns the platform key a URL belongs to, or "".
func platformOf(link string) string {
	lower := strings.ToLower(link)
	for domain, platform := range socialDomains {
		if strings.Contains(lower, domain) {
			return platform
		}
	}
	return ""
}
