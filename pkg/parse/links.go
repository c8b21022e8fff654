package parse

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/curricula-harvester/pkg/models"
)

// ExtractLinks returns the outbound links of an HTML page.
// Every a[href] is resolved against the page URL (or its <base href>), fragment-only
// hrefs are dropped, fragments are stripped, and repeated URLs keep their first anchor.
// Malformed markup yields whatever anchors the parser recovers; an empty result is valid.
// contentType selects the character set; pages without a declaration are sniffed.
func ExtractLinks(body []byte, contentType, pageURL string) []models.DiscoveredLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(decodeBody(body, contentType))
	if err != nil {
		return nil
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if baseRef, errBase := base.Parse(strings.TrimSpace(href)); errBase == nil {
			base = baseRef
		}
	}

	var links []models.DiscoveredLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved, errResolve := base.Parse(href)
		if errResolve != nil {
			return
		}
		absolute := NormalizeURL(resolved)
		if seen[absolute] {
			return
		}
		seen[absolute] = true

		links = append(links, models.DiscoveredLink{
			URL:        absolute,
			Text:       collapseSpace(sel.Text()),
			SourcePage: pageURL,
		})
	})
	return links
}

// decodeBody converts the page to UTF-8. Unknown encodings fall back to the raw bytes.
func decodeBody(body []byte, contentType string) io.Reader {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return bytes.NewReader(body)
	}
	return r
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
