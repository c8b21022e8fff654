package classify

import (
	"net/url"
	"strings"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
)

// Class is the decision made for a discovered link
type Class int

const (
	Irrelevant Class = iota
	Document
	FollowableLink
)

func (c Class) String() string {
	switch c {
	case Document:
		return "document"
	case FollowableLink:
		return "followable"
	default:
		return "irrelevant"
	}
}

// Classifier decides whether a link is downloaded, followed, or dropped.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	extensions []string
	keywords   []string
}

// New builds a Classifier from the validated configuration
func New(cfg config.AppConfig) *Classifier {
	return NewWithKeywords(cfg.DocumentExtensions, cfg.Keywords.Topics, cfg.Keywords.Structural)
}

// NewWithKeywords builds a Classifier from explicit extension and keyword lists
func NewWithKeywords(extensions, topics, structural []string) *Classifier {
	c := &Classifier{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.extensions = append(c.extensions, ext)
	}
	if len(c.extensions) == 0 {
		c.extensions = []string{".pdf"}
	}
	for _, set := range [][]string{topics, structural} {
		for _, kw := range set {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				c.keywords = append(c.keywords, kw)
			}
		}
	}
	return c
}

// Classify maps a URL and its anchor text to a Class
func (c *Classifier) Classify(rawURL, anchorText string) Class {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Irrelevant
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Irrelevant
	}

	if c.IsDocumentPath(u.Path) {
		return Document
	}

	haystack := strings.ToLower(rawURL) + " " + strings.ToLower(anchorText)
	for _, kw := range c.keywords {
		if strings.Contains(haystack, kw) {
			return FollowableLink
		}
	}
	return Irrelevant
}

// IsDocumentPath reports whether a URL path ends in a document extension
func (c *Classifier) IsDocumentPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range c.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// PrimaryExtension is the extension used for fingerprint-named downloads
func (c *Classifier) PrimaryExtension() string {
	return c.extensions[0]
}
