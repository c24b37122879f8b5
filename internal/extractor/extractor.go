package extractor

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitecrawler/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// DefaultExcerptLength is the maximum length, in runes, of a page excerpt.
const DefaultExcerptLength = 300

// Result is the outcome of extracting one document.
type Result struct {
	Title       string
	Description string
	// Charset is the character encoding the body was decoded from.
	Charset string
	// Links are absolute, fragment-free outbound references in discovery order.
	Links []string
	// Text is the visible text with whitespace collapsed.
	Text string
	Data model.PageData
}

// Extractor turns document bodies into Results. It is safe for concurrent use.
type Extractor struct {
	emails     Matcher
	phones     Matcher
	social     *SocialMatcher
	script     []Matcher
	scriptURLs []Matcher
	excerptLen int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEmails toggles email extraction.
func WithEmails(enabled bool) Option {
	return func(e *Extractor) {
		if enabled {
			e.emails = EmailMatcher()
		} else {
			e.emails = nil
		}
	}
}

// WithPhones toggles phone number extraction.
func WithPhones(enabled bool) Option {
	return func(e *Extractor) {
		if enabled {
			e.phones = PhoneMatcher()
		} else {
			e.phones = nil
		}
	}
}

// WithSocialLinks toggles social profile extraction.
func WithSocialLinks(enabled bool) Option {
	return func(e *Extractor) {
		if enabled {
			e.social = NewSocialMatcher()
		} else {
			e.social = nil
		}
	}
}

// WithScriptMatcher adds a matcher whose findings in inline scripts are
// reported as API endpoint candidates.
func WithScriptMatcher(m Matcher) Option {
	return func(e *Extractor) {
		e.script = append(e.script, m)
	}
}

// WithScriptURLMatcher adds a matcher whose findings in inline scripts are
// treated as outbound references.
func WithScriptURLMatcher(m Matcher) Option {
	return func(e *Extractor) {
		e.scriptURLs = append(e.scriptURLs, m)
	}
}

// WithExcerptLength sets the excerpt length in runes.
func WithExcerptLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.excerptLen = n
		}
	}
}

// New returns an Extractor with every built-in matcher enabled.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		emails:     EmailMatcher(),
		phones:     PhoneMatcher(),
		social:     NewSocialMatcher(),
		script:     []Matcher{APIEndpointMatcher()},
		scriptURLs: []Matcher{ScriptLiteralMatcher(), FetchCallMatcher()},
		excerptLen: DefaultExcerptLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses body, served with contentType from baseURL. baseURL must
// be the final URL of the fetch so relative references resolve correctly.
// Stylesheets yield their url() references only; other non-HTML bodies
// yield an empty Result.
func (e *Extractor) Extract(body []byte, contentType, baseURL string) (*Result, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	mediaType, _, _ := mime.ParseMediaType(contentType) //nolint:errcheck // empty on failure
	switch strings.ToLower(mediaType) {
	case "", "text/html", "application/xhtml+xml":
	case "text/css":
		links := newLinkSet(base)
		links.addCSS(string(body))
		return &Result{Links: links.links}, nil
	default:
		return &Result{}, nil
	}

	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name != "utf-8" {
		decoded, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", name, err)
		}
		body = decoded
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{Charset: name}
	links := newLinkSet(base)
	scripts := e.walk(root, links)

	doc := goquery.NewDocumentFromNode(root)
	res.Title = collapse(doc.Find("title").First().Text())
	res.Data.Meta = metadata(doc)
	res.Description = res.Data.Meta["description"]
	res.Data.Language = pageLanguage(doc, res.Data.Meta)
	res.Data.Headings = headings(doc)
	res.Data.Images = images(doc, base)
	res.Data.Forms = forms(doc, base)

	for _, m := range e.scriptURLs {
		for _, ref := range m.Find(scripts) {
			links.add(ref)
		}
	}
	for _, m := range e.script {
		res.Data.APIEndpoints = appendUnique(res.Data.APIEndpoints, m.Find(scripts)...)
	}
	res.Links = links.links
	mailto := schemeTargets(doc, "mailto:")
	tel := schemeTargets(doc, "tel:")

	doc.Find("script, style, noscript, template").Remove()
	visible := doc.Find("body")
	if visible.Length() == 0 {
		visible = doc.Selection
	}
	words := strings.Fields(visible.Text())
	res.Text = strings.Join(words, " ")
	res.Data.WordCount = len(words)
	res.Data.Excerpt = truncate(res.Text, e.excerptLen)

	e.contacts(res, mailto, tel)
	return res, nil
}

// walk collects references from the element tree and returns the
// concatenated inline script text.
func (e *Extractor) walk(root *html.Node, links *linkSet) string {
	var scripts strings.Builder

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, key := range linkAttrs[n.DataAtom] {
				if v := attr(n, key); v != "" {
					links.add(v)
				}
			}
			if srcsetAttrs[n.DataAtom] {
				if v := attr(n, "srcset"); v != "" {
					links.addSrcset(v)
				}
			}
			if style := attr(n, "style"); style != "" {
				links.addCSS(style)
			}

			switch n.DataAtom {
			case atom.Style:
				links.addCSS(nodeText(n))
			case atom.Script:
				if attr(n, "src") == "" {
					scripts.WriteString(nodeText(n))
					scripts.WriteByte('\n')
				}
			case atom.Meta:
				if strings.EqualFold(attr(n, "http-equiv"), "refresh") {
					if target := refreshTarget(attr(n, "content")); target != "" {
						links.add(target)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	return scripts.String()
}

// contacts fills emails, phones and social links from the visible text,
// the mailto: and tel: targets, and the collected references.
func (e *Extractor) contacts(res *Result, mailto, tel []string) {
	if e.emails != nil {
		res.Data.Emails = e.emails.Find(res.Text)
		for _, addr := range mailto {
			res.Data.Emails = appendUnique(res.Data.Emails, e.emails.Find(addr)...)
		}
	}
	if e.phones != nil {
		res.Data.Phones = e.phones.Find(res.Text)
		for _, number := range tel {
			res.Data.Phones = appendUnique(res.Data.Phones, e.phones.Find(number)...)
		}
	}
	if e.social != nil {
		seen := make(map[string]struct{})
		for _, link := range res.Links {
			if s, ok := e.social.Match(link); ok {
				if _, dup := seen[s.URL]; !dup {
					seen[s.URL] = struct{}{}
					res.Data.SocialLinks = append(res.Data.SocialLinks, s)
				}
			}
		}
	}
}

// schemeTargets returns the unescaped targets of anchors using scheme
// ("mailto:" or "tel:"), which the link set skips. Query parameters are dropped.
func schemeTargets(doc *goquery.Document, scheme string) []string {
	var found []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if len(href) <= len(scheme) || !strings.EqualFold(href[:len(scheme)], scheme) {
			return
		}
		target, _, _ := strings.Cut(href[len(scheme):], "?")
		if target, err := url.PathUnescape(target); err == nil && target != "" {
			found = appendUnique(found, target)
		}
	})
	return found
}

func metadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("name", "")
		if key == "" {
			key = s.AttrOr("property", "")
		}
		if key == "" {
			key = s.AttrOr("http-equiv", "")
		}
		content, ok := s.Attr("content")
		if key == "" || !ok {
			return
		}
		meta[strings.ToLower(key)] = strings.TrimSpace(content)
	})
	return meta
}

// pageLanguage returns the html lang attribute, falling back to the
// Content-Language meta header.
func pageLanguage(doc *goquery.Document, meta map[string]string) string {
	if lang := strings.TrimSpace(doc.Find("html").AttrOr("lang", "")); lang != "" {
		return lang
	}
	return meta["content-language"]
}

func headings(doc *goquery.Document) map[string][]string {
	out := make(map[string][]string)
	for _, level := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			if text := collapse(s.Text()); text != "" {
				out[level] = append(out[level], text)
			}
		})
	}
	return out
}

func images(doc *goquery.Document, base *url.URL) []model.Image {
	var out []model.Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := resolve(base, s.AttrOr("src", s.AttrOr("data-src", "")))
		if src == "" {
			return
		}
		out = append(out, model.Image{
			Src:    src,
			Alt:    strings.TrimSpace(s.AttrOr("alt", "")),
			Title:  strings.TrimSpace(s.AttrOr("title", "")),
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
	})
	return out
}

func forms(doc *goquery.Document, base *url.URL) []model.Form {
	var out []model.Form
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action := base.String()
		if raw := strings.TrimSpace(s.AttrOr("action", "")); raw != "" {
			if resolved := resolve(base, raw); resolved != "" {
				action = resolved
			} else {
				action = raw
			}
		}
		form := model.Form{
			Action: action,
			Method: strings.ToUpper(s.AttrOr("method", "GET")),
		}
		s.Find("input, select, textarea").Each(func(_ int, f *goquery.Selection) {
			name := f.AttrOr("name", "")
			if name == "" {
				return
			}
			fieldType := strings.ToLower(f.AttrOr("type", ""))
			if fieldType == "" {
				switch goquery.NodeName(f) {
				case "textarea":
					fieldType = "textarea"
				case "select":
					fieldType = "select"
				default:
					fieldType = "text"
				}
			}
			_, required := f.Attr("required")
			form.Fields = append(form.Fields, model.FormField{Name: name, Type: fieldType, Required: required})
		})
		out = append(out, form)
	})
	return out
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
