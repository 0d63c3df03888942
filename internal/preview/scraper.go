package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxDocumentBytes = 2 << 20

var (
	ErrInvalidURL = errors.New("url must be absolute http(s)")
	ErrNoMetadata = errors.New("page has no preview metadata")
	// ErrForbiddenHost is returned when the page or a redirect target
	// resolves to a loopback, private or link-local address.
	ErrForbiddenHost = errors.New("url resolves to a non-public address")
)

type Metadata struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Image       *string `json:"image"`
	SiteName    string  `json:"siteName,omitempty"`
}

type Scraper struct {
	client       *http.Client
	timeout      time.Duration
	allowPrivate bool
}

type Option func(*Scraper)

// WithPrivateNetworks lets the scraper reach non-public addresses.
func WithPrivateNetworks() Option { return func(s *Scraper) { s.allowPrivate = true } }

func NewScraper(timeout time.Duration, opts ...Option) *Scraper {
	s := &Scraper{timeout: timeout}
	for _, o := range opts {
		o(s)
	}
	dialer := &net.Dialer{Timeout: timeout}
	if !s.allowPrivate {
		dialer.Control = publicOnly
	}
	s.client = &http.Client{Transport: &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}}
	return s
}

// publicOnly runs after name resolution, so every redirect hop and every
// resolved address is checked.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return ErrForbiddenHost
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// Fetch downloads a page and extracts its OpenGraph metadata, falling back
// to <title> and the description meta tag.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	page, err := url.Parse(rawURL)
	if err != nil || (page.Scheme != "http" && page.Scheme != "https") || page.Host == "" {
		return Metadata{}, ErrInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("User-Agent", "rendezvous-preview/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, fmt.Errorf("source responded %d", resp.StatusCode)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt != "text/html" && mt != "application/xhtml+xml" {
		return Metadata{}, fmt.Errorf("unexpected content type %q", mt)
	}

	meta, err := parse(io.LimitReader(resp.Body, maxDocumentBytes), page)
	if err != nil {
		return Metadata{}, err
	}
	if meta.Title == "" && meta.Description == "" && meta.Image == nil && meta.SiteName == "" {
		return Metadata{}, ErrNoMetadata
	}
	return meta, nil
}

func parse(r io.Reader, page *url.URL) (Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	var fallbackTitle, fallbackDescription string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Meta:
				key, content := metaPair(n)
				switch key {
				case "og:title":
					setOnce(&meta.Title, content)
				case "og:description":
					setOnce(&meta.Description, content)
				case "og:site_name":
					setOnce(&meta.SiteName, content)
				case "og:image", "og:image:url", "og:image:secure_url":
					if meta.Image == nil && content != "" {
						if img := resolve(page, content); img != "" {
							meta.Image = &img
						}
					}
				case "description":
					setOnce(&fallbackDescription, content)
				}
			case atom.Title:
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					setOnce(&fallbackTitle, n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	setOnce(&meta.Title, fallbackTitle)
	setOnce(&meta.Description, fallbackDescription)
	return meta, nil
}

func metaPair(n *html.Node) (key, content string) {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	return key, content
}

func setOnce(dst *string, v string) {
	v = strings.TrimSpace(v)
	if *dst == "" && v != "" {
		*dst = v
	}
}

func resolve(page *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return page.ResolveReference(u).String()
}
