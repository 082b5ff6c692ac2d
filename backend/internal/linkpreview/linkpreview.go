// Package linkpreview builds title/description/image previews for resource
// links.
package linkpreview

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"sciencetopia/backend/pkg/errors"
	"sciencetopia/backend/pkg/logger"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; SciencetopiaBot/1.0)"
	maxBodySize  = 2 << 20
	maxRedirects = 5
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)

	// carrier-grade NAT space; not covered by netip.Addr.IsPrivate
	sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

	errBlockedAddress = stderrors.New("destination address is not public")
)

// Preview is the metadata shown next to a link
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Fetcher downloads pages and extracts previews
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher whose requests time out after timeout. It
// only connects to public addresses, checked after DNS resolution on every
// dial, so redirects cannot reach internal hosts either.
func NewFetcher(timeout time.Duration) *Fetcher {
	return newFetcher(timeout, publicOnly)
}

func newFetcher(timeout time.Duration, control func(network, address string, c syscall.RawConn) error) *Fetcher {
	dialer := &net.Dialer{Timeout: timeout, Control: control}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:       timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		logger: logger.Named("linkpreview"),
	}
}

// publicOnly is a net.Dialer Control hook rejecting loopback, private,
// link-local, multicast and unspecified destinations
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect to %s", errBlockedAddress, req.URL.Scheme)
	}
	return nil
}

// ExtractURL returns the first http(s) URL in text
func ExtractURL(text string) (*url.URL, error) {
	match := urlPattern.FindString(text)
	if match == "" {
		return nil, errors.NewValidation("url", "no URL found in the text")
	}
	u, err := url.Parse(match)
	if err != nil || u.Host == "" {
		return nil, errors.NewValidation("url", "malformed URL")
	}
	return u, nil
}

// Fetch previews the first URL found in text
func (f *Fetcher) Fetch(ctx context.Context, text string) (Preview, error) {
	target, err := ExtractURL(text)
	if err != nil {
		return Preview{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Preview{}, errors.NewValidation("url", err.Error())
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if stderrors.Is(err, errBlockedAddress) {
		f.logger.Warn("Link preview target blocked", zap.String("url", target.String()), zap.Error(err))
		return Preview{}, errors.NewValidation("url", "destination is not a public address")
	}
	if err != nil {
		f.logger.Warn("Link preview fetch failed", zap.String("url", target.String()), zap.Error(err))
		return Preview{}, errors.NewUpstream(target.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Preview{}, errors.NewNotFound("page", fmt.Sprintf("%s (HTTP %d)", target, resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/pdf" {
		return Preview{URL: target.String(), Title: pdfTitle(target)}, nil
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), contentType)
	if err != nil {
		return Preview{}, errors.NewUpstream(target.String(), err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Preview{}, errors.NewUpstream(target.String(), err)
	}
	return extract(doc, target), nil
}

func extract(doc *goquery.Document, base *url.URL) Preview {
	p := Preview{URL: base.String()}

	p.Title = meta(doc, `meta[property="og:title"]`)
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	p.Description = meta(doc, `meta[property="og:description"]`)
	if p.Description == "" {
		p.Description = meta(doc, `meta[name="description"]`)
	}

	if image := meta(doc, `meta[property="og:image"]`); image != "" {
		if ref, err := url.Parse(image); err == nil {
			image = base.ResolveReference(ref).String()
		}
		p.Image = image
	}
	return p
}

func meta(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// pdfTitle names a PDF after its file, without the extension
func pdfTitle(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return u.Host
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
