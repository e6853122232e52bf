package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticDocument is a Document over server-rendered HTML, queried with
// goquery (CSS) and htmlquery (XPath). Clicking a link loads its href
// through the HTMLLoader.
type StaticDocument struct {
	mu     sync.RWMutex
	url    string
	doc    *goquery.Document
	loader HTMLLoader
}

// NewStaticDocument parses body as the page at rawURL.
func NewStaticDocument(rawURL string, body []byte, loader HTMLLoader) (*StaticDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", rawURL, err)
	}
	return &StaticDocument{url: rawURL, doc: doc, loader: loader}, nil
}

func (d *StaticDocument) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

func (d *StaticDocument) Find(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	doc := d.doc
	d.mu.RUnlock()

	var sel *goquery.Selection
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		nodes, err := queryXPath(doc, expr)
		if err != nil {
			return nil, err
		}
		sel = doc.FindNodes(nodes...)
	} else {
		sel = doc.Find(selector)
	}

	elems := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elems = append(elems, &staticElement{sel: s, doc: d})
	})
	return elems, nil
}

func (d *StaticDocument) Settle(ctx context.Context, wait time.Duration) error {
	return Sleep(ctx, wait)
}

// navigate replaces the loaded page with the one at href.
func (d *StaticDocument) navigate(ctx context.Context, href string) error {
	if d.loader == nil {
		return fmt.Errorf("document %s has no loader for navigation", d.URL())
	}

	base, err := url.Parse(d.URL())
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("parse href %q: %w", href, err)
	}
	target := base.ResolveReference(ref).String()

	body, finalURL, err := d.loader.LoadHTML(ctx, target)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html from %s: %w", finalURL, err)
	}

	d.mu.Lock()
	d.url = finalURL
	d.doc = doc
	d.mu.Unlock()
	return nil
}

type staticElement struct {
	sel *goquery.Selection
	doc *StaticDocument
}

func (e *staticElement) Text(context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *staticElement) ScrollIntoView(context.Context) error { return nil }

// Click follows the element's href, or the href of its closest link
// ancestor.
func (e *staticElement) Click(ctx context.Context) error {
	href, ok := e.sel.Attr("href")
	if !ok {
		href, ok = e.sel.Closest("a[href]").Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("element is not a link")
	}
	return e.doc.navigate(ctx, href)
}
