package parser

import (
	"context"
	"time"
)

// Document is a loaded page that can be queried and navigated.
// Implementations: the rod-backed browser page and StaticDocument.
type Document interface {
	// URL returns the address of the currently loaded page.
	URL() string

	// Find returns the elements matching selector in document order.
	// No match is an empty slice, not an error. Selectors prefixed with
	// "xpath:" are evaluated as XPath.
	Find(ctx context.Context, selector string) ([]Element, error)

	// Settle waits for d so the page can finish reacting to interaction.
	Settle(ctx context.Context, d time.Duration) error
}

// Element is a node of a Document.
type Element interface {
	Text(ctx context.Context) (string, error)

	// Attr returns the attribute value and whether it is present.
	Attr(ctx context.Context, name string) (string, bool, error)

	ScrollIntoView(ctx context.Context) error

	// Click activates the element. For links this navigates the owning
	// Document to the target page.
	Click(ctx context.Context) error
}

// HTMLLoader fetches raw HTML for static documents.
type HTMLLoader interface {
	// LoadHTML returns the body and the final URL after redirects.
	LoadHTML(ctx context.Context, rawURL string) (body []byte, finalURL string, err error)
}

// XPathPrefix marks a selector as XPath.
const XPathPrefix = "xpath:"

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
