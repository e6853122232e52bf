package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/khlemanenka99-ai/news-portal/internal/parser"
)

// Page adapts a Rod page to parser.Document.
type Page struct {
	page    *rod.Page
	timeout time.Duration
	logger  *slog.Logger
}

// NewPage wraps page. timeout bounds every element lookup and action.
func NewPage(page *rod.Page, timeout time.Duration, logger *slog.Logger) *Page {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Page{
		page:    page,
		timeout: timeout,
		logger:  logger.With("component", "browser_page"),
	}
}

// Rod returns the underlying page.
func (p *Page) Rod() *rod.Page { return p.page }

func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Find returns the matching elements without waiting for them to appear.
func (p *Page) Find(ctx context.Context, selector string) ([]parser.Element, error) {
	pg := p.page.Context(ctx).Timeout(p.timeout)

	var (
		els rod.Elements
		err error
	)
	if expr, ok := strings.CutPrefix(selector, parser.XPathPrefix); ok {
		els, err = pg.ElementsX(expr)
	} else {
		els, err = pg.Elements(selector)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]parser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el, timeout: p.timeout})
	}
	return out, nil
}

func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	return parser.Sleep(ctx, d)
}

// WaitFor waits until selector matches an element and it is visible.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	el, err := pg.Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.WaitVisible()
}

// WaitStable waits until the DOM stops changing for d.
func (p *Page) WaitStable(ctx context.Context, d time.Duration) error {
	return p.page.Context(ctx).Timeout(p.timeout).WaitStable(d)
}

// Navigate loads rawURL and waits for the load event.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	pg := p.page.Context(ctx).Timeout(p.timeout)
	if err := pg.Navigate(rawURL); err != nil {
		return err
	}
	return pg.WaitLoad()
}

type element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *element) bound(ctx context.Context) *rod.Element {
	return e.el.Context(ctx).Timeout(e.timeout)
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.bound(ctx).Text()
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.bound(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.bound(ctx).ScrollIntoView()
}

// Click clicks through JavaScript, which works on elements covered by
// overlays, and falls back to a real mouse click.
func (e *element) Click(ctx context.Context) error {
	el := e.bound(ctx)
	if _, err := el.Eval(`() => this.click()`); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("click: %w", err)
	}
	return nil
}
