package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// ParagraphSeparator joins body paragraphs.
const ParagraphSeparator = "\n\n"

// Delays are the fixed waits around simulated interaction.
type Delays struct {
	Scroll time.Duration // after scrolling the listing link into view
	Click  time.Duration // after clicking it
}

// Extractor pulls one article out of a listing page.
//
// Required elements (listing link, title) fail hard with an
// *types.ExtractionError. Optional ones (author, header image) fall back
// to an empty string.
type Extractor struct {
	sel    config.SelectorsConfig
	delays Delays
	regex  *RegexCache
	logger *slog.Logger
}

// NewExtractor creates an Extractor for the given selectors.
func NewExtractor(sel config.SelectorsConfig, delays Delays, logger *slog.Logger) *Extractor {
	return &Extractor{
		sel:    sel,
		delays: delays,
		regex:  NewRegexCache(),
		logger: logger.With("component", "extractor"),
	}
}

// Extract navigates from the listing page in doc to the first article and
// returns it as a candidate. Steps run in a fixed order and never go back.
func (x *Extractor) Extract(ctx context.Context, doc Document, categoryHint int) (*types.NewsCandidate, error) {
	logger := x.logger.With("category", categoryHint)
	listingURL := doc.URL()

	// 1. listing link
	link, selector, err := x.first(ctx, doc, x.sel.ListingLink)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, &types.ExtractionError{
			Stage:    "listing_link",
			URL:      listingURL,
			Selector: strings.Join(x.sel.ListingLink, " | "),
			Err:      types.ErrElementNotFound,
		}
	}

	// 2. navigate to the article
	if err := link.ScrollIntoView(ctx); err != nil {
		logger.Debug("scroll into view failed", "selector", selector, "error", err)
	}
	if err := doc.Settle(ctx, x.delays.Scroll); err != nil {
		return nil, err
	}
	if err := link.Click(ctx); err != nil {
		return nil, &types.ExtractionError{Stage: "navigate", URL: listingURL, Selector: selector, Err: err}
	}
	if err := doc.Settle(ctx, x.delays.Click); err != nil {
		return nil, err
	}
	articleURL := doc.URL()

	// 3. title
	title, err := x.firstText(ctx, doc, x.sel.Title)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, &types.ExtractionError{
			Stage:    "title",
			URL:      articleURL,
			Selector: strings.Join(x.sel.Title, " | "),
			Err:      types.ErrTitleMissing,
		}
	}

	candidate := &types.NewsCandidate{Title: title, SourceURL: articleURL}

	// 4. author (optional)
	candidate.Author, err = x.firstText(ctx, doc, x.sel.Author)
	if err != nil {
		return nil, err
	}
	if candidate.Author == "" {
		logger.Debug("author not found", "url", articleURL)
	}

	// 5. header image (optional)
	candidate.ImageURL, err = x.headerImage(ctx, doc)
	if err != nil {
		return nil, err
	}
	if candidate.ImageURL == "" {
		logger.Debug("header image not found", "url", articleURL)
	}

	// 6. body
	paragraphs, err := x.paragraphs(ctx, doc)
	if err != nil {
		return nil, err
	}
	candidate.Body = strings.Join(paragraphs, ParagraphSeparator)

	logger.Debug("article extracted",
		"url", articleURL,
		"title", candidate.Title,
		"paragraphs", len(paragraphs),
	)
	return candidate, nil
}

// first returns the first element matched by the first selector in the
// list that has any match.
func (x *Extractor) first(ctx context.Context, doc Document, selectors []string) (Element, string, error) {
	for _, s := range selectors {
		elems, err := doc.Find(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			x.logger.Debug("selector lookup failed", "selector", s, "error", err)
			continue
		}
		if len(elems) > 0 {
			return elems[0], s, nil
		}
	}
	return nil, "", nil
}

func (x *Extractor) firstText(ctx context.Context, doc Document, selectors []string) (string, error) {
	el, _, err := x.first(ctx, doc, selectors)
	if err != nil || el == nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", nil
	}
	return strings.TrimSpace(text), nil
}

func (x *Extractor) headerImage(ctx context.Context, doc Document) (string, error) {
	el, _, err := x.first(ctx, doc, x.sel.HeaderImage)
	if err != nil || el == nil {
		return "", err
	}
	style, ok, err := el.Attr(ctx, "style")
	if err != nil || !ok {
		return "", ctx.Err()
	}
	imageURL, found, err := x.regex.FirstGroup(HeaderImagePattern, style)
	if err != nil {
		return "", fmt.Errorf("header image pattern: %w", err)
	}
	if !found {
		return "", nil
	}
	return imageURL, nil
}

func (x *Extractor) paragraphs(ctx context.Context, doc Document) ([]string, error) {
	for _, s := range x.sel.Paragraphs {
		elems, err := doc.Find(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(elems) == 0 {
			continue
		}

		out := make([]string, 0, len(elems))
		for _, el := range elems {
			text, err := el.Text(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, text)
			}
		}
		return out, nil
	}
	return nil, nil
}
