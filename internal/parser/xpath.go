package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// queryXPath evaluates expr against the root of doc.
func queryXPath(doc *goquery.Document, expr string) ([]*html.Node, error) {
	if len(doc.Nodes) == 0 {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}
