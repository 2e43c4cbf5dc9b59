// Package extract turns the semi-structured source document into an ordered
// RecordSet.
//
// The document is assumed to contain a uniquely identifiable heading anchor
// (an element whose id attribute matches the configured anchor) followed by
// one table whose data rows carry at least three cells: rank, bank name, and
// market cap in USD as text. This positional assumption is the most fragile
// part of the whole pipeline, so the policy is fail fast and loud: if the
// anchor or the table cannot be located, extraction stops with a
// *StructureError rather than guessing.
//
// Locating the table and iterating its rows are kept behind the narrow
// LocateTable / Rows helpers so the parsing strategy can be swapped without
// touching the transform or sink stages.
package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"banketl/internal/domain"
)

// DefaultAnchor is the heading id of the market-capitalization section in
// the source document.
const DefaultAnchor = "By_market_capitalization"

// StructureError reports a violated structural assumption about the source
// document: the anchor is missing, no table follows it, or a data row does
// not carry the expected cell positions.
type StructureError struct {
	Anchor string
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("document structure: %s (anchor %q)", e.Reason, e.Anchor)
}

// Extractor reads rank/name/market-cap rows from the table following the
// configured anchor.
type Extractor struct {
	// Anchor is the id of the heading that precedes the target table.
	// Empty means DefaultAnchor.
	Anchor string
}

// Extract parses the document from r and returns one RawRecord per data row,
// in document order.
//
// Row handling:
//   - rows without any <td> cell (header rows, separator rows) are skipped
//   - rows with three or more cells yield a record: cell 1 is the name,
//     cell 2 the market-cap text
//   - rows with one or two cells cannot produce the full column set and are
//     a contract violation: extraction fails
//
// columns must equal domain.ExtractColumns; the parameter exists so callers
// state (and tests verify) the produced column contract explicitly.
func (x Extractor) Extract(r io.Reader, columns []string) (domain.RecordSet, error) {
	anchor := x.Anchor
	if anchor == "" {
		anchor = DefaultAnchor
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, &StructureError{Anchor: anchor, Reason: fmt.Sprintf("unparseable document: %v", err)}
	}

	table, err := LocateTable(root, anchor)
	if err != nil {
		return nil, err
	}

	var out domain.RecordSet
	for _, row := range Rows(table) {
		cells := dataCells(row)
		if len(cells) == 0 {
			continue
		}
		if len(cells) < 3 {
			return nil, &StructureError{
				Anchor: anchor,
				Reason: fmt.Sprintf("data row has %d cells, need at least 3 (rank, name, market cap)", len(cells)),
			}
		}
		out = append(out, domain.RawRecord{
			Name:         cellText(cells[1]),
			MarketCapUSD: cellText(cells[2]),
		})
	}
	return out, nil
}

// checkColumns enforces the extraction column contract.
func checkColumns(columns []string) error {
	if len(columns) != len(domain.ExtractColumns) {
		return fmt.Errorf("extract: expected columns %v, got %v", domain.ExtractColumns, columns)
	}
	for i, c := range domain.ExtractColumns {
		if columns[i] != c {
			return fmt.Errorf("extract: expected columns %v, got %v", domain.ExtractColumns, columns)
		}
	}
	return nil
}

// LocateTable finds the first <table> element that follows, in document
// order, the element whose id attribute equals anchorID. It returns a
// *StructureError when either the anchor or the table is absent.
func LocateTable(root *html.Node, anchorID string) (*html.Node, error) {
	anchorNode := findByID(root, anchorID)
	if anchorNode == nil {
		return nil, &StructureError{Anchor: anchorID, Reason: "anchor not found"}
	}

	table := nextElement(anchorNode, atom.Table)
	if table == nil {
		return nil, &StructureError{Anchor: anchorID, Reason: "no table follows the anchor"}
	}
	return table, nil
}

// Rows returns the <tr> descendants of table in document order.
func Rows(table *html.Node) []*html.Node {
	var rows []*html.Node
	walk(table, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			rows = append(rows, n)
			return false // cells only; tables nested in cells are not ours
		}
		return true
	})
	return rows
}

// dataCells returns the direct <td> children of a row. Header cells (<th>)
// are deliberately excluded so header rows count as zero-cell rows and get
// skipped.
func dataCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	return cells
}

// cellText flattens a cell to plain text: nested elements contribute their
// text, citation superscripts are dropped, and whitespace is collapsed.
func cellText(cell *html.Node) string {
	var b strings.Builder
	walk(cell, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Sup {
			return false // [1]-style reference markers
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return collapseWhitespace(b.String())
}

// findByID returns the first element whose id attribute equals id.
func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					found = n
					return false
				}
			}
		}
		return true
	})
	return found
}

// nextElement returns the first element with the given atom that appears
// strictly after n in document order.
func nextElement(n *html.Node, a atom.Atom) *html.Node {
	for cur := nextNode(n); cur != nil; cur = nextNode(cur) {
		if cur.Type == html.ElementNode && cur.DataAtom == a {
			return cur
		}
	}
	return nil
}

// nextNode advances one step in document (pre-)order: first child, else next
// sibling, else the next sibling of the closest ancestor that has one.
func nextNode(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// walk visits n and its descendants in document order. The visitor returns
// false to prune the subtree below the visited node.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// collapseWhitespace reduces whitespace runs (including NBSP) to a single
// space and trims the edges.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	seenSpace := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0':
			if !seenSpace {
				b.WriteByte(' ')
				seenSpace = true
			}
		default:
			b.WriteRune(r)
			seenSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
