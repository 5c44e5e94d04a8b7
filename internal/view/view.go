// Package view models the server browser page as seen by the reconciler.
//
// Rows are found by class, identified by an attribute carrying the server id and flagged as
// processed with a marker class once their count cell has been rewritten. Claims are held
// in memory only: they last for one appearance of a row and stop concurrent scans selecting
// a row whose roster is still being fetched.
package view

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

var (
	ErrDetached = errors.New("row no longer part of the view")
	ErrNoCell   = errors.New("row has no count cell")
	ErrParse    = errors.New("failed to parse page")
	ErrRender   = errors.New("failed to render page")
)

// Row is a single server entry claimed for processing.
type Row interface {
	ServerID() string
	// Apply rewrites the count cell markup and flags the row as processed in one step. An
	// error from fn leaves the row untouched and unmarked.
	Apply(fn func(markup string) (string, error)) error
}

// View is the surface the reconciler scans.
type View interface {
	URL() string
	// Claim returns the rows that are neither marked nor already claimed, claiming them.
	Claim() []Row
}

// Selectors describe how rows are located in the markup.
type Selectors struct {
	RowClass    string
	IDAttr      string
	CellClass   string
	MarkerClass string
}

// Battlelog are the selectors matching the Battlefield 3 server browser.
var Battlelog = Selectors{ //nolint:gochecknoglobals
	RowClass:    "serverguide-bodycells",
	IDAttr:      "guid",
	CellClass:   "serverguide-cell-players",
	MarkerClass: "bblog-true-players",
}

// RowState is a read only description of a row, used for reporting.
type RowState struct {
	ServerID  string
	Claimed   bool
	Processed bool
	Markup    string
}

// Document is a View over a parsed html page. It is safe for concurrent use.
type Document struct {
	mu         sync.Mutex
	selectors  Selectors
	root       *html.Node
	url        string
	generation uint64
	claimed    map[*html.Node]struct{}
}

func NewDocument(selectors Selectors) *Document {
	return &Document{
		selectors: selectors,
		root:      &html.Node{Type: html.DocumentNode},
		claimed:   map[*html.Node]struct{}{},
	}
}

// Load replaces the current page. This is equivalent to the host re-rendering: rows of the
// previous page are detached and any pending work on them becomes a no-op.
func (d *Document) Load(reader io.Reader, pageURL string) error {
	root, errParse := html.Parse(reader)
	if errParse != nil {
		return errors.Join(errParse, ErrParse)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.root = root
	d.url = pageURL
	d.generation++
	d.claimed = map[*html.Node]struct{}{}

	return nil
}

func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.url
}

// Render writes the current markup.
func (d *Document) Render(writer io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := html.Render(writer, d.root); err != nil {
		return errors.Join(err, ErrRender)
	}

	return nil
}

func (d *Document) Claim() []Row {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rows []Row

	for _, node := range d.rowNodes() {
		if hasClass(node, d.selectors.MarkerClass) {
			continue
		}

		if _, found := d.claimed[node]; found {
			continue
		}

		serverID := attr(node, d.selectors.IDAttr)
		if serverID == "" {
			continue
		}

		d.claimed[node] = struct{}{}
		rows = append(rows, &docRow{doc: d, node: node, generation: d.generation, serverID: serverID})
	}

	return rows
}

// Rows describes every row currently in the page.
func (d *Document) Rows() []RowState {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := d.rowNodes()
	states := make([]RowState, 0, len(nodes))

	for _, node := range nodes {
		_, claimed := d.claimed[node]
		state := RowState{
			ServerID:  attr(node, d.selectors.IDAttr),
			Claimed:   claimed,
			Processed: hasClass(node, d.selectors.MarkerClass),
		}

		if cell := findClass(node, d.selectors.CellClass); cell != nil {
			state.Markup = innerHTML(cell)
		}

		states = append(states, state)
	}

	return states
}

func (d *Document) rowNodes() []*html.Node {
	var nodes []*html.Node

	walk(d.root, func(node *html.Node) bool {
		if node.Type == html.ElementNode && hasClass(node, d.selectors.RowClass) {
			nodes = append(nodes, node)

			return false
		}

		return true
	})

	return nodes
}

type docRow struct {
	doc        *Document
	node       *html.Node
	generation uint64
	serverID   string
}

func (r *docRow) ServerID() string {
	return r.serverID
}

func (r *docRow) Apply(fn func(markup string) (string, error)) error {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	if r.generation != r.doc.generation {
		return ErrDetached
	}

	cell := findClass(r.node, r.doc.selectors.CellClass)
	if cell == nil {
		return ErrNoCell
	}

	updated, errFn := fn(innerHTML(cell))
	if errFn != nil {
		return errFn
	}

	children, errParse := html.ParseFragment(strings.NewReader(updated), cell)
	if errParse != nil {
		return errors.Join(errParse, ErrParse)
	}

	for child := cell.FirstChild; child != nil; child = cell.FirstChild {
		cell.RemoveChild(child)
	}

	for _, child := range children {
		cell.AppendChild(child)
	}

	addClass(r.node, r.doc.selectors.MarkerClass)

	return nil
}

// walk visits nodes depth first, descending only while visit returns true.
func walk(node *html.Node, visit func(*html.Node) bool) {
	if !visit(node) {
		return
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func findClass(node *html.Node, class string) *html.Node {
	var found *html.Node

	walk(node, func(current *html.Node) bool {
		if found != nil {
			return false
		}

		if current != node && current.Type == html.ElementNode && hasClass(current, class) {
			found = current

			return false
		}

		return true
	})

	return found
}

func attr(node *html.Node, key string) string {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return strings.TrimSpace(attribute.Val)
		}
	}

	return ""
}

func hasClass(node *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(node, "class")), class)
}

func addClass(node *html.Node, class string) {
	if hasClass(node, class) {
		return
	}

	for idx, attribute := range node.Attr {
		if attribute.Key == "class" {
			node.Attr[idx].Val = strings.TrimSpace(attribute.Val + " " + class)

			return
		}
	}

	node.Attr = append(node.Attr, html.Attribute{Key: "class", Val: class})
}

func innerHTML(node *html.Node) string {
	var buf bytes.Buffer
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&buf, child); err != nil {
			return buf.String()
		}
	}

	return buf.String()
}
