package iso20022

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoveToElement advances r until a StartElement whose local name equals
// name is found, returning it. It does not look past io.EOF; a caller
// that needs bounded (subtree-only) search should track depth itself
// using the StartElement/EndElement tokens MoveToElement does not
// consume past the match.
func MoveToElement(r *PullReader, name string) (xml.StartElement, bool, error) {
	for {
		tok, err := r.Token()
		if err == io.EOF {
			return xml.StartElement{}, false, nil
		}
		if err != nil {
			return xml.StartElement{}, false, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == name {
			return se, true, nil
		}
	}
}

// ReadElementAsString reads simple character content up to the
// matching end element for an already-consumed StartElement (the
// caller must have just received `start` from Token()). Nested
// elements are skipped; only direct character data is collected.
func ReadElementAsString(r *PullReader, start xml.StartElement) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				b.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return strings.TrimSpace(b.String()), nil
			}
			depth--
		}
	}
}

// ReadElementAsDecimal parses an element's text content as a decimal
// number. Content always uses '.' as the decimal separator; no
// locale-sensitive parsing path exists.
func ReadElementAsDecimal(r *PullReader, start xml.StartElement) (decimal.Decimal, error) {
	text, err := ReadElementAsString(r, start)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("iso20022: %q is not a valid decimal: %w", text, err)
	}
	return d, nil
}

// ReadElementAsDateTime parses an element's text content as an
// ISO-8601 timestamp, trying RFC3339 (with and without fractional
// seconds) and falling back to a bare date.
func ReadElementAsDateTime(r *PullReader, start xml.StartElement) (time.Time, error) {
	text, err := ReadElementAsString(r, start)
	if err != nil {
		return time.Time{}, err
	}
	return parseISO8601(text)
}

func parseISO8601(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("iso20022: %q is not a valid ISO-8601 timestamp: %w", text, lastErr)
}

// SkipElement consumes tokens up to and including the matching end
// element for a StartElement already read from Token(). It is the
// pull-reader equivalent of "skip to next sibling", used by the header
// and body parsers to pass over elements they do not read.
func SkipElement(r *PullReader, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// ReadDateElement reads a date element that wraps either
// `<Dt>YYYY-MM-DD</Dt>` or `<DtTm>...</DtTm>`, as used throughout camt
// and pain entries (BookgDt, ValDt, ...).
func ReadDateElement(r *PullReader, start xml.StartElement) (time.Time, error) {
	depth := 0
	var result time.Time
	var found bool
	for {
		tok, err := r.Token()
		if err != nil {
			return time.Time{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && (t.Name.Local == "Dt" || t.Name.Local == "DtTm") {
				text, err := ReadElementAsString(r, t)
				if err != nil {
					return time.Time{}, err
				}
				parsed, err := parseISO8601(text)
				if err != nil {
					return time.Time{}, err
				}
				result = parsed
				found = true
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				if !found {
					return time.Time{}, fmt.Errorf("iso20022: date element %s has neither Dt nor DtTm", start.Name.Local)
				}
				return result, nil
			}
			depth--
		}
	}
}

// ReadAmountElement reads an amount element carrying a `Ccy` attribute,
// returning the parsed decimal amount and the currency code.
func ReadAmountElement(r *PullReader, start xml.StartElement) (decimal.Decimal, string, error) {
	currency := ""
	for _, attr := range start.Attr {
		if attr.Name.Local == "Ccy" {
			currency = attr.Value
			break
		}
	}
	amount, err := ReadElementAsDecimal(r, start)
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	return amount, currency, nil
}

// ElementTree is a generic, order-preserving representation of an XML
// subtree, returned by ReadSubtreeAsTree for callers that need to
// inspect a sub-structure generically instead of decoding it into a
// concrete Go type. Insertion order is preserved so repeated walks see
// children in document order.
type ElementTree struct {
	keys   []string
	values map[string]any
}

func newElementTree() *ElementTree {
	return &ElementTree{values: make(map[string]any)}
}

// Put inserts or overwrites key at this level, preserving first-insert
// order for Keys/ForEach.
func (t *ElementTree) Put(key string, value any) {
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value at key, or nil if absent.
func (t *ElementTree) Get(key string) any { return t.values[key] }

// Has reports whether key exists at this level.
func (t *ElementTree) Has(key string) bool {
	_, ok := t.values[key]
	return ok
}

// Len returns the number of keys at this level.
func (t *ElementTree) Len() int { return len(t.keys) }

// Keys returns the keys in insertion order.
func (t *ElementTree) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// ForEach iterates in insertion order, stopping early if fn returns
// false.
func (t *ElementTree) ForEach(fn func(key string, value any) bool) {
	for _, k := range t.keys {
		if !fn(k, t.values[k]) {
			return
		}
	}
}

// ReadSubtreeAsTree reads the whole subtree rooted at an
// already-consumed StartElement into an ElementTree: attributes become
// "@name" keys, character data becomes "#text", and repeated child
// element names become a []any. It never resets stream position and
// leaves the reader positioned just after the subtree's end element.
func ReadSubtreeAsTree(r *PullReader, start xml.StartElement) (*ElementTree, error) {
	root := newElementTree()
	for _, attr := range start.Attr {
		root.Put("@"+attr.Name.Local, attr.Value)
	}
	type frame struct {
		name string
		tree *ElementTree
	}
	stack := []frame{{name: start.Name.Local, tree: root}}
	for {
		tok, err := r.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := newElementTree()
			for _, attr := range t.Attr {
				child.Put("@"+attr.Name.Local, attr.Value)
			}
			stack = append(stack, frame{name: t.Name.Local, tree: child})
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			top := stack[len(stack)-1]
			if existing := top.tree.Get("#text"); existing != nil {
				top.tree.Put("#text", existing.(string)+" "+text)
			} else {
				top.tree.Put("#text", text)
			}
		case xml.EndElement:
			finished := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return finished.tree, nil
			}
			parent := stack[len(stack)-1]
			var value any = finished.tree
			if finished.tree.Len() == 1 {
				if text := finished.tree.Get("#text"); text != nil {
					value = text
				}
			}
			if existing := parent.tree.Get(finished.name); existing != nil {
				if list, ok := existing.([]any); ok {
					parent.tree.Put(finished.name, append(list, value))
				} else {
					parent.tree.Put(finished.name, []any{existing, value})
				}
			} else {
				parent.tree.Put(finished.name, value)
			}
		}
	}
}

// AddError appends a ParseError capturing the reader's current
// line/column, for DocumentParser implementations collecting
// diagnostics during ParseBody.
func AddError(errs *[]ParseError, r *PullReader, path, message string, cause error) {
	line, col := r.InputPos()
	*errs = append(*errs, ParseError{Message: message, Path: path, Line: line, Column: col, Cause: cause})
}

// AddWarning is AddError's non-fatal counterpart.
func AddWarning(warnings *[]ParseWarning, r *PullReader, path, message string, cause error) {
	line, col := r.InputPos()
	*warnings = append(*warnings, ParseWarning{Message: message, Path: path, Line: line, Column: col, Cause: cause})
}
