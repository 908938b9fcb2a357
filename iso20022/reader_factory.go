package iso20022

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxCharactersFromEntities bounds how many characters a single entity
// expansion may produce. encoding/xml never expands custom entities at
// all when Decoder.Entity is nil (its default, which PullReader never
// overrides) — only the five predefined XML entities are recognized —
// so this budget can never actually be exceeded. It is kept as a named
// constant so a caller auditing the reader's defaults finds the bound
// documented, not silently absent.
const MaxCharactersFromEntities = 1024

// Preset selects one of the three reader configurations.
type Preset string

const (
	PresetDefault    Preset = "default"
	PresetValidating Preset = "validating"
	PresetLargeFile  Preset = "large-file"
)

// SchemaSet is an opaque, caller-supplied compiled schema set. XSD
// schema validation itself is an external collaborator; the core only
// stores a SchemaSet and a ValidationEventHandler on the validating
// reader and runs no validator of its own.
type SchemaSet any

// SchemaValidationEvent is reported by a validating reader's event
// handler for a single schema violation.
type SchemaValidationEvent struct {
	Message string
	Path    string
	Line    int
	Column  int
}

// ValidationEventHandler processes a single SchemaValidationEvent,
// deciding whether an event is fatal (return a non-nil error) or merely
// collected.
type ValidationEventHandler func(SchemaValidationEvent) error

// SchemaCompiler turns a schema path into a compiled SchemaSet. XSD
// compilation itself is an external collaborator: a caller that wants
// ParseOptions.ValidateSchema honored wires a compiler onto the
// ReaderFactory; without one, requesting validation is an error rather
// than a silent no-op.
type SchemaCompiler func(path string) (SchemaSet, error)

// ReaderFactory constructs secure, pull-based PullReaders with
// consistent defaults: no DTD processing, no external-entity resolver,
// bounded entity expansion, character checks on.
type ReaderFactory struct {
	Namespaces *NamespaceRegistry

	// CompileSchema, when set, compiles ParseOptions.SchemaPath into
	// the SchemaSet handed to CreateValidating.
	CompileSchema SchemaCompiler
}

// NewReaderFactory returns a ReaderFactory using the default namespace
// registry.
func NewReaderFactory() *ReaderFactory {
	return &ReaderFactory{Namespaces: DefaultNamespaceRegistry}
}

// Create builds a default-preset reader over r.
func (f *ReaderFactory) Create(r io.Reader) (*PullReader, error) {
	if r == nil {
		return nil, errors.New("iso20022: reader must not be nil")
	}
	return newPullReader(r, PresetDefault, nil, nil), nil
}

// CreateFromText is a convenience wrapper for in-memory XML text.
func (f *ReaderFactory) CreateFromText(text string) (*PullReader, error) {
	return f.Create(strings.NewReader(text))
}

// CreateValidating builds a reader that additionally carries a compiled
// schema set and validation event handler. The reader does not validate
// against schemaSet and never invokes handler; its Token behaves as for
// the default preset.
func (f *ReaderFactory) CreateValidating(r io.Reader, schemaSet SchemaSet, handler ValidationEventHandler) (*PullReader, error) {
	if r == nil {
		return nil, errors.New("iso20022: reader must not be nil")
	}
	if schemaSet == nil {
		return nil, errors.New("iso20022: validating preset requires a non-nil schema set")
	}
	pr := newPullReader(r, PresetValidating, schemaSet, handler)
	return pr, nil
}

// CreateLargeFile builds a reader with the same safeguards as Create
// but documents TotalBytes as unbounded and disables any fixed-size
// document-length assumption downstream progress reporting might make.
func (f *ReaderFactory) CreateLargeFile(r io.Reader) (*PullReader, error) {
	if r == nil {
		return nil, errors.New("iso20022: reader must not be nil")
	}
	pr := newPullReader(r, PresetLargeFile, nil, nil)
	pr.unboundedSize = true
	return pr, nil
}

// CreateWithNamespaceManager builds a default-preset reader that
// carries ns as its namespace registry. The reader itself does not
// consult it: MessageDetector and the parsers resolve namespaces
// through their own registries.
func (f *ReaderFactory) CreateWithNamespaceManager(r io.Reader, ns *NamespaceRegistry) (*PullReader, error) {
	pr, err := f.Create(r)
	if err != nil {
		return nil, err
	}
	pr.namespaces = ns
	return pr, nil
}

// countingReader tracks bytes read for progress reporting.
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}

// PullReader is a forward-only, hardened XML pull reader. It never
// resolves external entities or processes a DTD's internal subset: any
// <!DOCTYPE ...> directive token fails the read immediately with a
// KindXMLWellFormedness error, and undefined general entities already
// fail in encoding/xml itself because Decoder.Entity is left nil.
type PullReader struct {
	decoder       *xml.Decoder
	counting      *countingReader
	seeker        io.Seeker
	source        io.Reader
	preset        Preset
	schemaSet     SchemaSet
	validationCB  ValidationEventHandler
	unboundedSize bool
	totalBytes    int64 // -1 when unknown
	namespaces    *NamespaceRegistry
}

func newPullReader(r io.Reader, preset Preset, schemaSet SchemaSet, handler ValidationEventHandler) *PullReader {
	cr := &countingReader{r: r}
	pr := &PullReader{
		counting:     cr,
		preset:       preset,
		schemaSet:    schemaSet,
		validationCB: handler,
		totalBytes:   -1,
		namespaces:   DefaultNamespaceRegistry,
	}
	if seeker, ok := r.(io.Seeker); ok {
		pr.seeker = seeker
		pr.source = r
	}
	if sizer, ok := r.(interface{ Len() int }); ok {
		pr.totalBytes = int64(sizer.Len())
	}
	pr.decoder = newHardenedDecoder(cr)
	return pr
}

func newHardenedDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	// Strict=true (the default) is what makes undefined entity
	// references a SyntaxError instead of being passed through; we
	// never set d.Entity or d.AutoClose, which is what keeps external
	// and general entity expansion impossible.
	d.Strict = true
	return d
}

// Seekable reports whether the underlying source supports Seek, a
// precondition for whole-document parsing and ParseWithContext.
func (p *PullReader) Seekable() bool { return p.seeker != nil }

// BytesRead returns the number of bytes consumed from the source so
// far.
func (p *PullReader) BytesRead() int64 { return p.counting.count }

// TotalBytes returns the known total size of the source, or (-1,
// false) when unknown (always the case for the large-file preset).
func (p *PullReader) TotalBytes() (int64, bool) {
	if p.unboundedSize || p.totalBytes < 0 {
		return -1, false
	}
	return p.totalBytes, true
}

// InputPos returns the current line and column, for error/warning
// context.
func (p *PullReader) InputPos() (line, column int) {
	return p.decoder.InputPos()
}

// Rewind resets the reader to the beginning of its source, required by
// ParserBase and StreamingParserBase.ParseWithContext between their
// detect/header/body passes. It fails with KindStreamNotSeekable when
// the source does not support Seek.
func (p *PullReader) Rewind() error {
	if p.seeker == nil {
		return newStreamNotSeekableError()
	}
	if _, err := p.seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("iso20022: rewind failed: %w", err)
	}
	p.counting = &countingReader{r: p.source}
	p.decoder = newHardenedDecoder(p.counting)
	return nil
}

// Token advances the reader by one token, enforcing the no-DTD,
// no-external-entity policy described on PullReader.
func (p *PullReader) Token() (xml.Token, error) {
	tok, err := p.decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, wrapWellFormednessError(err)
	}
	if dir, ok := tok.(xml.Directive); ok {
		text := strings.TrimSpace(string(dir))
		if strings.HasPrefix(strings.ToUpper(text), "DOCTYPE") {
			return nil, wrapWellFormednessError(fmt.Errorf("DOCTYPE declarations are not permitted: %s", truncate(text, 80)))
		}
	}
	return tok, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
