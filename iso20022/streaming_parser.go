package iso20022

import (
	"context"
	"encoding/xml"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StreamingParser is the hook a per-entry streaming parser implements.
// Unlike DocumentParser, it never sees the raw token stream directly:
// StreamingParserBase materializes one entry's subtree at a time into
// an ElementTree (bounding memory to a single entry regardless of
// document size) before handing it to ParseEntry.
type StreamingParser[E any] interface {
	SupportedMessages() []MessageIdentifier

	// EntryElementName is the local name of the repeating element this
	// parser streams (e.g. "Ntry" for camt.052/053/054).
	EntryElementName() string

	// ParseEntry converts one already-materialized entry subtree into
	// E. A returned error marks this single entry as failed; the
	// driving scan has already fully consumed the subtree by the time
	// ParseEntry runs, so recovery to the next sibling is automatic.
	ParseEntry(tree *ElementTree, detection MessageDetectionResult, opts ParseOptions) (E, []ParseWarning, error)

	// ParseHeader reads the message's header portion (everything before
	// the first entry element) into a parser-defined value, used by
	// ParseWithContext. It must not read past the first entry.
	ParseHeader(r *PullReader, detection MessageDetectionResult, opts ParseOptions) (any, error)
}

// EntryCounter is optionally implemented by a StreamingParser whose
// header carries an expected entry count (e.g. camt TxsSummry's
// NbOfNtries). ParseWithContext surfaces it on StreamingParseResult.
type EntryCounter interface {
	ExpectedEntryCount(header any) (uint64, bool)
}

// ParentPathProvider is optionally implemented by a StreamingParser
// whose entry element name is ambiguous without its parent context. The
// returned path is a '/'-separated suffix of element local names (e.g.
// "Stmt"); only entry elements whose open-element stack ends with that
// suffix are matched.
type ParentPathProvider interface {
	ParentElementPath() string
}

// StreamingParserBase implements the lazy, bounded-memory entry-
// streaming pipeline shared by every concrete streaming parser.
type StreamingParserBase[E any] struct {
	Parser  StreamingParser[E]
	Readers *ReaderFactory
}

// NewStreamingParserBase wraps parser using the default reader factory.
func NewStreamingParserBase[E any](parser StreamingParser[E]) *StreamingParserBase[E] {
	return &StreamingParserBase[E]{Parser: parser, Readers: NewReaderFactory()}
}

func (p *StreamingParserBase[E]) readers() *ReaderFactory {
	if p.Readers != nil {
		return p.Readers
	}
	return NewReaderFactory()
}

type entryResult[E any] struct {
	entry    E
	warnings []ParseWarning
	err      error
}

// EntrySequence is a lazy, pull-style sequence of streamed entries. Next
// advances one entry at a time; Close must be called (even after Next
// has returned ok=false) to release the background goroutine and
// underlying reader state.
type EntrySequence[E any] struct {
	Detection     MessageDetectionResult
	CorrelationID string

	items     chan entryResult[E]
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Next blocks until the next entry is available, ctx is cancelled, or
// the sequence is exhausted. ok is false when the sequence has no more
// entries to deliver (err is nil) or when ctx is cancelled (err is
// ctx.Err()). ok=true with a non-nil err means this particular entry
// failed to parse, or the reader failed; a further Next call reports
// whether the sequence continues.
func (s *EntrySequence[E]) Next(ctx context.Context) (entry E, warnings []ParseWarning, ok bool, err error) {
	select {
	case <-ctx.Done():
		return entry, nil, false, ctx.Err()
	case item, more := <-s.items:
		if !more {
			return entry, nil, false, nil
		}
		if item.err != nil {
			return entry, item.warnings, true, item.err
		}
		return item.entry, item.warnings, true, nil
	}
}

// Close stops the background scan and waits for it to exit. It is safe
// to call multiple times and safe to call before the sequence is
// drained.
func (s *EntrySequence[E]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// StreamingParseResult is what ParseWithContext returns: the detected
// identifier, the parser-defined header value, the Business Application
// Header when the envelope carried one, the expected entry count when
// the header announced one, and the lazy entry sequence itself. The
// result owns the underlying reader until Entries is fully consumed or
// closed; Entries is single-pass.
type StreamingParseResult[E any] struct {
	MessageID          MessageIdentifier
	Header             any
	ApplicationHeader  *BusinessApplicationHeader
	ExpectedEntryCount uint64
	HasExpectedCount   bool
	Warnings           []ParseWarning
	Entries            *EntrySequence[E]
}

// ParseEntries detects the message and returns an EntrySequence that
// streams its entries lazily as the caller calls Next. Detection only
// consumes the document's prefix (up to the message element), so the
// scan continues from there without rewinding: ParseEntries works on
// non-seekable sources. Callers that also need the parsed header or the
// Business Application Header must use ParseWithContext instead, which
// does require a seekable source.
func (p *StreamingParserBase[E]) ParseEntries(ctx context.Context, r io.Reader, opts ParseOptions) (*EntrySequence[E], error) {
	reader, err := p.readers().Create(r)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	opts.report(startingProgress(correlationID, reader))

	detector := &MessageDetector{Namespaces: p.readers().Namespaces}
	detection, err := detector.Detect(reader)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}
	if !supportsIdentifier(p.Parser.SupportedMessages(), detection.MessageID) {
		err := newParserNotFoundError(detection.MessageID, p.Parser.SupportedMessages())
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}
	return p.startSequence(ctx, reader, detection, opts, correlationID), nil
}

// ParseWithContext runs the full three-pass pipeline over a seekable
// source: detect, rewind and parse the header via the parser's
// ParseHeader hook, then rewind again and stream the entries. The
// Business Application Header is extracted on the final pass when the
// envelope carries one and ParseApplicationHeader is set.
func (p *StreamingParserBase[E]) ParseWithContext(ctx context.Context, r io.Reader, opts ParseOptions) (*StreamingParseResult[E], error) {
	reader, err := p.readers().Create(r)
	if err != nil {
		return nil, err
	}
	if !reader.Seekable() {
		return nil, newStreamNotSeekableError()
	}

	correlationID := uuid.NewString()
	opts.report(startingProgress(correlationID, reader))

	detector := &MessageDetector{Namespaces: p.readers().Namespaces}
	detection, err := detector.Detect(reader)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}
	if !supportsIdentifier(p.Parser.SupportedMessages(), detection.MessageID) {
		err := newParserNotFoundError(detection.MessageID, p.Parser.SupportedMessages())
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}

	if err := reader.Rewind(); err != nil {
		return nil, err
	}
	opts.report(ParseProgress{Status: StatusParsingHeader, CorrelationID: correlationID})
	header, err := p.Parser.ParseHeader(reader, detection, opts)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}

	if err := reader.Rewind(); err != nil {
		return nil, err
	}
	var warnings []ParseWarning
	cursor, err := locateMessageElement(reader, detection, opts, &warnings)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return nil, err
	}

	result := &StreamingParseResult[E]{
		MessageID: detection.MessageID,
		Header:    header,
		Entries:   p.startSequence(ctx, reader, detection, opts, correlationID),
	}
	if opts.CollectWarnings {
		result.Warnings = warnings
	}
	if detection.HasApplicationHeader && opts.ParseApplicationHeader {
		result.ApplicationHeader = cursor.header
	}
	if counter, ok := p.Parser.(EntryCounter); ok {
		if n, known := counter.ExpectedEntryCount(header); known {
			result.ExpectedEntryCount = n
			result.HasExpectedCount = true
		}
	}
	return result, nil
}

func (p *StreamingParserBase[E]) startSequence(ctx context.Context, reader *PullReader, detection MessageDetectionResult, opts ParseOptions, correlationID string) *EntrySequence[E] {
	runCtx, cancel := context.WithCancel(ctx)
	seq := &EntrySequence[E]{
		Detection:     detection,
		CorrelationID: correlationID,
		items:         make(chan entryResult[E]),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	logger := WithCorrelationID(opts.logger(), correlationID)
	go seq.run(runCtx, reader, p.Parser, detection, opts, logger)
	return seq
}

func startingProgress(correlationID string, r *PullReader) ParseProgress {
	progress := ParseProgress{Status: StatusStarting, CorrelationID: correlationID, TotalBytes: -1}
	if total, known := r.TotalBytes(); known {
		progress.TotalBytes = total
	}
	return progress
}

// maxEntryErrorLog bounds the in-memory recovered-error log kept while
// StopOnFirstError is disabled: once more than this many entries have
// failed and been skipped, the sequence transitions to failed instead
// of skipping indefinitely.
const maxEntryErrorLog = 1000

func (s *EntrySequence[E]) run(ctx context.Context, r *PullReader, parser StreamingParser[E], detection MessageDetectionResult, opts ParseOptions, logger Logger) {
	defer close(s.done)
	defer close(s.items)

	entryName := parser.EntryElementName()
	var parentPath []string
	if provider, ok := parser.(ParentPathProvider); ok {
		if path := provider.ParentElementPath(); path != "" {
			parentPath = strings.Split(path, "/")
		}
	}

	var parsed uint64
	var errorLog int
	var open []string // local names of elements entered below the start position

	totalBytes := int64(-1)
	if total, known := r.TotalBytes(); known {
		totalBytes = total
	}

	emit := func(item entryResult[E]) bool {
		select {
		case s.items <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}
	reportCompleted := func() {
		opts.report(ParseProgress{Status: StatusCompleted, CorrelationID: s.CorrelationID, BytesRead: r.BytesRead(), TotalBytes: totalBytes, EntriesParsed: parsed})
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tok, err := r.Token()
		if err != nil {
			if err != io.EOF {
				emit(entryResult[E]{err: err})
			} else {
				reportCompleted()
			}
			return
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == entryName && stackHasSuffix(open, parentPath) {
				tree, terr := ReadSubtreeAsTree(r, t)
				if terr != nil {
					emit(entryResult[E]{err: terr})
					return
				}
				entry, entryWarnings, perr := parser.ParseEntry(tree, detection, opts)
				if !emit(entryResult[E]{entry: entry, warnings: entryWarnings, err: perr}) {
					return
				}
				if perr != nil {
					logger.Warnf("entry failed to parse: %v", perr)
					if opts.StopOnFirstError {
						return
					}
					errorLog++
					if errorLog > maxEntryErrorLog {
						emit(entryResult[E]{err: newParsingFailedError(
							[]ParseError{{Message: "streaming error log exceeded bound; aborting", Path: entryName}},
							nil,
						)})
						return
					}
					continue
				}
				parsed++
				if parsed%1000 == 0 {
					opts.report(ParseProgress{Status: StatusParsingEntries, CorrelationID: s.CorrelationID, BytesRead: r.BytesRead(), TotalBytes: totalBytes, EntriesParsed: parsed})
				}
				if opts.MaxEntries > 0 && parsed >= opts.MaxEntries {
					reportCompleted()
					return
				}
				continue
			}
			open = append(open, t.Name.Local)
		case xml.EndElement:
			if len(open) == 0 {
				reportCompleted()
				return
			}
			open = open[:len(open)-1]
		}
	}
}

// stackHasSuffix reports whether the open-element stack ends with the
// given path segments. An empty path matches any position.
func stackHasSuffix(open, path []string) bool {
	if len(path) == 0 {
		return true
	}
	if len(open) < len(path) {
		return false
	}
	tail := open[len(open)-len(path):]
	for i, segment := range path {
		if tail[i] != segment {
			return false
		}
	}
	return true
}

// CountEntries streams the document purely to count top-level
// occurrences of the parser's entry element, without parsing any of
// them. A nesting counter tracks occurrences of the entry name itself:
// only starts seen while no other entry is open are counted, so nested
// occurrences of the same local name are excluded. CountEntries
// consumes r; it does not require a seekable source.
func (p *StreamingParserBase[E]) CountEntries(ctx context.Context, r io.Reader, opts ParseOptions) (uint64, error) {
	reader, err := p.readers().Create(r)
	if err != nil {
		return 0, err
	}

	entryName := p.Parser.EntryElementName()
	var count uint64
	nesting := 0
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		tok, err := reader.Token()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == entryName {
				if nesting == 0 {
					count++
				}
				nesting++
			}
		case xml.EndElement:
			if t.Name.Local == entryName && nesting > 0 {
				nesting--
			}
		}
	}
}
