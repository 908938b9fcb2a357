package iso20022

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// DocumentParser is the hook a whole-document parser implements. Parse
// semantics specific to one message family (pain.001, camt.053, ...)
// live entirely in ParseBody; everything else — detection, header
// extraction, error aggregation, progress reporting — is handled once
// by ParserBase.
type DocumentParser[D any] interface {
	// SupportedMessages lists every MessageIdentifier this parser
	// accepts. ParserBase.Parse rejects any other detected identifier
	// with KindParserNotFound before ParseBody is ever called.
	SupportedMessages() []MessageIdentifier

	// ParseBody consumes the message element (r is positioned at its
	// already-read StartElement) and produces the domain document plus
	// any non-fatal errors/warnings gathered along the way.
	ParseBody(r *PullReader, detection MessageDetectionResult, opts ParseOptions) (D, []ParseError, []ParseWarning, error)
}

// ParseResult is what ParserBase.Parse returns on success.
type ParseResult[D any] struct {
	Document      D
	Header        *BusinessApplicationHeader
	Detection     MessageDetectionResult
	Warnings      []ParseWarning
	CorrelationID string
}

// ParserBase implements the eleven-step document parse pipeline shared
// by every concrete whole-document parser: build a hardened reader,
// detect the message, verify it is supported, optionally extract the
// Business Application Header, hand the message element to ParseBody,
// aggregate diagnostics, and report progress throughout.
type ParserBase[D any] struct {
	Parser  DocumentParser[D]
	Readers *ReaderFactory
}

// NewParserBase wraps parser in a ParserBase using the default reader
// factory.
func NewParserBase[D any](parser DocumentParser[D]) *ParserBase[D] {
	return &ParserBase[D]{Parser: parser, Readers: NewReaderFactory()}
}

func (p *ParserBase[D]) readers() *ReaderFactory {
	if p.Readers != nil {
		return p.Readers
	}
	return NewReaderFactory()
}

// ParseFromPath opens path and parses it. The file is always seekable,
// satisfying the detect-then-rewind requirement of step 4.
func (p *ParserBase[D]) ParseFromPath(path string, opts ParseOptions) (ParseResult[D], error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseResult[D]{}, fmt.Errorf("iso20022: opening %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f, opts)
}

// ParseFromText parses an in-memory XML document.
func (p *ParserBase[D]) ParseFromText(text string, opts ParseOptions) (ParseResult[D], error) {
	return p.Parse(strings.NewReader(text), opts)
}

// Parse runs the full pipeline over r, which must support io.Seeker
// (required to re-scan the document after detection); *os.File,
// *strings.Reader and *bytes.Reader all qualify.
func (p *ParserBase[D]) Parse(r io.Reader, opts ParseOptions) (ParseResult[D], error) {
	var zero ParseResult[D]
	correlationID := uuid.NewString()
	logger := WithCorrelationID(opts.logger(), correlationID)
	var warnings []ParseWarning

	// Step 1: build the hardened pull reader, using the validating
	// preset over a freshly compiled schema set when the caller
	// supplied a schema.
	var reader *PullReader
	var err error
	if opts.ValidateSchema && opts.SchemaPath != "" {
		compile := p.readers().CompileSchema
		if compile == nil {
			return zero, newSchemaValidationError(fmt.Errorf("schema validation requested for %s but the reader factory has no schema compiler configured", opts.SchemaPath))
		}
		schemaSet, cerr := compile(opts.SchemaPath)
		if cerr != nil {
			return zero, newSchemaValidationError(cerr)
		}
		reader, err = p.readers().CreateValidating(r, schemaSet, func(ev SchemaValidationEvent) error {
			if opts.CollectWarnings {
				warnings = append(warnings, ParseWarning{Message: ev.Message, Path: ev.Path, Line: ev.Line, Column: ev.Column})
			}
			return nil
		})
	} else {
		reader, err = p.readers().Create(r)
	}
	if err != nil {
		return zero, err
	}
	if !reader.Seekable() {
		return zero, newStreamNotSeekableError()
	}

	opts.report(startingProgress(correlationID, reader))
	logger.Debugf("starting parse")

	// Step 2: detect the message identifier and envelope shape.
	detector := &MessageDetector{Namespaces: p.readers().Namespaces}
	detection, err := detector.Detect(reader)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return zero, err
	}
	logger.Infof("detected message %s (%s envelope)", detection.MessageID, detection.Variant)

	// Step 3: verify this parser actually supports the detected message.
	if !supportsIdentifier(p.Parser.SupportedMessages(), detection.MessageID) {
		err := newParserNotFoundError(detection.MessageID, p.Parser.SupportedMessages())
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return zero, err
	}

	// Step 4: rewind for the real pass; detection never resets position
	// itself.
	if err := reader.Rewind(); err != nil {
		return zero, err
	}

	var header *BusinessApplicationHeader

	// Step 5 & 6: walk back down to the message element, extracting the
	// Business Application Header along the way when requested and
	// present.
	opts.report(ParseProgress{Status: StatusParsingHeader, CorrelationID: correlationID, BytesRead: reader.BytesRead()})
	messageStart, err := locateMessageElement(reader, detection, opts, &warnings)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return zero, err
	}
	if detection.HasApplicationHeader && opts.ParseApplicationHeader {
		header = messageStart.header
	}

	// Step 7: hand the message element to the concrete parser.
	opts.report(ParseProgress{Status: StatusParsingBody, CorrelationID: correlationID, BytesRead: reader.BytesRead()})
	document, bodyErrors, bodyWarnings, err := p.Parser.ParseBody(reader, detection, opts)
	if err != nil {
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return zero, err
	}
	if opts.CollectWarnings {
		warnings = append(warnings, bodyWarnings...)
	}

	// Step 8: fail the parse if ParseBody reported errors and the
	// caller asked to stop on first error.
	if len(bodyErrors) > 0 && opts.StopOnFirstError {
		err := newParsingFailedError(bodyErrors, warnings)
		opts.report(ParseProgress{Status: StatusFailed, CorrelationID: correlationID, Message: err.Error()})
		return zero, err
	}

	// Step 9: non-fatal body errors (StopOnFirstError disabled) ride
	// along as warnings so nothing collected is silently dropped.
	if len(bodyErrors) > 0 {
		for _, e := range bodyErrors {
			warnings = append(warnings, ParseWarning{Message: e.Message, Path: e.Path, Line: e.Line, Column: e.Column, Cause: e.Cause})
		}
	}

	// Step 10: schema validation itself is an external collaborator;
	// step 1 already selected the validating preset when a schema path
	// was supplied, so the only thing left to flag is the inconsistent
	// combination.
	if opts.ValidateSchema && opts.SchemaPath == "" {
		logger.Warnf("ValidateSchema requested without a SchemaPath; skipping")
	}

	// Step 11: final progress and result assembly.
	opts.report(ParseProgress{Status: StatusCompleted, CorrelationID: correlationID, BytesRead: reader.BytesRead()})
	logger.Debugf("parse completed with %d warning(s)", len(warnings))

	return ParseResult[D]{
		Document:      document,
		Header:        header,
		Detection:     detection,
		Warnings:      warnings,
		CorrelationID: correlationID,
	}, nil
}

type messageElementCursor struct {
	header *BusinessApplicationHeader
}

// locateMessageElement walks the document from its root down to the
// message element's StartElement, capturing the Business Application
// Header if the envelope variant carries one. It leaves reader
// positioned with the message element's StartElement already consumed,
// ready for DocumentParser.ParseBody.
func locateMessageElement(r *PullReader, detection MessageDetectionResult, opts ParseOptions, warnings *[]ParseWarning) (messageElementCursor, error) {
	var cursor messageElementCursor

	_, found, err := MoveToElement(r, detection.RootElementName)
	if err != nil {
		return cursor, err
	}
	if !found {
		return cursor, newDetectionError(detection.RootElementName, "")
	}

	for {
		tok, err := r.Token()
		if err != nil {
			return cursor, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			if _, isEnd := tok.(xml.EndElement); isEnd {
				return cursor, newDetectionError(detection.RootElementName, "")
			}
			continue
		}
		switch {
		case se.Name.Local == "AppHdr" && detection.HasApplicationHeader && cursor.header == nil:
			bah, err := parseBusinessApplicationHeader(r, se, warnings)
			if err != nil {
				return cursor, err
			}
			cursor.header = bah
		case se.Name.Local == "Document" && detection.Variant != VariantStandalone:
			// entered the nested Document inside an envelope; the
			// message element is its first child.
			continue
		case se.Name.Local == detection.MessageElementName:
			return cursor, nil
		default:
			if err := SkipElement(r, se); err != nil {
				return cursor, err
			}
		}
	}
}

func supportsIdentifier(ids []MessageIdentifier, target MessageIdentifier) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

