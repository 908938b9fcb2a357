// Package iso20022 implements the streaming parser core for ISO 20022
// financial messages: secure pull-based XML scanning, message-type
// detection, a parser registry/factory, a template-method document
// parser, and a lazy entry-streaming parser with pipeline combinators.
//
// Per-message domain models (pain.001, camt.053, ...), XSD validation,
// XML generation and business-rule validation are external collaborators;
// this package only defines the interfaces they plug into.
package iso20022

import "time"

// EnvelopeVariant identifies which XML envelope shape a message was
// detected in.
type EnvelopeVariant string

const (
	VariantStandalone            EnvelopeVariant = "standalone"
	VariantWithApplicationHeader EnvelopeVariant = "with_application_header"
	VariantSwift                 EnvelopeVariant = "swift"
	VariantCBPRPlus              EnvelopeVariant = "cbpr_plus"
)

// ParseStatus is the lifecycle stage reported through ParseProgress.
type ParseStatus string

const (
	StatusStarting       ParseStatus = "starting"
	StatusParsingHeader  ParseStatus = "parsing_header"
	StatusParsingBody    ParseStatus = "parsing_body"
	StatusParsingEntries ParseStatus = "parsing_entries"
	StatusCompleted      ParseStatus = "completed"
	StatusFailed         ParseStatus = "failed"
)

// ParseProgress is a point-in-time snapshot of a parse in flight.
type ParseProgress struct {
	Status        ParseStatus
	BytesRead     int64
	TotalBytes    int64 // -1 when unknown
	EntriesParsed uint64
	Message       string
	// CorrelationID lets a log sink tell concurrent parses' progress
	// events apart; stamped once per parse call.
	CorrelationID string
}

// PercentComplete derives a completion percentage from BytesRead and
// TotalBytes. It returns -1 when TotalBytes is unknown or non-positive.
func (p ParseProgress) PercentComplete() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	pct := float64(p.BytesRead) / float64(p.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ProgressSink receives ParseProgress snapshots. Implementations must
// not block for long; the core calls it synchronously from the parse
// goroutine.
type ProgressSink func(ParseProgress)

// CopyDuplicateMarker is the BAH CopyDuplicate indicator.
type CopyDuplicateMarker string

const (
	MarkerCopy      CopyDuplicateMarker = "COPY"
	MarkerDuplicate CopyDuplicateMarker = "DUPLICATE"
)

// PriorityMarker is the BAH Priority indicator.
type PriorityMarker string

const (
	PriorityNormal PriorityMarker = "normal"
	PriorityUrgent PriorityMarker = "urgent"
	PriorityHigh   PriorityMarker = "high"
)

// Party is the minimal routing identity carried by a BusinessApplicationHeader's
// From/To fields. Field-level party modeling (postal address, LEI, structured
// identification) belongs to the excluded domain models; this keeps only what
// detection/parsing can extract generically.
type Party struct {
	Identifier string // BICFI, or the first Id/Othr value found
	Name       string
}

// BusinessApplicationHeader is the head.001 envelope metadata shared across
// message families. It is immutable once constructed; Related is a shared,
// non-owning back-reference to a prior header.
type BusinessApplicationHeader struct {
	Version                     MessageIdentifier
	From                        Party
	To                          Party
	BusinessMessageIdentifier   string
	MessageDefinitionIdentifier string
	CreationDate                time.Time
	BusinessService             string
	CharacterSet                string
	CopyDuplicate               CopyDuplicateMarker
	PossibleDuplicate           *bool
	Priority                    PriorityMarker
	Signature                   string
	Related                     *BusinessApplicationHeader
}

// MessageDetectionResult is what MessageDetector.Detect produces.
type MessageDetectionResult struct {
	MessageID                   MessageIdentifier
	NamespaceURI                string
	RootElementName             string
	MessageElementName          string
	HasApplicationHeader        bool
	AppHeaderID                 *MessageIdentifier
	MessageDefinitionIdentifier string
	Variant                     EnvelopeVariant
}

// ParseOptions configures a single parse call. The zero value is not a
// valid ParseOptions; use DefaultParseOptions.
type ParseOptions struct {
	ValidateSchema         bool
	SchemaPath             string
	StopOnFirstError       bool
	CollectWarnings        bool
	ParseApplicationHeader bool
	PreserveWhitespace     bool
	MaxEntries             uint64 // 0 = unlimited
	Progress               ProgressSink
	Logger                 Logger
}

// DefaultParseOptions returns the closed-set defaults from the
// specification: stop on first error and collect warnings, parse the
// application header when present, unlimited entries.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		StopOnFirstError:       true,
		CollectWarnings:        true,
		ParseApplicationHeader: true,
		Logger:                 NoopLogger{},
	}
}

func (o ParseOptions) logger() Logger {
	if o.Logger == nil {
		return NoopLogger{}
	}
	return o.Logger
}

func (o ParseOptions) report(p ParseProgress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}
