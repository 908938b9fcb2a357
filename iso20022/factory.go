package iso20022

import "reflect"

// ParserFactory resolves a MessageIdentifier against a ParserRegistry
// and hands back a constructed, type-checked parser. The generic type
// check happens at the call site (CreateParser/CreateStreamingParser)
// rather than inside ParserRegistry itself, since Go cannot store
// heterogeneously-typed generic instantiations in one map; the registry
// only ever deals in `func() (any, error)` constructors.
type ParserFactory struct {
	Registry   *ParserRegistry
	Namespaces *NamespaceRegistry
}

// NewParserFactory returns a ParserFactory backed by DefaultRegistry and
// DefaultNamespaceRegistry.
func NewParserFactory() *ParserFactory {
	return &ParserFactory{Registry: DefaultRegistry, Namespaces: DefaultNamespaceRegistry}
}

func (f *ParserFactory) registry() *ParserRegistry {
	if f.Registry != nil {
		return f.Registry
	}
	return DefaultRegistry
}

// SupportsMessage reports whether id has a document or streaming parser
// registered.
func (f *ParserFactory) SupportsMessage(id MessageIdentifier) bool {
	return f.registry().IsRegistered(id)
}

// SupportsBusinessArea reports whether any registered identifier has
// the given business area (the first dot-separated segment, e.g. "pain").
func (f *ParserFactory) SupportsBusinessArea(area string) bool {
	for _, id := range f.registry().RegisteredMessages() {
		if id.BusinessArea == area {
			return true
		}
	}
	return false
}

// CreateParser constructs the whole-document parser registered for id
// and asserts it to D, failing with KindParserTypeMismatch if the
// registered constructor produces a different concrete type.
func CreateParser[D any](f *ParserFactory, id MessageIdentifier) (D, error) {
	var zero D
	ctor, ok := f.registry().documentConstructor(id)
	if !ok {
		return zero, newParserNotFoundError(id, f.registry().RegisteredMessages())
	}
	built, err := ctor()
	if err != nil {
		return zero, err
	}
	parser, ok := built.(D)
	if !ok {
		return zero, newTypeMismatchError(id, typeName(zero), typeName(built))
	}
	return parser, nil
}

// CreateStreamingParser constructs the streaming parser registered for
// id and asserts it to S.
func CreateStreamingParser[S any](f *ParserFactory, id MessageIdentifier) (S, error) {
	var zero S
	ctor, ok := f.registry().streamingConstructor(id)
	if !ok {
		return zero, newParserNotFoundError(id, f.registry().RegisteredMessages())
	}
	built, err := ctor()
	if err != nil {
		return zero, err
	}
	parser, ok := built.(S)
	if !ok {
		return zero, newTypeMismatchError(id, typeName(zero), typeName(built))
	}
	return parser, nil
}

// DetectAndCreateParser runs detection against r, then resolves and
// constructs the whole-document parser for the detected identifier. r
// is rewound to its original position before returning, so the caller
// (and the returned parser) can re-read the document from the start
// without tracking detection's own cursor movement.
func (f *ParserFactory) DetectAndCreateParser(r *PullReader) (MessageDetectionResult, any, error) {
	detector := &MessageDetector{Namespaces: f.namespaces()}
	result, err := detector.Detect(r)
	if err != nil {
		return MessageDetectionResult{}, nil, err
	}
	if err := r.Rewind(); err != nil {
		return result, nil, err
	}
	ctor, ok := f.registry().documentConstructor(result.MessageID)
	if !ok {
		return result, nil, newParserNotFoundError(result.MessageID, f.registry().RegisteredMessages())
	}
	parser, err := ctor()
	if err != nil {
		return result, nil, err
	}
	return result, parser, nil
}

func (f *ParserFactory) namespaces() *NamespaceRegistry {
	if f.Namespaces != nil {
		return f.Namespaces
	}
	return DefaultNamespaceRegistry
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
