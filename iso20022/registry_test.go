package iso20022

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewParserRegistry()
	id := mustParseID("pain.001.001.09")

	assert.False(t, reg.IsRegistered(id))

	err := reg.Register(id, "Dummy", func() (any, error) { return "parser", nil })
	require.NoError(t, err)
	assert.True(t, reg.IsRegistered(id))

	err = reg.Register(id, "Dummy", func() (any, error) { return "parser", nil })
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParserAlreadyRegistered))

	reg.RegisterOrReplace(id, "DummyV2", func() (any, error) { return "parser-v2", nil })
	registration, ok := reg.GetRegistration(id)
	require.True(t, ok)
	assert.Equal(t, "DummyV2", registration.DocumentTypeTag)

	removed := reg.Unregister(id)
	assert.True(t, removed)
	assert.False(t, reg.IsRegistered(id))

	removedAgain := reg.Unregister(id)
	assert.False(t, removedAgain)
}

func TestParserRegistry_RegisteredMessages(t *testing.T) {
	reg := NewParserRegistry()
	a := mustParseID("pain.001.001.09")
	b := mustParseID("camt.053.001.08")

	require.NoError(t, reg.Register(a, "A", func() (any, error) { return nil, nil }))
	require.NoError(t, reg.RegisterStreaming(b, "B", func() (any, error) { return nil, nil }))

	ids := reg.RegisteredMessages()
	assert.ElementsMatch(t, []MessageIdentifier{a, b}, ids)
}

func TestParserFactory_SupportsMessageAndBusinessArea(t *testing.T) {
	factory := NewParserFactory()
	assert.True(t, factory.SupportsMessage(mustParseID("pain.001.001.09")))
	assert.True(t, factory.SupportsBusinessArea("pain"))
	assert.True(t, factory.SupportsBusinessArea("camt"))
	assert.False(t, factory.SupportsBusinessArea("acmt"))
}

func TestCreateParser_UnsupportedMessageFails(t *testing.T) {
	// Scenario H: a detected identifier handed to a registry that only
	// knows about pain.001 variants must fail with ParserNotFound naming
	// both the requested and the available identifiers.
	reg := NewParserRegistry()
	pain09 := mustParseID("pain.001.001.09")
	pain10 := mustParseID("pain.001.001.10")
	require.NoError(t, reg.Register(pain09, "CreditTransferInitiation", func() (any, error) {
		return NewParserBase[CreditTransferInitiation](NewCreditTransferParser()), nil
	}))
	require.NoError(t, reg.Register(pain10, "CreditTransferInitiation", func() (any, error) {
		return NewParserBase[CreditTransferInitiation](NewCreditTransferParser()), nil
	}))

	factory := &ParserFactory{Registry: reg, Namespaces: DefaultNamespaceRegistry}
	camt := mustParseID("camt.053.001.08")
	_, err := CreateParser[*ParserBase[CreditTransferInitiation]](factory, camt)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParserNotFound))
	assert.Contains(t, err.Error(), "camt.053.001.08")
	assert.Contains(t, err.Error(), "pain.001.001.09")
	assert.Contains(t, err.Error(), "pain.001.001.10")
}

func TestParserFactory_DetectAndCreateParser_RewindsReader(t *testing.T) {
	factory := NewParserFactory()
	reader, err := NewReaderFactory().CreateFromText(standaloneCreditTransfer)
	require.NoError(t, err)

	detection, parser, err := factory.DetectAndCreateParser(reader)
	require.NoError(t, err)
	require.NotNil(t, parser)
	assert.Equal(t, "pain.001.001.09", detection.MessageID.String())

	// Detection must not leave the stream consumed. A rewound reader
	// reports zero bytes read, and a
	// second Detect over the same reader must reach the identical
	// conclusion rather than hitting EOF immediately.
	assert.Equal(t, int64(0), reader.BytesRead())

	detector := &MessageDetector{Namespaces: DefaultNamespaceRegistry}
	again, err := detector.Detect(reader)
	require.NoError(t, err)
	assert.Equal(t, detection.MessageID, again.MessageID)
}

func TestCreateStreamingParser_FromDefaultRegistry(t *testing.T) {
	factory := NewParserFactory()
	parser, err := CreateStreamingParser[*StreamingParserBase[StatementEntry]](factory, mustParseID("camt.053.001.08"))
	require.NoError(t, err)
	require.NotNil(t, parser)
	assert.Equal(t, "Ntry", parser.Parser.EntryElementName())
}

func TestCreateParser_TypeMismatchFails(t *testing.T) {
	reg := NewParserRegistry()
	id := mustParseID("pain.001.001.09")
	require.NoError(t, reg.Register(id, "CreditTransferInitiation", func() (any, error) {
		return "not a parser", nil
	}))
	factory := &ParserFactory{Registry: reg}

	_, err := CreateParser[*ParserBase[CreditTransferInitiation]](factory, id)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParserTypeMismatch))
}
