package iso20022

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_StandaloneDocument(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
  <CstmrCdtTrfInitn>
    <GrpHdr><MsgId>MSG-1</MsgId></GrpHdr>
  </CstmrCdtTrfInitn>
</Document>`

	reader, err := NewReaderFactory().CreateFromText(doc)
	require.NoError(t, err)

	result, err := NewMessageDetector().Detect(reader)
	require.NoError(t, err)

	assert.Equal(t, "pain.001.001.09", result.MessageID.String())
	assert.Equal(t, VariantStandalone, result.Variant)
	assert.False(t, result.HasApplicationHeader)
	assert.Equal(t, "CstmrCdtTrfInitn", result.MessageElementName)
}

func TestDetect_EnvelopeWithApplicationHeader(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<BizMsgEnvlp xmlns="urn:swift:xsd:envelope">
  <AppHdr xmlns="urn:iso:std:iso:20022:tech:xsd:head.001.001.02">
    <Fr><FIId><FinInstnId><BICFI>BANKXXYY</BICFI></FinInstnId></FIId></Fr>
    <MsgDefIdr>pain.001.001.09</MsgDefIdr>
  </AppHdr>
  <Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
    <CstmrCdtTrfInitn>
      <GrpHdr><MsgId>MSG-2</MsgId></GrpHdr>
    </CstmrCdtTrfInitn>
  </Document>
</BizMsgEnvlp>`

	reader, err := NewReaderFactory().CreateFromText(doc)
	require.NoError(t, err)

	result, err := NewMessageDetector().Detect(reader)
	require.NoError(t, err)

	assert.Equal(t, "pain.001.001.09", result.MessageID.String())
	assert.Equal(t, VariantWithApplicationHeader, result.Variant)
	assert.True(t, result.HasApplicationHeader)
	require.NotNil(t, result.AppHeaderID)
	assert.Equal(t, "head.001.001.02", result.AppHeaderID.String())
	assert.Equal(t, "pain.001.001.09", result.MessageDefinitionIdentifier)
	assert.Equal(t, "BizMsgEnvlp", result.RootElementName)
}

func TestDetect_SwiftVariant(t *testing.T) {
	const doc = `<Document xmlns="urn:swift:xsd:pain.001.001.09">
  <CstmrCdtTrfInitn><GrpHdr><MsgId>MSG-3</MsgId></GrpHdr></CstmrCdtTrfInitn>
</Document>`

	reader, err := NewReaderFactory().CreateFromText(doc)
	require.NoError(t, err)

	result, err := NewMessageDetector().Detect(reader)
	require.NoError(t, err)

	assert.Equal(t, "pain.001.001.09", result.MessageID.String())
	assert.Equal(t, VariantSwift, result.Variant)
}

func TestDetect_EnvelopeDocumentWithUnknownNamespaceFallsBackToMsgDefIdr(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<BizMsgEnvlp xmlns="urn:swift:xsd:envelope">
  <AppHdr xmlns="urn:iso:std:iso:20022:tech:xsd:head.001.001.02">
    <MsgDefIdr>pain.001.001.09</MsgDefIdr>
  </AppHdr>
  <Document xmlns="urn:example:proprietary-wrapper">
    <CstmrCdtTrfInitn>
      <GrpHdr><MsgId>MSG-5</MsgId></GrpHdr>
    </CstmrCdtTrfInitn>
  </Document>
</BizMsgEnvlp>`

	reader, err := NewReaderFactory().CreateFromText(doc)
	require.NoError(t, err)

	result, err := NewMessageDetector().Detect(reader)
	require.NoError(t, err)

	assert.Equal(t, "pain.001.001.09", result.MessageID.String())
	assert.Equal(t, "CstmrCdtTrfInitn", result.MessageElementName)
	assert.True(t, result.HasApplicationHeader)
}

func TestDetect_UnrecognizedRootFails(t *testing.T) {
	reader, err := NewReaderFactory().CreateFromText(`<Unknown xmlns="urn:example:not-iso"><Foo/></Unknown>`)
	require.NoError(t, err)

	_, err = NewMessageDetector().Detect(reader)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMessageDetection))
}

func TestDetect_SeekablePositionRestoredByRewind(t *testing.T) {
	const doc = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
  <CstmrCdtTrfInitn><GrpHdr><MsgId>MSG-4</MsgId></GrpHdr></CstmrCdtTrfInitn>
</Document>`

	reader, err := NewReaderFactory().CreateFromText(doc)
	require.NoError(t, err)

	_, err = NewMessageDetector().Detect(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Rewind())

	assert.Equal(t, int64(0), reader.BytesRead())

	// after rewind, detection must succeed identically from the start.
	result, err := NewMessageDetector().Detect(reader)
	require.NoError(t, err)
	assert.Equal(t, "pain.001.001.09", result.MessageID.String())
}

func TestDetect_EmptyInputFails(t *testing.T) {
	reader, err := NewReaderFactory().Create(strings.NewReader(""))
	require.NoError(t, err)
	_, err = NewMessageDetector().Detect(reader)
	assert.Error(t, err)
}
