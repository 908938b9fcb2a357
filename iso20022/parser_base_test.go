package iso20022

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standaloneCreditTransfer = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
  <CstmrCdtTrfInitn>
    <GrpHdr>
      <MsgId>MSG-0001</MsgId>
      <CreDtTm>2024-01-15T10:00:00</CreDtTm>
      <NbOfTxs>2</NbOfTxs>
      <CtrlSum>150.75</CtrlSum>
    </GrpHdr>
    <PmtInf>
      <PmtInfId>PMT-0001</PmtInfId>
      <ReqdExctnDt>2024-01-16</ReqdExctnDt>
    </PmtInf>
  </CstmrCdtTrfInitn>
</Document>`

const envelopeCreditTransfer = `<?xml version="1.0" encoding="UTF-8"?>
<BizMsgEnvlp xmlns="urn:swift:xsd:envelope">
  <AppHdr xmlns="urn:iso:std:iso:20022:tech:xsd:head.001.001.02">
    <Fr><FIId><FinInstnId><BICFI>SNDRXXYY</BICFI></FinInstnId></FIId></Fr>
    <To><FIId><FinInstnId><BICFI>RCVRXXYY</BICFI></FinInstnId></FIId></To>
    <BizMsgIdr>BIZ-0001</BizMsgIdr>
    <MsgDefIdr>pain.001.001.09</MsgDefIdr>
    <CreDt>2024-01-15T09:00:00</CreDt>
  </AppHdr>
  <Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">
    <CstmrCdtTrfInitn>
      <GrpHdr>
        <MsgId>MSG-0002</MsgId>
        <CreDtTm>2024-01-15T10:00:00</CreDtTm>
        <NbOfTxs>1</NbOfTxs>
        <CtrlSum>99.00</CtrlSum>
      </GrpHdr>
      <PmtInf>
        <PmtInfId>PMT-0002</PmtInfId>
        <ReqdExctnDt>2024-01-17</ReqdExctnDt>
      </PmtInf>
    </CstmrCdtTrfInitn>
  </Document>
</BizMsgEnvlp>`

func TestParserBase_ParsesStandaloneDocument(t *testing.T) {
	parser := NewParserBase[CreditTransferInitiation](NewCreditTransferParser())
	result, err := parser.ParseFromText(standaloneCreditTransfer, DefaultParseOptions())
	require.NoError(t, err)

	assert.Equal(t, "MSG-0001", result.Document.MessageIdentification)
	assert.Equal(t, 2, result.Document.NumberOfTransactions)
	expectedSum, err := decimal.NewFromString("150.75")
	require.NoError(t, err)
	assert.True(t, result.Document.ControlSum.Equal(expectedSum))
	assert.Equal(t, "PMT-0001", result.Document.PaymentInformationID)
	assert.Nil(t, result.Header)
	assert.NotEmpty(t, result.CorrelationID)
}

func TestParserBase_ParsesEnvelopeWithHeader(t *testing.T) {
	parser := NewParserBase[CreditTransferInitiation](NewCreditTransferParser())
	opts := DefaultParseOptions()
	result, err := parser.ParseFromText(envelopeCreditTransfer, opts)
	require.NoError(t, err)

	require.NotNil(t, result.Header)
	assert.Equal(t, "head.001.001.02", result.Header.Version.String())
	assert.Equal(t, "BIZ-0001", result.Header.BusinessMessageIdentifier)
	assert.Equal(t, "pain.001.001.09", result.Header.MessageDefinitionIdentifier)
	assert.Equal(t, "SNDRXXYY", result.Header.From.Identifier)
	assert.Equal(t, "RCVRXXYY", result.Header.To.Identifier)
	assert.False(t, result.Header.CreationDate.IsZero())

	assert.Equal(t, "MSG-0002", result.Document.MessageIdentification)
	assert.Equal(t, 1, result.Document.NumberOfTransactions)
}

func TestParserBase_SkipsHeaderWhenDisabled(t *testing.T) {
	parser := NewParserBase[CreditTransferInitiation](NewCreditTransferParser())
	opts := DefaultParseOptions()
	opts.ParseApplicationHeader = false
	result, err := parser.ParseFromText(envelopeCreditTransfer, opts)
	require.NoError(t, err)
	assert.Nil(t, result.Header)
}

func TestParserBase_ValidateSchemaWithoutCompilerFails(t *testing.T) {
	parser := NewParserBase[CreditTransferInitiation](NewCreditTransferParser())
	opts := DefaultParseOptions()
	opts.ValidateSchema = true
	opts.SchemaPath = "schemas/pain.001.001.09.xsd"

	_, err := parser.ParseFromText(standaloneCreditTransfer, opts)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSchemaValidation))
}

func TestParserBase_ValidateSchemaCompilesSuppliedPath(t *testing.T) {
	var compiledPath string
	parser := NewParserBase[CreditTransferInitiation](NewCreditTransferParser())
	parser.Readers = &ReaderFactory{
		Namespaces: DefaultNamespaceRegistry,
		CompileSchema: func(path string) (SchemaSet, error) {
			compiledPath = path
			return path, nil
		},
	}
	opts := DefaultParseOptions()
	opts.ValidateSchema = true
	opts.SchemaPath = "schemas/pain.001.001.09.xsd"

	result, err := parser.ParseFromText(standaloneCreditTransfer, opts)
	require.NoError(t, err)
	assert.Equal(t, "schemas/pain.001.001.09.xsd", compiledPath)
	assert.Equal(t, "MSG-0001", result.Document.MessageIdentification)
}

func TestParserBase_RejectsUnsupportedMessage(t *testing.T) {
	parser := NewParserBase[StatementEntry](&wrongTypeDocumentParser{})
	_, err := parser.ParseFromText(standaloneCreditTransfer, DefaultParseOptions())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParserNotFound))
}

type wrongTypeDocumentParser struct{}

func (wrongTypeDocumentParser) SupportedMessages() []MessageIdentifier {
	return []MessageIdentifier{mustParseID("camt.053.001.08")}
}

func (wrongTypeDocumentParser) ParseBody(r *PullReader, detection MessageDetectionResult, opts ParseOptions) (StatementEntry, []ParseError, []ParseWarning, error) {
	return StatementEntry{}, nil, nil, nil
}
