package iso20022

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullReader_RejectsDoctype(t *testing.T) {
	const payload = `<?xml version="1.0"?>
<!DOCTYPE Document [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">&xxe;</Document>`

	reader, err := NewReaderFactory().CreateFromText(payload)
	require.NoError(t, err)

	var lastErr error
	for {
		_, tokErr := reader.Token()
		if tokErr != nil {
			lastErr = tokErr
			break
		}
	}
	require.Error(t, lastErr)
	assert.True(t, IsKind(lastErr, KindXMLWellFormedness))
}

func TestPullReader_RejectsUndefinedGeneralEntity(t *testing.T) {
	// No DOCTYPE at all: encoding/xml's Strict decoder with Entity left
	// nil already rejects any entity reference it does not recognize as
	// one of the five predefined XML entities, so a billion-laughs style
	// custom entity reference fails even without a DTD to define it.
	const payload = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09">&lol;</Document>`

	reader, err := NewReaderFactory().CreateFromText(payload)
	require.NoError(t, err)

	var lastErr error
	for {
		_, tokErr := reader.Token()
		if tokErr != nil {
			lastErr = tokErr
			break
		}
	}
	require.Error(t, lastErr)
	assert.True(t, IsKind(lastErr, KindXMLWellFormedness))
}

func TestPullReader_WellFormedDocumentPassesThrough(t *testing.T) {
	const payload = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.09"><CstmrCdtTrfInitn/></Document>`
	reader, err := NewReaderFactory().CreateFromText(payload)
	require.NoError(t, err)

	tokenCount := 0
	for {
		_, tokErr := reader.Token()
		if tokErr != nil {
			break
		}
		tokenCount++
	}
	assert.Greater(t, tokenCount, 0)
}

func TestReaderFactory_CreateValidatingRequiresSchemaSet(t *testing.T) {
	_, err := NewReaderFactory().CreateValidating(strings.NewReader("<a/>"), nil, nil)
	assert.Error(t, err)
}

func TestReaderFactory_CreateLargeFileReportsUnboundedSize(t *testing.T) {
	reader, err := NewReaderFactory().CreateLargeFile(strings.NewReader("<a/>"))
	require.NoError(t, err)
	_, known := reader.TotalBytes()
	assert.False(t, known)
}

func TestReaderFactory_CreateRejectsNilReader(t *testing.T) {
	_, err := NewReaderFactory().Create(nil)
	assert.Error(t, err)
}

func TestPullReader_RewindFailsWhenNotSeekable(t *testing.T) {
	reader, err := NewReaderFactory().Create(io.NopCloser(strings.NewReader("<a/>")))
	require.NoError(t, err)
	err = reader.Rewind()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindStreamNotSeekable))
}
