package iso20022

// init registers this module's sample parsers into DefaultRegistry, the
// same way a production deployment would register its own per-message
// parsers at process startup.
func init() {
	creditTransfer := NewCreditTransferParser()
	for _, id := range creditTransfer.SupportedMessages() {
		DefaultRegistry.RegisterOrReplace(id, "CreditTransferInitiation", func() (any, error) {
			return NewParserBase[CreditTransferInitiation](NewCreditTransferParser()), nil
		})
	}

	statementEntries := NewCamtStatementEntryParser()
	for _, id := range statementEntries.SupportedMessages() {
		if err := DefaultRegistry.RegisterStreaming(id, "StatementEntry", func() (any, error) {
			return NewStreamingParserBase[StatementEntry](NewCamtStatementEntryParser()), nil
		}); err != nil {
			panic(err)
		}
	}
}
