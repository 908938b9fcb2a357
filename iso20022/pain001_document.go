package iso20022

import (
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"
)

// CreditTransferInitiation is the minimal whole-document shape of a
// pain.001 customer credit transfer initiation: the group header plus
// the identification and requested execution date of its first payment
// information block.
// Transaction-level modeling (debtor/creditor parties, remittance
// information, charge bearer) belongs to the excluded domain models;
// this exercises ParserBase end to end without reimplementing a full
// pain.001 schema.
type CreditTransferInitiation struct {
	MessageIdentification  string
	CreationDateTime       string
	NumberOfTransactions   int
	ControlSum             decimal.Decimal
	PaymentInformationID   string
	RequestedExecutionDate string
}

// CreditTransferParser implements DocumentParser for pain.001.001.09
// and .10, the two versions the module's default namespace registry
// preloads.
type CreditTransferParser struct {
	supported []MessageIdentifier
}

// NewCreditTransferParser returns a DocumentParser accepting
// pain.001.001.09 and pain.001.001.10.
func NewCreditTransferParser() *CreditTransferParser {
	return &CreditTransferParser{
		supported: []MessageIdentifier{
			mustParseID("pain.001.001.09"),
			mustParseID("pain.001.001.10"),
		},
	}
}

func (p *CreditTransferParser) SupportedMessages() []MessageIdentifier { return p.supported }

func (p *CreditTransferParser) ParseBody(r *PullReader, detection MessageDetectionResult, opts ParseOptions) (CreditTransferInitiation, []ParseError, []ParseWarning, error) {
	var doc CreditTransferInitiation
	var errs []ParseError
	var warnings []ParseWarning

	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			return doc, errs, warnings, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 0 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "GrpHdr":
				if gerr := parseGroupHeader(r, t, &doc); gerr != nil {
					errs = append(errs, ParseError{Message: gerr.Error(), Path: "CstmrCdtTrfInitn/GrpHdr"})
				}
			case "PmtInf":
				if perr := parsePaymentInformation(r, t, &doc, &warnings); perr != nil {
					errs = append(errs, ParseError{Message: perr.Error(), Path: "CstmrCdtTrfInitn/PmtInf"})
				}
			default:
				if err := SkipElement(r, t); err != nil {
					return doc, errs, warnings, err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return doc, errs, warnings, nil
			}
			depth--
		}
	}
}

func parseGroupHeader(r *PullReader, start xml.StartElement, doc *CreditTransferInitiation) error {
	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 0 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "MsgId":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return rerr
				}
				doc.MessageIdentification = text
			case "CreDtTm":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return rerr
				}
				doc.CreationDateTime = text
			case "NbOfTxs":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return rerr
				}
				n, perr := parseIntField(text)
				if perr != nil {
					return perr
				}
				doc.NumberOfTransactions = n
			case "CtrlSum":
				d, rerr := ReadElementAsDecimal(r, t)
				if rerr != nil {
					return rerr
				}
				doc.ControlSum = d
			default:
				if err := SkipElement(r, t); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func parsePaymentInformation(r *PullReader, start xml.StartElement, doc *CreditTransferInitiation, warnings *[]ParseWarning) error {
	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 0 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "PmtInfId":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return rerr
				}
				if doc.PaymentInformationID == "" {
					doc.PaymentInformationID = text
				} else {
					*warnings = append(*warnings, ParseWarning{Message: "multiple PmtInf blocks found; keeping the first PmtInfId", Path: "CstmrCdtTrfInitn/PmtInf/PmtInfId"})
				}
			case "ReqdExctnDt":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return rerr
				}
				if doc.RequestedExecutionDate == "" {
					doc.RequestedExecutionDate = text
				}
			default:
				if err := SkipElement(r, t); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func parseIntField(text string) (int, error) {
	n := 0
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("iso20022: %q is not a valid integer", text)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
