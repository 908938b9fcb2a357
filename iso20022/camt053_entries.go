package iso20022

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CreditDebitIndicator is the CdtDbtInd code carried by a camt statement
// entry.
type CreditDebitIndicator string

const (
	IndicatorDebit  CreditDebitIndicator = "DBIT"
	IndicatorCredit CreditDebitIndicator = "CRDT"
)

// StatementEntry is the streamed shape of a single camt.052/053/054
// <Ntry> element: a reference, a signed amount, a status code and its
// booking/value dates. Field-level modeling beyond what the streaming
// core needs to exercise (transaction details, charges, party
// references) is left to the excluded domain models.
type StatementEntry struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	CreditDebit CreditDebitIndicator
	Status      string
	BookingDate time.Time
	ValueDate   time.Time
}

// CamtStatementEntryParser streams the <Ntry> entries of a camt.053
// bank-to-customer statement, reading the fields common to every
// statement entry (NtryRef, Amt/@Ccy, CdtDbtInd, Sts, BookgDt/Dt,
// ValDt/Dt).
type CamtStatementEntryParser struct {
	supported []MessageIdentifier
}

// NewCamtStatementEntryParser returns a parser accepting the camt.053
// bank-to-customer statement versions this module preloads into the
// default namespace registry.
func NewCamtStatementEntryParser() *CamtStatementEntryParser {
	return &CamtStatementEntryParser{
		supported: []MessageIdentifier{mustParseID("camt.053.001.08")},
	}
}

// StatementHeader is the statement-level context read before the first
// entry: the statement identification, its creation time, the account
// IBAN, and the announced entry count when the statement carries a
// TxsSummry block.
type StatementHeader struct {
	StatementID      string
	CreationDateTime time.Time
	AccountIBAN      string
	NumberOfEntries  uint64
	HasEntryCount    bool
}

func (p *CamtStatementEntryParser) SupportedMessages() []MessageIdentifier { return p.supported }

func (p *CamtStatementEntryParser) EntryElementName() string { return "Ntry" }

// ParentElementPath scopes entry matching to direct children of Stmt,
// so an Ntry-named element nested anywhere else can never be mistaken
// for a statement entry.
func (p *CamtStatementEntryParser) ParentElementPath() string { return "Stmt" }

// ParseHeader reads the Stmt children preceding the first Ntry. It
// stops the moment the first entry element starts, as ParseWithContext
// requires.
func (p *CamtStatementEntryParser) ParseHeader(r *PullReader, detection MessageDetectionResult, opts ParseOptions) (any, error) {
	header := &StatementHeader{}
	if _, found, err := MoveToElement(r, "Stmt"); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("iso20022: statement document has no Stmt element")
	}

	depth := 0
	for {
		tok, err := r.Token()
		if err == io.EOF {
			return header, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 0 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "Ntry":
				return header, nil
			case "Id":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				header.StatementID = text
			case "CreDtTm":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				if ts, perr := parseISO8601(text); perr == nil {
					header.CreationDateTime = ts
				}
			case "Acct":
				tree, rerr := ReadSubtreeAsTree(r, t)
				if rerr != nil {
					return nil, rerr
				}
				if id, ok := tree.Get("Id").(*ElementTree); ok {
					if iban, ok := id.Get("IBAN").(string); ok {
						header.AccountIBAN = iban
					}
				}
			case "TxsSummry":
				tree, rerr := ReadSubtreeAsTree(r, t)
				if rerr != nil {
					return nil, rerr
				}
				if ttl, ok := tree.Get("TtlNtries").(*ElementTree); ok {
					if text, ok := ttl.Get("NbOfNtries").(string); ok {
						if n, perr := strconv.ParseUint(text, 10, 64); perr == nil {
							header.NumberOfEntries = n
							header.HasEntryCount = true
						}
					}
				}
			default:
				if err := SkipElement(r, t); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return header, nil
			}
			depth--
		}
	}
}

// ExpectedEntryCount surfaces the TxsSummry entry count when the
// statement announced one.
func (p *CamtStatementEntryParser) ExpectedEntryCount(header any) (uint64, bool) {
	sh, ok := header.(*StatementHeader)
	if !ok || !sh.HasEntryCount {
		return 0, false
	}
	return sh.NumberOfEntries, true
}

func (p *CamtStatementEntryParser) ParseEntry(tree *ElementTree, detection MessageDetectionResult, opts ParseOptions) (StatementEntry, []ParseWarning, error) {
	var entry StatementEntry
	var warnings []ParseWarning

	if ref, ok := tree.Get("NtryRef").(string); ok {
		entry.Reference = ref
	} else {
		warnings = append(warnings, ParseWarning{Message: "Ntry is missing NtryRef", Path: "Ntry"})
	}

	if amtNode, ok := tree.Get("Amt").(*ElementTree); ok {
		if text, ok := amtNode.Get("#text").(string); ok {
			d, err := decimal.NewFromString(text)
			if err != nil {
				return entry, warnings, fmt.Errorf("iso20022: Ntry/Amt %q is not a valid decimal: %w", text, err)
			}
			entry.Amount = d
		}
		if ccy, ok := amtNode.Get("@Ccy").(string); ok {
			entry.Currency = ccy
		}
	}

	if ind, ok := tree.Get("CdtDbtInd").(string); ok {
		entry.CreditDebit = CreditDebitIndicator(ind)
	}
	if sts, ok := tree.Get("Sts").(string); ok {
		entry.Status = sts
	}

	if bookgDt, ok := tree.Get("BookgDt").(*ElementTree); ok {
		if date, err := dateFromTree(bookgDt); err == nil {
			entry.BookingDate = date
		} else {
			warnings = append(warnings, ParseWarning{Message: "Ntry/BookgDt is not a valid date", Cause: err})
		}
	}
	if valDt, ok := tree.Get("ValDt").(*ElementTree); ok {
		if date, err := dateFromTree(valDt); err == nil {
			entry.ValueDate = date
		} else {
			warnings = append(warnings, ParseWarning{Message: "Ntry/ValDt is not a valid date", Cause: err})
		}
	}

	return entry, warnings, nil
}

func dateFromTree(node *ElementTree) (time.Time, error) {
	if text, ok := node.Get("Dt").(string); ok {
		return parseISO8601(text)
	}
	if text, ok := node.Get("DtTm").(string); ok {
		return parseISO8601(text)
	}
	return time.Time{}, fmt.Errorf("iso20022: date element has neither Dt nor DtTm")
}
