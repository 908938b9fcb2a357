package iso20022

import (
	"encoding/xml"
	"io"
)

// parseBusinessApplicationHeader reads an already-entered <AppHdr>
// element into a BusinessApplicationHeader; start is the AppHdr
// StartElement the caller just consumed. Version is the AppHdr schema's
// own identifier (head.001.001.*), recovered from the element's
// namespace — not the business message's MsgDefIdr, which only ever
// fills MessageDefinitionIdentifier. A missing mandatory field produces
// a warning and leaves the field at its zero value; a malformed
// MsgDefIdr keeps its text plus a warning. It never fails the overall
// parse on its own.
func parseBusinessApplicationHeader(r *PullReader, start xml.StartElement, warnings *[]ParseWarning) (*BusinessApplicationHeader, error) {
	path := start.Name.Local
	bah := &BusinessApplicationHeader{}
	if id, _, err := MessageIdentifierFromNamespace(start.Name.Space); err == nil {
		bah.Version = id
	}
	depth := 0
	for {
		tok, err := r.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth != 0 {
				depth++
				continue
			}
			switch t.Name.Local {
			case "Fr":
				bah.From = readParty(r, t)
			case "To":
				bah.To = readParty(r, t)
			case "BizMsgIdr":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.BusinessMessageIdentifier = text
			case "MsgDefIdr":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.MessageDefinitionIdentifier = text
				if _, perr := ParseMessageIdentifier(text); perr != nil {
					AddWarning(warnings, r, path, "AppHdr/MsgDefIdr is not a valid message identifier", perr)
				}
			case "CreDt":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				if ts, perr := parseISO8601(text); perr == nil {
					bah.CreationDate = ts
				} else {
					AddWarning(warnings, r, path, "AppHdr/CreDt is not a valid ISO-8601 timestamp, leaving it unset", perr)
				}
			case "BizSvc":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.BusinessService = text
			case "CharSet":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.CharacterSet = text
			case "CpyDplct":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.CopyDuplicate = CopyDuplicateMarker(text)
			case "PssblDplct":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				v := text == "true" || text == "1"
				bah.PossibleDuplicate = &v
			case "Prty":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.Priority = priorityFromCode(text)
			case "Sgntr":
				text, rerr := ReadElementAsString(r, t)
				if rerr != nil {
					return nil, rerr
				}
				bah.Signature = text
			default:
				if err := SkipElement(r, t); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				validateBAHMandatoryFields(bah, r, path, warnings)
				return bah, nil
			}
			depth--
		}
	}
	validateBAHMandatoryFields(bah, r, path, warnings)
	return bah, nil
}

func priorityFromCode(code string) PriorityMarker {
	switch code {
	case "URGT":
		return PriorityUrgent
	case "HIGH":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func readParty(r *PullReader, start xml.StartElement) Party {
	tree, err := ReadSubtreeAsTree(r, start)
	if err != nil {
		return Party{}
	}
	party := Party{}
	if fiId, ok := tree.Get("FIId").(*ElementTree); ok {
		if bicfi, ok := fiId.Get("FinInstnId").(*ElementTree); ok {
			if bicText, ok := bicfi.Get("BICFI").(string); ok {
				party.Identifier = bicText
			}
			if nm, ok := bicfi.Get("Nm").(string); ok {
				party.Name = nm
			}
		}
	}
	if orgId, ok := tree.Get("OrgId").(*ElementTree); ok {
		if party.Identifier == "" {
			if othr, ok := orgId.Get("Othr").(*ElementTree); ok {
				if id, ok := othr.Get("Id").(string); ok {
					party.Identifier = id
				}
			}
		}
	}
	return party
}

func validateBAHMandatoryFields(bah *BusinessApplicationHeader, r *PullReader, path string, warnings *[]ParseWarning) {
	if bah.BusinessMessageIdentifier == "" {
		AddWarning(warnings, r, path, "AppHdr is missing mandatory field BizMsgIdr", nil)
	}
	if bah.MessageDefinitionIdentifier == "" {
		AddWarning(warnings, r, path, "AppHdr is missing mandatory field MsgDefIdr", nil)
	}
	if bah.CreationDate.IsZero() {
		AddWarning(warnings, r, path, "AppHdr is missing mandatory field CreDt", nil)
	}
}
