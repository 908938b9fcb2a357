package iso20022

import (
	"encoding/xml"
	"io"
)

// MessageDetector determines a message's identifier and envelope
// variant from a prefix of its XML without consuming the body. It does
// not reset stream position: callers that need the body too must
// either operate on a seekable source and Rewind, or pass the detected
// identifier to a downstream stage that re-opens the source.
type MessageDetector struct {
	Namespaces *NamespaceRegistry
}

// NewMessageDetector returns a MessageDetector using the default
// namespace registry.
func NewMessageDetector() *MessageDetector {
	return &MessageDetector{Namespaces: DefaultNamespaceRegistry}
}

func (d *MessageDetector) namespaces() *NamespaceRegistry {
	if d.Namespaces != nil {
		return d.Namespaces
	}
	return DefaultNamespaceRegistry
}

// Detect advances r to the root element and identifies the message
// from its namespace, or from the envelope's AppHdr when the root is a
// business-message wrapper.
func (d *MessageDetector) Detect(r *PullReader) (MessageDetectionResult, error) {
	root, err := firstElement(r)
	if err != nil {
		return MessageDetectionResult{}, err
	}

	switch root.Name.Local {
	case "Document":
		return d.detectStandaloneOrHeaderedDocument(r, root)
	case "BizMsgEnvlp", "RequestPayload":
		return d.detectEnvelope(r, root)
	default:
		return MessageDetectionResult{}, newDetectionError(root.Name.Local, root.Name.Space)
	}
}

// TryDetect wraps Detect, returning a success flag and an error string
// instead of an error value, for callers that prefer not to branch on
// error types.
func (d *MessageDetector) TryDetect(r *PullReader) (MessageDetectionResult, bool, string) {
	res, err := d.Detect(r)
	if err != nil {
		return MessageDetectionResult{}, false, err.Error()
	}
	return res, true, ""
}

func firstElement(r *PullReader) (xml.StartElement, error) {
	for {
		tok, err := r.Token()
		if err == io.EOF {
			return xml.StartElement{}, newDetectionError("", "")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// detectStandaloneOrHeaderedDocument handles a <Document> root: the
// namespace names the message, and the first child (after an optional
// inline AppHdr) is the message element.
func (d *MessageDetector) detectStandaloneOrHeaderedDocument(r *PullReader, root xml.StartElement) (MessageDetectionResult, error) {
	id, variant, err := d.namespaces().Lookup(root.Name.Space)
	if err != nil {
		return MessageDetectionResult{}, newDetectionError(root.Name.Local, root.Name.Space)
	}

	messageElementName, hasAppHeader, msgDefIdr, err := scanDocumentChildren(r)
	if err != nil {
		return MessageDetectionResult{}, err
	}

	return MessageDetectionResult{
		MessageID:                   id,
		NamespaceURI:                root.Name.Space,
		RootElementName:             root.Name.Local,
		MessageElementName:          messageElementName,
		HasApplicationHeader:        hasAppHeader,
		MessageDefinitionIdentifier: msgDefIdr,
		Variant:                     variant,
	}, nil
}

// detectEnvelope handles a <BizMsgEnvlp> or <RequestPayload> root,
// scanning its children in document order for the AppHdr and the
// nested Document.
func (d *MessageDetector) detectEnvelope(r *PullReader, root xml.StartElement) (MessageDetectionResult, error) {
	result := MessageDetectionResult{
		RootElementName:      root.Name.Local,
		HasApplicationHeader: true,
		Variant:              VariantWithApplicationHeader,
	}

	var documentFound, envelopeClosed bool
	depth := 0
	for !documentFound && !envelopeClosed {
		tok, err := r.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return MessageDetectionResult{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case depth == 0 && t.Name.Local == "AppHdr":
				if appID, _, lookupErr := d.namespaces().Lookup(t.Name.Space); lookupErr == nil {
					result.AppHeaderID = &appID
				}
				msgDefIdr, found, extractErr := extractFirstDescendantText(r, "MsgDefIdr")
				if extractErr != nil {
					return MessageDetectionResult{}, extractErr
				}
				if found {
					result.MessageDefinitionIdentifier = msgDefIdr
				}
			case depth == 0 && t.Name.Local == "Document":
				id, _, lookupErr := d.namespaces().Lookup(t.Name.Space)
				if lookupErr != nil {
					// The Document namespace did not yield a known
					// identifier; fall back to the AppHdr's MsgDefIdr
					// before giving up.
					fallbackID, ok := TryParseMessageIdentifier(result.MessageDefinitionIdentifier)
					if !ok {
						return MessageDetectionResult{}, newDetectionError("Document", t.Name.Space)
					}
					id = fallbackID
				}
				result.MessageID = id
				result.NamespaceURI = t.Name.Space
				messageElementName, _, _, scanErr := scanDocumentChildren(r)
				if scanErr != nil {
					return MessageDetectionResult{}, scanErr
				}
				result.MessageElementName = messageElementName
				documentFound = true
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				envelopeClosed = true
			} else {
				depth--
			}
		}
	}
	if !documentFound {
		// No nested Document with a known namespace was found; fall
		// back to parsing MsgDefIdr textually.
		if result.MessageDefinitionIdentifier != "" {
			id, err := ParseMessageIdentifier(result.MessageDefinitionIdentifier)
			if err != nil {
				return MessageDetectionResult{}, newDetectionError(root.Name.Local, "")
			}
			result.MessageID = id
			return result, nil
		}
		return MessageDetectionResult{}, newDetectionError(root.Name.Local, "")
	}
	return result, nil
}

// scanDocumentChildren scans the children of an already-entered
// <Document> element (or equivalent) for an optional leading <AppHdr>
// (step 1's inline-header case) and the first message element. It
// leaves the reader positioned at the message element's StartElement
// without consuming its body.
func scanDocumentChildren(r *PullReader) (messageElementName string, hasAppHeader bool, msgDefIdr string, err error) {
	for {
		tok, tokErr := r.Token()
		if tokErr == io.EOF {
			return "", hasAppHeader, msgDefIdr, nil
		}
		if tokErr != nil {
			return "", false, "", tokErr
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !hasAppHeader && messageElementName == "" && t.Name.Local == "AppHdr" {
				hasAppHeader = true
				text, found, extractErr := extractFirstDescendantText(r, "MsgDefIdr")
				if extractErr != nil {
					return "", false, "", extractErr
				}
				if found {
					msgDefIdr = text
				}
				continue
			}
			messageElementName = t.Name.Local
			return messageElementName, hasAppHeader, msgDefIdr, nil
		case xml.EndElement:
			return "", hasAppHeader, msgDefIdr, nil
		}
	}
}

// extractFirstDescendantText fully consumes the subtree currently being
// scanned (the caller must have just consumed the subtree root's
// StartElement), capturing the text of the first descendant element
// named `name` at any depth, and returns once the subtree root's
// matching EndElement is reached.
func extractFirstDescendantText(r *PullReader, name string) (text string, found bool, err error) {
	depth := 0
	for {
		tok, tokErr := r.Token()
		if tokErr != nil {
			return "", false, tokErr
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !found && t.Name.Local == name {
				s, readErr := ReadElementAsString(r, t)
				if readErr != nil {
					return "", false, readErr
				}
				text = s
				found = true
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return text, found, nil
			}
			depth--
		}
	}
}
