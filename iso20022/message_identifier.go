package iso20022

import (
	"fmt"
	"regexp"
	"strings"
)

const namespacePrefix = "urn:iso:std:iso:20022:tech:xsd:"
const swiftNamespacePrefix = "urn:swift:xsd:"
const cbprPlusSuffix = "$cbpr_plus"

var (
	areaPattern    = regexp.MustCompile(`^[a-z]+$`)
	numericPattern = regexp.MustCompile(`^[0-9]{3}$`)
	versionPattern = regexp.MustCompile(`^[0-9]+$`)
)

// MessageIdentifier is the canonical, immutable four-component tag
// `area.type.variant.version` (e.g. `pain.001.001.09`). Two identifiers
// are equal iff their components are equal; textual width of Version is
// preserved verbatim (e.g. "01" stays "01", it is not normalized to "1").
type MessageIdentifier struct {
	BusinessArea string
	MessageType  string
	Variant      string
	Version      string
}

// ParseMessageIdentifier parses "area.type.variant.version" into a
// MessageIdentifier, validating each component's shape.
func ParseMessageIdentifier(text string) (MessageIdentifier, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return MessageIdentifier{}, fmt.Errorf("iso20022: malformed message identifier %q: expected 4 dot-separated components, got %d", text, len(parts))
	}
	area, msgType, variant, version := parts[0], parts[1], parts[2], parts[3]
	if !areaPattern.MatchString(area) {
		return MessageIdentifier{}, fmt.Errorf("iso20022: malformed message identifier %q: business area %q must be lowercase letters", text, area)
	}
	if !numericPattern.MatchString(msgType) {
		return MessageIdentifier{}, fmt.Errorf("iso20022: malformed message identifier %q: message type %q must be 3 digits", text, msgType)
	}
	if !numericPattern.MatchString(variant) {
		return MessageIdentifier{}, fmt.Errorf("iso20022: malformed message identifier %q: variant %q must be 3 digits", text, variant)
	}
	if !versionPattern.MatchString(version) {
		return MessageIdentifier{}, fmt.Errorf("iso20022: malformed message identifier %q: version %q must be one or more digits", text, version)
	}
	return MessageIdentifier{BusinessArea: area, MessageType: msgType, Variant: variant, Version: version}, nil
}

// TryParseMessageIdentifier wraps ParseMessageIdentifier without a panic
// path, for callers that prefer a boolean check.
func TryParseMessageIdentifier(text string) (MessageIdentifier, bool) {
	id, err := ParseMessageIdentifier(text)
	return id, err == nil
}

// String renders the canonical "area.type.variant.version" form.
func (id MessageIdentifier) String() string {
	return fmt.Sprintf("%s.%s.%s.%s", id.BusinessArea, id.MessageType, id.Variant, id.Version)
}

// Namespace renders the canonical ISO namespace URI for this identifier.
func (id MessageIdentifier) Namespace() string {
	return namespacePrefix + id.String()
}

// IsZero reports whether id is the zero value (no component set).
func (id MessageIdentifier) IsZero() bool {
	return id == MessageIdentifier{}
}

// MessageIdentifierFromNamespace recovers a MessageIdentifier and the
// envelope variant it implies from a namespace URI, recognizing the
// canonical ISO form, the `urn:swift:xsd:` form, and the `$cbpr_plus`
// suffix form. Round-trip holds for the canonical form only:
// MessageIdentifierFromNamespace(id.Namespace()) == (id, VariantStandalone, nil).
func MessageIdentifierFromNamespace(uri string) (MessageIdentifier, EnvelopeVariant, error) {
	switch {
	case strings.HasSuffix(uri, cbprPlusSuffix):
		base := strings.TrimSuffix(uri, cbprPlusSuffix)
		id, _, err := MessageIdentifierFromNamespace(base)
		if err != nil {
			return MessageIdentifier{}, "", err
		}
		return id, VariantCBPRPlus, nil
	case strings.HasPrefix(uri, swiftNamespacePrefix):
		id, err := ParseMessageIdentifier(strings.TrimPrefix(uri, swiftNamespacePrefix))
		if err != nil {
			return MessageIdentifier{}, "", err
		}
		return id, VariantSwift, nil
	case strings.HasPrefix(uri, namespacePrefix):
		id, err := ParseMessageIdentifier(strings.TrimPrefix(uri, namespacePrefix))
		if err != nil {
			return MessageIdentifier{}, "", err
		}
		return id, VariantStandalone, nil
	default:
		return MessageIdentifier{}, "", fmt.Errorf("iso20022: namespace %q does not match a known ISO 20022 shape", uri)
	}
}
