package constants

import (
	"strings"
)

type DocumentType string

const (
	Invoice    DocumentType = "Invoice"
	CreditNote DocumentType = "Credit Note"
)

var allDocumentTypes = []DocumentType{
	Invoice,
	CreditNote,
}

// DefaultFooterMarkers are the boilerplate lines after which an invoice page carries
// nothing worth extracting.
var DefaultFooterMarkers = []string{
	"* May include estimated US sales tax, VAT, ST, GST and CT.",
}

// DefaultTenantLabel is the label of the second header line prepended to every document.
const DefaultTenantLabel = "Payer id"

func DocumentTypes() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalDocumentType maps the labels models tend to produce onto the closed set.
// Unknown labels are returned unchanged so schema validation can reject them.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return DocumentType(input), false
	}

	synonyms := map[string]DocumentType{
		"creditnote":             CreditNote,
		"credit_note":            CreditNote,
		"credit memo":            CreditNote,
		"credit adjustment note": CreditNote,
		"tax invoice adjustment": CreditNote,
		"tax invoice":            Invoice,
		"commercial invoice":     Invoice,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == strings.ToLower(string(dt)) {
			return dt, true
		}
	}
	return DocumentType(input), false
}
