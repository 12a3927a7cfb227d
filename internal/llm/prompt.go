package llm

import (
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// DefaultGuidance is the accounting guidance sent with every invoice or credit note.
const DefaultGuidance = `Follow these rules:
1. Use "Credit Note" when the document mentions a credit memo, credit adjustment note or tax invoice adjustment and its net charges are negative. Without such terms, or with a zero or positive net amount, use "Invoice".
2. total_amount is the net result of all charges and credits. Use 0 when they cancel out; do not add up individual credit lines.
3. Credits are negative: total_amount, total_vat_tax_amount, net_charges_usd and net_charges_non_usd all carry a minus sign on a credit note.
4. Take total_vat_tax_amount from the line right after "TOTAL VAT" or "TOTAL Tax", printed as "<currency> <number>". Use 0 when the net tax is zero.
5. Never write negative zero; write 0.
6. Write every date as "Month Day, Year" with no leading zeros, e.g. "March 7, 2024".
7. Write countries as full names, never two-letter codes. Infer the country from the city when it is not printed.
8. address_company is the first billing address line before ATTN and is never the issuing company.
9. vendor_company_branch excludes the full company name and is not an address.
10. exchange_rate is X in "1 USD = X <currency>".
11. Write numbers without thousands separators or currency symbols, e.g. 2200.58.
12. When no separate non-USD net charges line exists, use the non-USD invoice total.`

// PromptBuilder renders the single prompt sent for each document. It is immutable and
// safe for concurrent use.
type PromptBuilder struct {
	instructions string
	guidance     string
}

// NewPromptBuilder renders the schema's format instructions once. An empty guidance
// falls back to DefaultGuidance.
func NewPromptBuilder(s *schema.Schema, guidance string) *PromptBuilder {
	if strings.TrimSpace(guidance) == "" {
		guidance = DefaultGuidance
	}
	return &PromptBuilder{
		instructions: s.RenderInstructions(),
		guidance:     strings.TrimSpace(guidance),
	}
}

// LoadGuidance reads guidance text from a file; an empty path yields DefaultGuidance.
func LoadGuidance(path string) (string, error) {
	if path == "" {
		return DefaultGuidance, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", common.InvalidInputError("read guidance %s: %v", path, err)
	}
	return string(b), nil
}

// Build embeds the document text between the guidance and the answer cue.
func (p *PromptBuilder) Build(documentText string) string {
	var b strings.Builder
	b.WriteString("Act as an accountant and extract data from the following document into a flat JSON object.\n\n")
	b.WriteString(p.guidance)
	b.WriteString("\n\n")
	b.WriteString(p.instructions)
	b.WriteString("\n\n<document>\n")
	b.WriteString(documentText)
	b.WriteString("\n</document>\n\nJSON:\n")
	return b.String()
}
