package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func validDoc() map[string]any {
	return map[string]any{
		"file_name":             "inv-1.pdf",
		"payer_id":              "P1",
		"document_type":         "Invoice",
		"account_number":        "123456789012",
		"address_company":       "Acme Ltd",
		"address_country":       "United States",
		"invoice_number":        "INV-1",
		"invoice_date":          "January 5, 2024",
		"total_amount":          json.Number("10.5"),
		"total_amount_currency": "USD",
		"billing_period":        "December 1, 2023 - December 31, 2023",
		"vendor_company_name":   "Vendor Inc",
	}
}

func TestDefault_FieldOrderAndRequired(t *testing.T) {
	s := Default()

	header := s.Header()
	require.Len(t, header, 26)
	assert.Equal(t, "file_name", header[0])
	assert.Equal(t, "payer_id", header[1])
	assert.Equal(t, "vendor_company_branch", header[len(header)-1])

	assert.Equal(t, []string{
		"file_name", "payer_id", "document_type", "account_number", "address_company",
		"address_country", "invoice_number", "invoice_date", "total_amount",
		"total_amount_currency", "billing_period", "vendor_company_name",
	}, s.Required())

	f, ok := s.Field("document_type")
	require.True(t, ok)
	assert.Equal(t, []string{"Invoice", "Credit Note"}, f.Enum)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"no fields":             "name: empty\n",
		"duplicate":             "fields:\n  - name: id\n    required: true\n  - name: id\n",
		"unknown type":          "fields:\n  - name: id\n    required: true\n  - name: a\n    type: date\n",
		"enum on number":        "fields:\n  - name: id\n    required: true\n  - name: a\n    type: number\n    enum: [\"1\"]\n",
		"optional identifier":   "fields:\n  - name: id\n  - name: a\n",
		"numeric identifier":    "fields:\n  - name: total\n    type: number\n    required: true\n",
		"unknown document type": "fields:\n  - name: id\n    required: true\n  - name: document_type\n    enum: [Invoice, Receipt]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidInput))
		})
	}
}

func TestParse_IdentifierFirstAndDocumentTypes(t *testing.T) {
	s, err := Parse([]byte("fields:\n  - name: doc_id\n    required: true\n  - name: document_type\n  - name: total\n    type: number\n"))
	require.NoError(t, err)
	assert.Equal(t, "doc_id", s.ID())

	f, ok := s.Field("document_type")
	require.True(t, ok)
	assert.Equal(t, []string{"Invoice", "Credit Note"}, f.Enum)

	out, _ := s.Coerce(map[string]any{"doc_id": "a.pdf", "document_type": "credit memo"})
	assert.Equal(t, "Credit Note", out["document_type"])
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1,234.50", "1234.5"},
		{"-12,345,678", "-12345678"},
		{"$-3.00", "-3"},
		{"-$3.00", "-3"},
		{"(12.5)", "-12.5"},
		{"USD 10", "10"},
		{"10 EUR", "10"},
		{"€ 7", "7"},
		{"-0.00", "0"},
		{"-0", "0"},
	}
	for _, tc := range cases {
		d, err := ParseDecimal(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, d.String(), tc.in)
	}

	_, err := ParseDecimal("about twelve")
	assert.Error(t, err)
	_, err = ParseDecimal("$")
	assert.Error(t, err)

	for _, in := range []string{"19,5", "2.200,58", "1,5", "1,2345", "1.234,567"} {
		_, err := ParseDecimal(in)
		assert.Error(t, err, in)
	}
}

func TestCoerceRejectsDecimalComma(t *testing.T) {
	s := Default()
	raw := validDoc()
	raw["total_amount"] = "2.200,58"
	raw["vat_percentage"] = "19,5"

	out, dropped := s.Coerce(raw)

	assert.Equal(t, "2.200,58", out["total_amount"], "required value kept for validation")
	assert.NotContains(t, out, "vat_percentage")
	assert.Contains(t, dropped, "vat_percentage(invalid)")

	v, err := NewValidator(s)
	require.NoError(t, err)
	assert.Error(t, v.Validate(out))
}

func TestCoerce(t *testing.T) {
	s := Default()
	raw := validDoc()
	raw["total_amount"] = "1,234.50"
	raw["document_type"] = "credit memo"
	raw["account_number"] = json.Number("123456789012")
	raw["ri_invoice"] = "yes"
	raw["vat_percentage"] = "n/a"
	raw["exchange_rate"] = "about 1.3"
	raw["address_attn"] = "  Jane Doe  "
	raw["tax_registration_number"] = nil
	raw["net_charges_usd"] = json.Number("-0.0")
	raw["confidence"] = 0.9

	out, dropped := s.Coerce(raw)

	assert.Equal(t, json.Number("1234.5"), out["total_amount"])
	assert.Equal(t, "Credit Note", out["document_type"])
	assert.Equal(t, "123456789012", out["account_number"])
	assert.Equal(t, true, out["ri_invoice"])
	assert.Equal(t, "Jane Doe", out["address_attn"])
	assert.Equal(t, json.Number("0"), out["net_charges_usd"])
	assert.NotContains(t, out, "vat_percentage")
	assert.NotContains(t, out, "exchange_rate")
	assert.NotContains(t, out, "tax_registration_number")
	assert.NotContains(t, out, "confidence")

	assert.Contains(t, dropped, "exchange_rate(invalid)")
	assert.Contains(t, dropped, "vat_percentage(empty)")
	assert.Contains(t, dropped, "confidence(unknown)")
}

func TestCoerce_EnumCaseInsensitive(t *testing.T) {
	s := Default()
	raw := validDoc()
	raw["document_type"] = "  INVOICE "
	out, _ := s.Coerce(raw)
	assert.Equal(t, "Invoice", out["document_type"])
}

func TestCoerce_InvalidRequiredIsKeptForValidation(t *testing.T) {
	s := Default()
	v, err := NewValidator(s)
	require.NoError(t, err)

	raw := validDoc()
	raw["total_amount"] = "twelve dollars"
	out, _ := s.Coerce(raw)
	assert.Equal(t, "twelve dollars", out["total_amount"])
	assert.Error(t, v.Validate(out))

	raw = validDoc()
	raw["document_type"] = "Receipt"
	out, _ = s.Coerce(raw)
	assert.Error(t, v.Validate(out))
}

func TestValidator(t *testing.T) {
	s := Default()
	v, err := NewValidator(s)
	require.NoError(t, err)

	out, _ := s.Coerce(validDoc())
	require.NoError(t, v.Validate(out))

	missing := validDoc()
	delete(missing, "total_amount")
	out, _ = s.Coerce(missing)
	assert.Error(t, v.Validate(out))

	empty := validDoc()
	empty["billing_period"] = ""
	out, _ = s.Coerce(empty)
	assert.Error(t, v.Validate(out))

	assert.NoError(t, v.ValidateJSON([]byte(`{"file_name":"a.pdf","payer_id":"1","document_type":"Invoice",
		"account_number":"1","address_company":"A","address_country":"B","invoice_number":"1",
		"invoice_date":"May 1, 2024","total_amount":0,"total_amount_currency":"USD",
		"billing_period":"x","vendor_company_name":"V"}`)))
	assert.Error(t, v.ValidateJSON([]byte(`{"file_name":1}`)))
}

func TestToRecord(t *testing.T) {
	s := Default()
	doc := validDoc()
	doc["ri_invoice"] = true
	rec, err := s.ToRecord("inv-1.pdf", doc)
	require.NoError(t, err)

	assert.Equal(t, "inv-1.pdf", rec.FileName)
	total, ok := rec.Get("total_amount")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("10.5").Equal(total.(decimal.Decimal)))
	assert.Equal(t, true, rec.Values["ri_invoice"])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue("abc"))
	assert.Equal(t, "-3.5", FormatValue(decimal.RequireFromString("-3.50")))
	assert.Equal(t, "0", FormatValue(decimal.Zero))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "false", FormatValue(false))
}

func TestRenderInstructions_DeclaredOrder(t *testing.T) {
	s := Default()
	text := s.RenderInstructions()

	prev := -1
	for _, name := range s.Header() {
		i := strings.Index(text, `"`+name+`": {`)
		require.GreaterOrEqual(t, i, 0, name)
		assert.Greater(t, i, prev, name)
		prev = i
	}
	assert.Contains(t, text, `"enum":["Invoice","Credit Note"]`)
	assert.Contains(t, text, `"required": ["file_name","payer_id"`)
}
