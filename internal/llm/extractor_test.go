package llm

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

const validJSON = `{"file_name":"a.pdf","payer_id":"P1","document_type":"invoice","account_number":"1234",
"address_company":"Acme","address_country":"Germany","invoice_number":"INV-9","invoice_date":"May 1, 2024",
"total_amount":"1,234.50","total_amount_currency":"EUR","billing_period":"April 1, 2024 - April 30, 2024",
"vendor_company_name":"Vendor GmbH","vat_percentage":19}`

const missingTotalJSON = `{"file_name":"a.pdf","payer_id":"P1","document_type":"Invoice","account_number":"1234",
"address_company":"Acme","address_country":"Germany","invoice_number":"INV-9","invoice_date":"May 1, 2024",
"total_amount_currency":"EUR","billing_period":"April 1, 2024 - April 30, 2024","vendor_company_name":"Vendor GmbH"}`

type reply struct {
	text string
	err  error
}

// scriptedGenerator returns replies in order and repeats the last one.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	last    GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	g.calls++
	g.last = req
	return g.replies[i].text, g.replies[i].err
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	a := m.Called(ctx, req)
	return a.String(0), a.Error(1)
}

func testDoc() entity.PendingDocument {
	return entity.PendingDocument{
		FileName: "a.pdf",
		TenantID: "P1",
		Text:     "File name: a.pdf\nPayer id: P1\nINVOICE INV-9 total EUR 1,234.50",
	}
}

func newTestExtractor(t *testing.T, gen Generator, attempts int) *Extractor {
	t.Helper()
	e, err := NewExtractor(gen, schema.Default(), nil, ExtractorConfig{
		MaxAttempts: attempts,
		TenantField: "payer_id",
	}, nil)
	require.NoError(t, err)
	return e
}

func TestExtract_SuccessStripsWrapperText(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "Sure! Here it is:\n```json\n" + validJSON + "\n```\nAnything else?"}}}
	res := newTestExtractor(t, gen, 2).Extract(context.Background(), testDoc())

	require.False(t, res.IsFailure(), "%v", res.Failure)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, res.Record.Attempts)
	assert.Equal(t, "a.pdf", res.Record.FileName)
	assert.Equal(t, "Invoice", res.Record.Values["document_type"])
	assert.True(t, decimal.RequireFromString("1234.5").Equal(res.Record.Values["total_amount"].(decimal.Decimal)))
	assert.True(t, decimal.NewFromInt(19).Equal(res.Record.Values["vat_percentage"].(decimal.Decimal)))

	assert.Equal(t, float32(0), gen.last.Temperature)
	assert.Equal(t, float32(0), gen.last.TopP)
	assert.Equal(t, 4096, gen.last.MaxTokens)
	assert.Contains(t, gen.last.Prompt, "<document>\n"+testDoc().Text+"\n</document>")
}

func TestExtract_RetriesParseFailureThenSucceeds(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "I cannot help with that."}, {text: validJSON}}}
	res := newTestExtractor(t, gen, 2).Extract(context.Background(), testDoc())

	require.False(t, res.IsFailure())
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, res.Record.Attempts)
}

func TestExtract_MissingRequiredFieldIsParseFailure(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: missingTotalJSON}}}
	res := newTestExtractor(t, gen, 2).Extract(context.Background(), testDoc())

	require.True(t, res.IsFailure())
	assert.Equal(t, entity.FailureParse, res.Failure.Kind)
	assert.Equal(t, 2, res.Failure.Attempts)
	assert.Equal(t, "a.pdf", res.Failure.FileName)
	assert.True(t, errors.Is(res.Failure.Cause, common.ErrParse))
	assert.Equal(t, 2, gen.calls)
}

func TestExtract_GenerationFailureUsesAllAttempts(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{err: errors.New("503 from upstream")}}}
	res := newTestExtractor(t, gen, 3).Extract(context.Background(), testDoc())

	require.True(t, res.IsFailure())
	assert.Equal(t, entity.FailureGeneration, res.Failure.Kind)
	assert.Equal(t, 3, res.Failure.Attempts)
	assert.True(t, errors.Is(res.Failure.Cause, common.ErrGeneration))
	assert.Equal(t, 3, gen.calls)
}

func TestExtract_NoRetryAfterSuccess(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(validJSON, nil).Once()

	res := newTestExtractor(t, gen, 5).Extract(context.Background(), testDoc())
	require.False(t, res.IsFailure())
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestExtract_DocumentIdentifiersWin(t *testing.T) {
	body := strings.Replace(validJSON, `"file_name":"a.pdf","payer_id":"P1"`, `"file_name":"page-1.pdf","payer_id":"ACME"`, 1)
	gen := &scriptedGenerator{replies: []reply{{text: body}}}
	res := newTestExtractor(t, gen, 1).Extract(context.Background(), testDoc())

	require.False(t, res.IsFailure())
	assert.Equal(t, "a.pdf", res.Record.Values["file_name"])
	assert.Equal(t, "P1", res.Record.Values["payer_id"])
}

func TestExtract_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGenerator{replies: []reply{{err: context.Canceled}}}
	res := newTestExtractor(t, gen, 3).Extract(ctx, testDoc())

	require.True(t, res.IsFailure())
	assert.Equal(t, entity.FailureGeneration, res.Failure.Kind)
	assert.Equal(t, 1, gen.calls)
}

func TestExtract_ConcurrentUse(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: validJSON}}}
	e := newTestExtractor(t, gen, 1)

	var wg sync.WaitGroup
	results := make([]entity.Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Extract(context.Background(), testDoc())
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.False(t, r.IsFailure())
	}
	assert.Equal(t, 16, gen.calls)
}

func TestNewExtractor_UnknownIdentifierField(t *testing.T) {
	_, err := NewExtractor(&scriptedGenerator{}, schema.Default(), nil, ExtractorConfig{IDField: "doc_id"}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestNewExtractor_IdentifierMustBeFirstColumn(t *testing.T) {
	_, err := NewExtractor(&scriptedGenerator{}, schema.Default(), nil, ExtractorConfig{IDField: "payer_id"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}
