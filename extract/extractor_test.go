package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/fingraph/llm"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
	last    llm.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

const fullResponse = `{
  "clients": [
    {"name": "Jane Doe", "age": 52, "income": 48500.5, "dob": null},
    {"name": "John Doe", "occupation": "Engineer"}
  ],
  "dependants": [{"name": "Sam", "age": 14}],
  "assets": {
    "properties": [{"type": "Main residence", "value": 450000}],
    "pensions": [{"type": "SIPP", "value": 250000, "owner": "John Doe"}],
    "investments": []
  },
  "goals": {"retirement": {"target_age": 60}, "education": null, "other_goals": []},
  "tax_info": {"tax_bracket": "Higher"},
  "adviser": "Alex Smith",
  "document_type": "Fact Find"
}`

func TestExtractRequestShape(t *testing.T) {
	p := &fakeProvider{content: fullResponse}
	_, err := New(p, "llama-3.3-70b-versatile").Extract(context.Background(), "Client: Jane Doe")
	require.NoError(t, err)

	require.Equal(t, 1, p.calls)
	assert.Equal(t, "llama-3.3-70b-versatile", p.last.Model)
	assert.Equal(t, 0.0, p.last.Temperature)
	assert.Equal(t, "json_object", p.last.ResponseFormat)
	require.Len(t, p.last.Messages, 2)
	assert.Equal(t, "system", p.last.Messages[0].Role)
	assert.Equal(t, systemPrompt, p.last.Messages[0].Content)
	assert.Equal(t, "user", p.last.Messages[1].Role)
	assert.True(t, strings.HasSuffix(p.last.Messages[1].Content, "DOCUMENT TEXT:\nClient: Jane Doe"))
	assert.Contains(t, p.last.Messages[1].Content, `"other_goals"`)
}

func TestExtractDecodesRecord(t *testing.T) {
	rec, err := New(&fakeProvider{content: fullResponse}, "").Extract(context.Background(), "text")
	require.NoError(t, err)

	require.Len(t, rec.Clients, 2)
	assert.Equal(t, "Jane Doe", rec.Clients[0].Name())
	assert.Equal(t, json.Number("52"), rec.Clients[0]["age"])
	assert.Equal(t, json.Number("48500.5"), rec.Clients[0]["income"])
	assert.Nil(t, rec.Clients[0]["dob"])
	assert.Len(t, rec.Dependants, 1)
	assert.Len(t, rec.Assets.Properties, 1)
	require.Len(t, rec.Assets.Pensions, 1)
	assert.Equal(t, "John Doe", rec.Assets.Pensions[0].Owner())
	assert.Empty(t, rec.Assets.Investments)
	assert.Equal(t, json.Number("60"), rec.Goals.Retirement["target_age"])
	assert.Nil(t, rec.Goals.Education)
	assert.Equal(t, "Alex Smith", rec.Adviser)
	assert.Equal(t, "Fact Find", rec.DocumentType)
	assert.NotEmpty(t, rec.Raw)
}

func TestExtractLenientDecoding(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantClient  string
		wantAdviser string
	}{
		{"fenced", "```json\n{\"clients\":[{\"name\":\"A B\"}]}\n```", "A B", ""},
		{"prose around", "Here is the data:\n{\"clients\":[{\"name\":\"A B\"}],\"adviser\":\"C D\"}\nDone.", "A B", "C D"},
		{"adviser object", `{"clients":[{"name":"A B"}],"adviser":{"name":" C D ","firm":"X"}}`, "A B", "C D"},
		{"adviser null", `{"clients":[{"name":"A B"}],"adviser":null}`, "A B", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := New(&fakeProvider{content: tt.content}, "").Extract(context.Background(), "x")
			require.NoError(t, err)
			require.Len(t, rec.Clients, 1)
			assert.Equal(t, tt.wantClient, rec.Clients[0].Name())
			assert.Equal(t, tt.wantAdviser, rec.Adviser)
		})
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name       string
		provider   *fakeProvider
		wantErr    error
		wantReason string
	}{
		{
			name:       "rate limited",
			provider:   &fakeProvider{err: &llm.APIError{StatusCode: 429, Body: "Rate limit reached"}},
			wantErr:    ErrRateLimited,
			wantReason: "rate_limited",
		},
		{
			name:       "server error",
			provider:   &fakeProvider{err: &llm.APIError{StatusCode: 500, Body: "boom"}},
			wantErr:    ErrTransport,
			wantReason: "transport",
		},
		{
			name:       "network",
			provider:   &fakeProvider{err: errors.New("dial tcp: connection refused")},
			wantErr:    ErrTransport,
			wantReason: "transport",
		},
		{
			name:       "no json",
			provider:   &fakeProvider{content: "I could not find any data."},
			wantErr:    ErrMalformedResponse,
			wantReason: "malformed_response",
		},
		{
			name:       "broken json",
			provider:   &fakeProvider{content: `{"clients": [{"name": "A"}`},
			wantErr:    ErrMalformedResponse,
			wantReason: "malformed_response",
		},
		{
			name:       "completion without choices",
			provider:   &fakeProvider{err: fmt.Errorf("%w: no choices in response", llm.ErrMalformedResponse)},
			wantErr:    ErrMalformedResponse,
			wantReason: "malformed_response",
		},
		{
			name:       "empty object",
			provider:   &fakeProvider{content: `{}`},
			wantErr:    ErrEmptyRecord,
			wantReason: "empty_record",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := New(tt.provider, "").Extract(context.Background(), "x")
			assert.Nil(t, rec)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReason, Reason(err))
			assert.Equal(t, 1, tt.provider.calls, "extraction must not retry")
		})
	}
}

func TestExtractEmptySectionsIsARecord(t *testing.T) {
	content := `{
  "clients": [], "dependants": [],
  "assets": {"properties": [], "pensions": [], "investments": []},
  "liabilities": [], "protection": [],
  "goals": {"retirement": {}, "education": {}, "other_goals": []},
  "tax_info": {}, "recommendations": [],
  "adviser": null, "document_type": null
}`
	rec, err := New(&fakeProvider{content: content}, "").Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, rec.IsEmpty())
	assert.False(t, rec.HasClients())
	assert.Empty(t, rec.Dropped())
}

func TestDecodeShapeSlips(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantClients []string
		wantAdviser string
		wantPension int
		wantDropped []string
	}{
		{
			name:        "client object instead of list",
			content:     `{"clients": {"name": "A"}, "adviser": "C D"}`,
			wantClients: []string{"A"},
			wantAdviser: "C D",
		},
		{
			name:        "assets as list",
			content:     `{"clients": [{"name": "A"}], "assets": []}`,
			wantClients: []string{"A"},
			wantDropped: []string{"assets"},
		},
		{
			name:        "clients as string",
			content:     `{"clients": "Jane Doe", "assets": {"pensions": [{"provider": "Aviva"}]}}`,
			wantPension: 1,
			wantDropped: []string{"clients"},
		},
		{
			name:        "adviser number",
			content:     `{"clients": [{"name": "A"}], "adviser": 7}`,
			wantClients: []string{"A"},
			wantDropped: []string{"adviser"},
		},
		{
			name:        "stray list element",
			content:     `{"clients": [{"name": "A"}, "B", null, {"name": "C"}]}`,
			wantClients: []string{"A", "C"},
			wantDropped: []string{"clients[1]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(tt.content))
			require.NoError(t, err)
			var names []string
			for _, c := range rec.Clients {
				names = append(names, c.Name())
			}
			assert.Equal(t, tt.wantClients, names)
			assert.Equal(t, tt.wantAdviser, rec.Adviser)
			assert.Len(t, rec.Assets.Pensions, tt.wantPension)
			assert.Equal(t, tt.wantDropped, rec.Dropped())
		})
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, in := range []string{`[1, 2]`, `"text"`, `null`, `{"clients": [`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeProvider{err: context.Canceled}, "").Extract(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "canceled", Reason(err))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "error", Reason(errors.New("other")))
	assert.Equal(t, "canceled", Reason(context.DeadlineExceeded))
}

func TestRecordIsEmpty(t *testing.T) {
	var nilRec *Record
	assert.True(t, nilRec.IsEmpty())
	assert.False(t, nilRec.HasClients())
	assert.True(t, (&Record{}).IsEmpty())

	empty, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	blank, err := Decode([]byte(`{"clients": [], "adviser": null}`))
	require.NoError(t, err)
	assert.False(t, blank.IsEmpty(), "present keys make a record even when their values are empty")
	assert.False(t, (&Record{DocumentType: "Review"}).IsEmpty())
	assert.False(t, (&Record{Goals: Goals{Retirement: Entity{"target_age": 60}}}).IsEmpty())

	rec := &Record{Clients: []Entity{{"name": "A"}}}
	assert.False(t, rec.IsEmpty())
	assert.True(t, rec.HasClients())
}

func TestEntityString(t *testing.T) {
	e := Entity{"name": "  Jane  ", "age": json.Number("3"), "owner": nil}
	assert.Equal(t, "Jane", e.Name())
	assert.Equal(t, "", e.String("age"))
	assert.Equal(t, "", e.Owner())
	assert.Equal(t, "", Entity(nil).Name())
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("  {\"a\":1}  ")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	_, err = extractJSON("no braces here")
	assert.ErrorIs(t, err, errNoJSONObject)
}
