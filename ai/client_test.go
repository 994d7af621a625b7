package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutus/ledger-engine/ai"
	"github.com/plutus/ledger-engine/ledger"
)

// fakeLLM serves an OpenAI-style chat-completions endpoint whose first
// choice content is the given JSON payload.
func fakeLLM(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model          string            `json:"model"`
			ResponseFormat map[string]string `json:"response_format"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat["type"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": payload}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(srv *httptest.Server) *ai.Client {
	return ai.NewClient("test-key", srv.URL, "test-model")
}

func TestParseTransactions_ReturnsProposals(t *testing.T) {
	srv := fakeLLM(t, `{"transactions":[
		{"type":"expense","amount":200,"categoryId":"cat-groceries","categoryName":"Groceries","note":"groceries"},
		{"type":"expense","amount":"50.25","categoryId":"cat-transport","categoryName":"Transport","note":"uber"}
	]}`)
	defer srv.Close()

	proposals, err := testClient(srv).ParseTransactions(context.Background(), "spent 200 on groceries and 50.25 on uber",
		[]ledger.Category{{ID: "cat-groceries", Name: "Groceries", Type: ledger.TxExpense}},
		nil)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, ledger.TxExpense, proposals[0].Type)
	assert.True(t, proposals[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, proposals[1].Amount.Equal(decimal.RequireFromString("50.25")), "string amounts are accepted")
}

func TestParseTransactions_NullMeansNotATransaction(t *testing.T) {
	srv := fakeLLM(t, `{"transactions":null}`)
	defer srv.Close()

	proposals, err := testClient(srv).ParseTransactions(context.Background(), "what is the weather", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, proposals)
}

func TestParseTransactions_SchemaViolationRejected(t *testing.T) {
	// Missing required "amount" on the item.
	srv := fakeLLM(t, `{"transactions":[{"type":"expense"}]}`)
	defer srv.Close()

	_, err := testClient(srv).ParseTransactions(context.Background(), "spent something", nil, nil)
	assert.Error(t, err)

	// Unknown type enum.
	srv2 := fakeLLM(t, `{"transactions":[{"type":"loan","amount":5}]}`)
	defer srv2.Close()

	_, err = testClient(srv2).ParseTransactions(context.Background(), "lent 5", nil, nil)
	assert.Error(t, err)
}

func TestParseTransactions_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).ParseTransactions(context.Background(), "spent 10", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm error")
}

func TestParseTransactions_MissingKeyFailsFast(t *testing.T) {
	c := ai.NewClient("", "http://unused", "m")
	_, err := c.ParseTransactions(context.Background(), "spent 10", nil, nil)
	assert.Error(t, err)
}

func TestChat_PassesRichDataThrough(t *testing.T) {
	srv := fakeLLM(t, `{"text":"You spent 420 this month.","richData":{"kind":"stats","total":420}}`)
	defer srv.Close()

	reply, err := testClient(srv).Chat(context.Background(), "how much did I spend?", ai.ChatContext{Symbol: "$"})
	require.NoError(t, err)
	assert.Equal(t, "You spent 420 this month.", reply.Text)

	var rich map[string]any
	require.NoError(t, json.Unmarshal(reply.RichData, &rich))
	assert.Equal(t, "stats", rich["kind"])
}

func TestChat_TextOnlyReply(t *testing.T) {
	srv := fakeLLM(t, `{"text":"Hello!"}`)
	defer srv.Close()

	reply, err := testClient(srv).Chat(context.Background(), "hi", ai.ChatContext{})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Text)
	assert.Nil(t, reply.RichData)
}
