/*
Package ai wraps the language-model collaborator behind two calls: parse
free text into transaction proposals, and answer a question over the
user's ledger context.

CONTRACT:
  ParseTransactions returns (nil, nil) when the text is not a
  transaction. Chat passes the ledger context through unchanged and
  returns the model's text plus an opaque optional richData payload.
  The prompt content is an embedded asset; callers never depend on it.

FAILURES:
  Network, quota and malformed-JSON failures surface as errors for this
  single call; callers degrade to a fallback message. There is no retry.
*/
package ai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plutus/ledger-engine/ledger"
)

//go:embed prompt_parse.txt
var parsePrompt string

//go:embed prompt_chat.txt
var chatPrompt string

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{},
	}
}

// =============================================================================
// TRANSACTION INTENT
// =============================================================================

// Proposal is one parsed transaction candidate. Nothing is applied until
// the user confirms it through a normal add-transaction action.
type Proposal struct {
	Type          ledger.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	CategoryID    ledger.CategoryID      `json:"categoryId"`
	CategoryName  string                 `json:"categoryName"`
	BankAccountID ledger.AccountID       `json:"bankAccountId,omitempty"`
	Note          string                 `json:"note,omitempty"`
	Date          string                 `json:"date,omitempty"`
}

type parseContext struct {
	Categories []categoryRef `json:"categories"`
	Accounts   []accountRef  `json:"accounts"`
}

type categoryRef struct {
	ID   ledger.CategoryID      `json:"id"`
	Name string                 `json:"name"`
	Type ledger.TransactionType `json:"type"`
}

type accountRef struct {
	ID   ledger.AccountID `json:"id"`
	Name string           `json:"name"`
}

// ParseTransactions asks the model whether freeText describes one or
// more transactions. The reply is schema-validated before anything is
// returned; (nil, nil) means "not a transaction".
func (c *Client) ParseTransactions(ctx context.Context, freeText string, categories []ledger.Category, accounts []ledger.BankAccount) ([]Proposal, error) {
	pc := parseContext{
		Categories: make([]categoryRef, 0, len(categories)),
		Accounts:   make([]accountRef, 0, len(accounts)),
	}
	for _, cat := range categories {
		pc.Categories = append(pc.Categories, categoryRef{ID: cat.ID, Name: cat.Name, Type: cat.Type})
	}
	for _, acc := range accounts {
		pc.Accounts = append(pc.Accounts, accountRef{ID: acc.ID, Name: acc.Name})
	}
	ctxJSON, err := json.Marshal(pc)
	if err != nil {
		return nil, err
	}

	content, err := c.completeJSON(ctx, parsePrompt,
		fmt.Sprintf("Context: %s\nText: %s", ctxJSON, freeText))
	if err != nil {
		return nil, err
	}

	if err := validateProposals(content); err != nil {
		return nil, err
	}

	var out struct {
		Transactions []Proposal `json:"transactions"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("invalid parse response: %w", err)
	}
	if len(out.Transactions) == 0 {
		return nil, nil
	}
	return out.Transactions, nil
}

// =============================================================================
// CHAT
// =============================================================================

// ChatContext is forwarded to the model verbatim; field names are part
// of the collaborator contract.
type ChatContext struct {
	Symbol          string               `json:"symbol"`
	TotalBalance    decimal.Decimal      `json:"totalBalance"`
	AllTransactions []ledger.Transaction `json:"allTransactions"`
	MonthlySpend    decimal.Decimal      `json:"monthlySpend"`
	Budget          decimal.Decimal      `json:"budget"`
	Remaining       decimal.Decimal      `json:"remaining"`
	Accounts        []ledger.BankAccount `json:"accounts"`
	Categories      []ledger.Category    `json:"categories"`
}

// ChatReply carries the answer text and an optional visualization hint.
// RichData is opaque here: its presence and shape belong to the
// model/UI contract, not to this client.
type ChatReply struct {
	Text     string          `json:"text"`
	RichData json.RawMessage `json:"richData,omitempty"`
}

// Chat answers freeText over the given ledger context.
func (c *Client) Chat(ctx context.Context, freeText string, chatCtx ChatContext) (ChatReply, error) {
	ctxJSON, err := json.Marshal(chatCtx)
	if err != nil {
		return ChatReply{}, err
	}

	content, err := c.completeJSON(ctx, chatPrompt,
		fmt.Sprintf("Context: %s\nQuestion: %s", ctxJSON, freeText))
	if err != nil {
		return ChatReply{}, err
	}

	var reply ChatReply
	if err := json.Unmarshal(content, &reply); err != nil {
		return ChatReply{}, fmt.Errorf("invalid chat response: %w", err)
	}
	return reply, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// completeJSON performs one chat-completions call in JSON-object mode
// and returns the first choice's content.
func (c *Client) completeJSON(ctx context.Context, system, user string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("AI API key missing")
	}

	body := map[string]any{
		"model":           c.model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm error: %s", string(msg))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no choices")
	}
	return []byte(out.Choices[0].Message.Content), nil
}
