// Package gateway is the HTTP client of the contract backend: upload, ask,
// clause listing and clause suggestions. It performs no retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is read to find its detail.
const maxErrorBody = 64 << 10

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Ask(ctx context.Context, contractID, question string) (*Answer, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, &ValidationError{Op: OpAsk, Message: "Please upload a contract first."}
	}
	if strings.TrimSpace(question) == "" {
		return nil, &ValidationError{Op: OpAsk, Message: "Please enter a question."}
	}
	body, _ := json.Marshal(map[string]any{
		"question":    question,
		"contract_id": contractID,
	})
	var out Answer
	if err := c.doJSON(ctx, OpAsk, http.MethodPost, "/api/ask", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListClauses returns the clauses of a contract. Zero clauses is a valid answer.
func (c *Client) ListClauses(ctx context.Context, contractID string) ([]Clause, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, &ValidationError{Op: OpListClauses, Message: "Please upload a contract first."}
	}
	var out struct {
		Clauses []Clause `json:"clauses"`
	}
	path := "/api/contracts/" + url.PathEscape(contractID) + "/clauses"
	if err := c.doJSON(ctx, OpListClauses, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Clauses == nil {
		return []Clause{}, nil
	}
	return out.Clauses, nil
}

func (c *Client) SuggestClause(ctx context.Context, contractID string, clauseIndex int, guidance Guidance) (*Suggestion, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, &ValidationError{Op: OpSuggest, Message: "Please upload a contract first."}
	}
	body, err := json.Marshal(guidance.wire())
	if err != nil {
		return nil, fmt.Errorf("failed to encode guidance: %w", err)
	}
	path := "/api/contracts/" + url.PathEscape(contractID) + "/clauses/" + strconv.Itoa(clauseIndex) + "/suggest"
	var out Suggestion
	if err := c.doJSON(ctx, OpSuggest, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ContractInfo(ctx context.Context, contractID string) (*ContractInfo, error) {
	var out ContractInfo
	if err := c.doJSON(ctx, OpContractInfo, http.MethodGet, "/api/contracts/"+url.PathEscape(contractID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.doJSON(ctx, OpHealth, http.MethodGet, "/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op Op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op Op, req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteCallError{Op: op, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteCallError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// readDetail extracts the "detail" message of an error body. Non-string details
// (such as validation error lists) yield "" so the caller falls back to a generic message.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if s, ok := body.Detail.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
