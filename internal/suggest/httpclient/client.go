package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

const (
	suggestionsPath = "/api/v1/suggestions"
	maxErrorBody    = 4 << 10
)

// Client requests mapping suggestions from a remote service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithToken sets a bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a suggestion client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("suggest client: empty base url")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type suggestionRequest struct {
	DatasetID int64 `json:"dataset_id"`
}

type wireSuggestion struct {
	SourceColumn string   `json:"source_column"`
	TargetField  string   `json:"target_field"`
	Confidence   *float64 `json:"confidence"`
}

type suggestionResponse struct {
	Suggestions map[string][]wireSuggestion `json:"suggestions"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// RequestSuggestions fetches suggestions for a dataset. Responses are
// validated before they are returned.
func (c *Client) RequestSuggestions(ctx context.Context, datasetID int64) (mapping.SuggestionBatch, error) {
	if err := mapping.ValidateDatasetID("suggest", datasetID); err != nil {
		return mapping.SuggestionBatch{}, err
	}
	var resp suggestionResponse
	if err := c.doJSON(ctx, http.MethodPost, suggestionsPath, suggestionRequest{DatasetID: datasetID}, &resp); err != nil {
		return mapping.SuggestionBatch{}, err
	}
	return decodeBatch(resp)
}

func decodeBatch(resp suggestionResponse) (mapping.SuggestionBatch, error) {
	if resp.Suggestions == nil {
		return mapping.SuggestionBatch{}, invalidPayload(errors.New("missing suggestions object"))
	}
	var batch mapping.SuggestionBatch
	for name, list := range resp.Suggestions {
		category, err := schema.ParseCategory(name)
		if err != nil {
			return mapping.SuggestionBatch{}, invalidPayload(fmt.Errorf("category %q: %w", name, err))
		}
		for _, item := range list {
			if item.Confidence == nil {
				return mapping.SuggestionBatch{}, invalidPayload(fmt.Errorf("%s->%s has no confidence", item.SourceColumn, item.TargetField))
			}
			suggestion := mapping.Suggestion{
				SourceColumn: item.SourceColumn,
				TargetField:  item.TargetField,
				Confidence:   *item.Confidence,
			}
			if err := suggestion.Validate(); err != nil {
				return mapping.SuggestionBatch{}, invalidPayload(err)
			}
			if err := batch.Add(category, suggestion); err != nil {
				return mapping.SuggestionBatch{}, invalidPayload(err)
			}
		}
	}
	return batch, nil
}

func invalidPayload(err error) error {
	return mapping.NewFailure(mapping.ErrBadRequest, "suggest", "suggestion service returned an invalid payload", err)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return mapping.NewFailure(mapping.ErrTransient, "suggest", "suggestion service unavailable, please retry", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return invalidPayload(err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := errorMessage(raw)
	cause := fmt.Errorf("suggest client: http %d", resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		if message == "" {
			message = "the suggestion service rejected the request"
		}
		return mapping.NewFailure(mapping.ErrBadRequest, "suggest", message, cause)
	case http.StatusNotFound:
		return mapping.NewFailure(mapping.ErrNotFound, "suggest", "please upload a dataset first", cause)
	case http.StatusUnprocessableEntity:
		return mapping.NewFailure(mapping.ErrInvalidIdentifier, "suggest", "dataset id must be a positive integer", cause)
	default:
		return mapping.NewFailure(mapping.ErrTransient, "suggest", "suggestion service unavailable, please retry", cause)
	}
}

func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, candidate := range []string{body.Error, body.Message, body.Detail} {
			if candidate != "" {
				return candidate
			}
		}
		return ""
	}
	return string(raw)
}
