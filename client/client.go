// Package client talks to the item API. *Client satisfies canvas.Persistence
// and canvas.Searcher.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"orbit/core"
)

// ErrMalformedResponse is returned when a list or search response is not a JSON array.
var ErrMalformedResponse = errors.New("unexpected response format: elements is not an array")

// APIError is a non-2xx response. Detail carries the server's explanation.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Detail)
}

// APIDetail is shown to the user in place of a generic failure message.
func (e *APIError) APIDetail() string { return e.Detail }

type Client struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	HTTP  *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// decodeDetail accepts both {"detail": "msg"} and validation lists
// {"detail": [{"msg": ...}, ...]}.
func decodeDetail(body []byte) string {
	var resp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(resp.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, e := range list {
			msgs = append(msgs, e.Msg)
		}
		return strings.Join(msgs, ", ")
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	log := logrus.WithFields(logrus.Fields{"method": method, "path": path})
	resp, err := c.httpClient().Do(req)
	if err != nil {
		log.WithError(err).Debug("Request failed")
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: decodeDetail(data)}
		log.WithField("status", resp.StatusCode).Debug(apiErr.Error())
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func userQuery(userID string) url.Values {
	return url.Values{"user_id": {userID}}
}

// decodeList reads a JSON array of items, rejecting any other shape.
func decodeList(raw json.RawMessage) ([]core.Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedResponse
	}
	var items []core.Item
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return items, nil
}

func (c *Client) ListItems(ctx context.Context, userID string, page, pageSize int) ([]core.Item, error) {
	q := userQuery(userID)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/elements/", q, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].UserID = userID
	}
	return items, nil
}

// CreateItem posts the draft to its kind's collection, e.g. /notes/.
func (c *Client) CreateItem(ctx context.Context, userID string, draft core.Item) (core.Item, error) {
	if !draft.Kind.Valid() {
		return core.Item{}, fmt.Errorf("%w: unknown kind %q", core.ErrInvalidItem, draft.Kind)
	}
	var created core.Item
	if err := c.do(ctx, http.MethodPost, "/"+draft.Kind.Collection()+"/", userQuery(userID), draft, &created); err != nil {
		return core.Item{}, err
	}
	if created.ID == "" {
		return core.Item{}, fmt.Errorf("%w: created element has no _id", ErrMalformedResponse)
	}
	created.UserID = userID
	return created, nil
}

// UpdateItem sends a partial update. Float coordinates are rounded.
func (c *Client) UpdateItem(ctx context.Context, id string, fields core.Fields, userID string) error {
	body := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "x" || k == "y" {
			v = roundCoord(v)
		}
		body[k] = v
	}
	return c.do(ctx, http.MethodPut, "/elements/"+url.PathEscape(id), userQuery(userID), body, nil)
}

func roundCoord(v any) any {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n))
	case float32:
		return int(math.Round(float64(n)))
	}
	return v
}

func (c *Client) DeleteItem(ctx context.Context, id, userID string) error {
	return c.do(ctx, http.MethodDelete, "/elements/"+url.PathEscape(id), userQuery(userID), nil, nil)
}

func (c *Client) SearchItems(ctx context.Context, userID, query string) ([]core.Item, error) {
	q := userQuery(userID)
	q.Set("query", query)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList(raw)
}
