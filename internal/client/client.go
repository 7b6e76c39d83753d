// Package client talks to the catalog HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FileCatalog/internal/catalog"
	"FileCatalog/pkg/kit"
)

var (
	ErrNotFound     = errors.New("catalog product not found")
	ErrConflict     = errors.New("catalog product code conflict")
	ErrBadRequest   = errors.New("catalog rejected request")
	ErrUnauthorized = errors.New("catalog rejected credentials")
	ErrBadStatus    = errors.New("catalog bad status")
	ErrUnavailable  = errors.New("catalog unavailable")
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

// List returns the catalog. limit <= 0 asks for every product.
func (c *Client) List(ctx context.Context, limit int) ([]catalog.Product, error) {
	path := "/products"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []catalog.Product
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int) (catalog.Product, error) {
	var p catalog.Product
	err := c.do(ctx, http.MethodGet, "/products/"+strconv.Itoa(id), nil, http.StatusOK, &p)
	return p, err
}

func (c *Client) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	body := catalog.Patch{
		Title:       &p.Title,
		Description: &p.Description,
		Price:       &p.Price,
		Thumbnail:   &p.Thumbnail,
		Code:        &p.Code,
		Stock:       &p.Stock,
	}

	var out catalog.Product
	err := c.do(ctx, http.MethodPost, "/products", body, http.StatusCreated, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int, patch catalog.Patch) (catalog.Product, error) {
	var out catalog.Product
	err := c.do(ctx, http.MethodPut, "/products/"+strconv.Itoa(id), patch, http.StatusOK, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/products/"+strconv.Itoa(id), nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	var er kit.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)

	var base error
	switch resp.StatusCode {
	case http.StatusNotFound:
		base = ErrNotFound
	case http.StatusConflict:
		base = ErrConflict
	case http.StatusBadRequest:
		base = ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		base = ErrUnauthorized
	case http.StatusServiceUnavailable:
		base = ErrUnavailable
	default:
		base = ErrBadStatus
	}
	return fmt.Errorf("%w: status=%d error=%q", base, resp.StatusCode, er.Error)
}
