/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router.
It is perfectly suited for unit tests, but can also talk to a remote
service when created with a URL.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router         *mux.Router
	httpClient     *http.Client
	url            string
	ctx            context.Context
	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	c.defaultHeaders = headers
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the client's request context
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c Client) do(r *http.Request) (status int, header http.Header, responseBody []byte, err error) {
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	responseBody, _ = io.ReadAll(res.Body)
	return res.StatusCode, res.Header, responseBody, nil
}

func decodeResult(responseBody []byte, result interface{}) error {
	if responseBody == nil || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = responseBody
		return nil
	}
	return json.Unmarshal(responseBody, result)
}

func statusError(status int, want int, responseBody []byte) error {
	return fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
		status, want, strings.TrimSpace(string(responseBody)))
}

// RawGet gets the resource from path. Expects http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// The path can be extended with query strings.
//
// result can be map[string]interface{}, a struct pointer or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodGet, c.url+path, nil)
	status, _, responseBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK {
		return status, statusError(status, http.StatusOK, responseBody)
	}
	return status, decodeResult(responseBody, result)
}

// RawPost posts a body to path. Expects http.StatusOK as response, otherwise
// it will flag an error. Returns the actual http status code.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPost, c.url+path, bytes.NewReader(requestBody))
	r.Header.Set("Content-Type", "application/json")
	status, _, responseBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return status, statusError(status, http.StatusOK, responseBody)
	}
	return status, decodeResult(responseBody, result)
}

// RawPut puts a body to path. Expects http.StatusOK as response, otherwise
// it will flag an error. Returns the actual http status code.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPut, c.url+path, bytes.NewReader(requestBody))
	r.Header.Set("Content-Type", "application/json")
	status, _, responseBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return status, statusError(status, http.StatusOK, responseBody)
	}
	return status, decodeResult(responseBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// result can be a raw *[]byte to capture the response body, or nil.
func (c Client) RawDelete(path string, result interface{}) (int, error) {
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodDelete, c.url+path, nil)
	status, _, responseBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return status, statusError(status, http.StatusOK, responseBody)
	}
	return status, decodeResult(responseBody, result)
}
