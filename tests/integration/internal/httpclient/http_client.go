package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// Client wraps http.Client with helpers for JSON requests.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client.
func New(baseURL, bearer string) *Client {
	return &Client{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{}}
}

// As returns a copy of c authenticated with another bearer token.
func (c *Client) As(bearer string) *Client {
	return &Client{BaseURL: c.BaseURL, Bearer: bearer, HTTP: c.HTTP}
}

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// GetJSON issues a GET request and decodes the JSON response.
func (c *Client) GetJSON(path string, out any) (*http.Response, error) {
	return c.Do(http.MethodGet, path, nil, out, nil)
}

// PostJSON issues a POST request with a JSON body and decodes the response.
func (c *Client) PostJSON(path string, body, out any) (*http.Response, error) {
	return c.Do(http.MethodPost, path, body, out, nil)
}

// PatchJSON issues a PATCH request with a JSON body and decodes the response.
func (c *Client) PatchJSON(path string, body, out any) (*http.Response, error) {
	return c.Do(http.MethodPatch, path, body, out, nil)
}

// Delete issues a DELETE request.
func (c *Client) Delete(path string) (*http.Response, error) {
	return c.Do(http.MethodDelete, path, nil, nil, nil)
}

// Do sends a request and decodes a 2xx JSON response into out. Non-2xx
// responses are returned together with a *StatusError.
func (c *Client) Do(method, path string, body, out any, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode >= 300 {
		return resp, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
