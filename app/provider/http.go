package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func doJSON(
	ctx context.Context,
	client *http.Client,
	method string,
	url string,
	headers map[string]string,
	body interface{},
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// statusError is a gateway response with a 4xx or 5xx status.
type statusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway request failed: method=%s url=%s status=%d body=%s", e.Method, e.URL, e.StatusCode, e.Body)
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
}

// parseStringish extracts an id that gateways send either as a string, a
// number, or an object carrying an "id" field.
func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t))
	case json.Number:
		return strings.TrimSpace(t.String())
	case map[string]interface{}:
		if raw, ok := t["id"]; ok {
			return parseStringish(raw)
		}
	case json.RawMessage:
		if len(t) == 0 {
			return ""
		}
		var decoded interface{}
		decoder := json.NewDecoder(bytes.NewReader(t))
		decoder.UseNumber()
		if decoder.Decode(&decoded) == nil {
			return parseStringish(decoded)
		}
	}
	return ""
}
