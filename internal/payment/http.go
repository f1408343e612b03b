package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/papegu/senegal-livres/internal/model"
)

// maxResponseBody caps how much of a provider answer is read.
const maxResponseBody = 1 << 20

// apiResponse is a provider answer read fully into memory.
type apiResponse struct {
	Status int
	Body   []byte
}

// do executes req and reads the body.  Transport failures and 5xx answers
// are reported as ErrProviderUnreachable; other statuses are returned for
// the adapter to interpret.
func do(client *http.Client, method model.PaymentMethod, req *http.Request) (apiResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return apiResponse{}, unreachable(method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apiResponse{}, unreachable(method, err)
	}
	if resp.StatusCode >= 500 {
		return apiResponse{}, unreachable(method, fmt.Errorf("status %d", resp.StatusCode))
	}
	return apiResponse{Status: resp.StatusCode, Body: body}, nil
}

func newJSONRequest(ctx context.Context, httpMethod, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// snippet shortens a provider body for error details.
func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
