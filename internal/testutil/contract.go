package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

const maxReportedBody = 300

// Contract checks API responses against the OpenAPI document.
type Contract struct {
	router routers.Router
}

// LoadContract parses and validates the OpenAPI document at path.
func LoadContract(path string) (*Contract, error) {
	doc, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &Contract{router: router}, nil
}

// CheckResponse reports a test error when the response status or body is
// not described for the route. The body is restored for the caller.
func (c *Contract) CheckResponse(t *testing.T, method, path string, resp *http.Response) {
	t.Helper()

	routeReq, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Errorf("openapi: build route request: %v", err)
		return
	}

	route, params, err := c.router.FindRoute(routeReq)
	if err != nil {
		t.Errorf("openapi: no route for %s %s: %v", method, path, err)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("openapi: read body: %v", err)
		return
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    routeReq,
			PathParams: params,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}

	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		reported := body
		if len(reported) > maxReportedBody {
			reported = reported[:maxReportedBody]
		}
		t.Errorf("openapi: %s %s (status %d): %v\nbody: %s", method, path, resp.StatusCode, err, reported)
	}
}
