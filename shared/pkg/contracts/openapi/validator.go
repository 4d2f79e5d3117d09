package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Validator checks recorded HTTP exchanges against the assignment service
// OpenAPI contract. Contract tests use it to keep the published spec and the
// handlers from drifting apart.
type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewValidator loads and validates the OpenAPI document at specPath.
func NewValidator(specPath string) (*Validator, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec from %s: %w", specPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &Validator{doc: doc, router: router}, nil
}

// ValidateRequest checks that req matches a route in the contract and that
// its parameters and body satisfy the route's schema.
func (v *Validator) ValidateRequest(req *http.Request) error {
	input, err := v.requestInput(req)
	if err != nil {
		return err
	}

	if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}

// ValidateResponse checks resp against the response schema the contract
// declares for req's route and status code. The response body is restored
// after reading so callers can still consume it.
func (v *Validator) ValidateResponse(req *http.Request, resp *http.Response) error {
	input, err := v.requestInput(req)
	if err != nil {
		return err
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	responseInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewBuffer(bodyBytes)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}

	if err := openapi3filter.ValidateResponse(context.Background(), responseInput); err != nil {
		return fmt.Errorf("response validation failed: %w", err)
	}
	return nil
}

// ValidateRequestResponse validates both sides of an exchange in one call.
func (v *Validator) ValidateRequestResponse(req *http.Request, resp *http.Response) error {
	if err := v.ValidateRequest(req); err != nil {
		return err
	}
	return v.ValidateResponse(req, resp)
}

// GetPaths returns all paths defined in the contract.
func (v *Validator) GetPaths() []string {
	if v.doc.Paths == nil {
		return nil
	}

	paths := make([]string, 0, v.doc.Paths.Len())
	for path := range v.doc.Paths.Map() {
		paths = append(paths, path)
	}
	return paths
}

func (v *Validator) requestInput(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return nil, fmt.Errorf("failed to find route for %s %s: %w", req.Method, req.URL.Path, err)
	}

	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError: true,
		},
	}, nil
}
