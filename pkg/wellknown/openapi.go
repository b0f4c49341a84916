package wellknown

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// loadOpenAPIDocument parses and validates the embedded document.
func loadOpenAPIDocument() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}
