package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/collision-fault-assistant/internal/adapters/http/api"
	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// bodyValidator checks JSON request bodies against the embedded OpenAPI document.
type bodyValidator struct {
	doc *openapi3.T
}

func newBodyValidator(ctx context.Context) (*bodyValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return &bodyValidator{doc: doc}, nil
}

func (v *bodyValidator) requestSchema(path string) *openapi3.Schema {
	item := v.doc.Paths.Value(path)
	if item == nil || item.Post == nil || item.Post.RequestBody == nil || item.Post.RequestBody.Value == nil {
		return nil
	}
	media := item.Post.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

// decode validates payload against the request schema of path and then unmarshals it into dest.
func (v *bodyValidator) decode(path string, payload []byte, dest any) error {
	const op = "decode request body"

	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid JSON: %w", err))
	}
	if schema := v.requestSchema(path); schema != nil {
		if err := schema.VisitJSON(generic); err != nil {
			return domain.WrapError(domain.ErrInvalidInput, op, err)
		}
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return nil
}
