package openapi

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Options controls the generated document.
type Options struct {
	Title   string
	Version string
	BaseURL string
	// HealthPath is the liveness route.
	HealthPath string
	// LegacyAPIKey documents the X-API-Key scheme for legacy callers.
	LegacyAPIKey bool
}

// Generate builds the OpenAPI 3.0 document describing the record API.
func Generate(opts Options) *openapi3.T {
	if opts.Title == "" {
		opts.Title = "recordgate API"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/health"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       opts.Title,
			Description: "Record management API behind a token-verifying gateway.",
			Version:     opts.Version,
		},
	}
	if opts.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{{"bearerAuth": {}}}
	if opts.LegacyAPIKey {
		doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:        "apiKey",
				In:          "header",
				Name:        "X-API-Key",
				Description: "Deprecated shared secret.",
			},
		}
		doc.Security = append(doc.Security, openapi3.SecurityRequirement{"apiKey": {}})
	}

	doc.Components.Schemas["ErrorEnvelope"] = errorSchema()
	doc.Components.Schemas["Record"] = recordSchema()
	doc.Components.Schemas["CreateRecord"] = createRecordSchema()
	doc.Components.Schemas["AuthorizerRequest"] = authorizerRequestSchema()
	doc.Components.Schemas["AuthorizerResponse"] = authorizerResponseSchema()

	doc.Paths = openapi3.NewPaths()
	addRecordPaths(doc)
	addSystemPaths(doc, opts.HealthPath)
	return doc
}

// Render generates the document and encodes it as JSON.
func Render(opts Options) ([]byte, error) {
	data, err := json.Marshal(Generate(opts))
	if err != nil {
		return nil, fmt.Errorf("render openapi document: %w", err)
	}
	return data, nil
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addRecordPaths(doc *openapi3.T) {
	recordRef := openapi3.NewSchemaRef("#/components/schemas/Record", nil)

	doc.Paths.Set("/records", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"records"},
			Summary:     "List records",
			Description: "Returns a page of the caller's records, oldest first.",
			OperationID: "listRecords",
			Parameters:  listQueryParameters(),
			Responses: newResponses("200", "Page of records", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"resource": &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:  &openapi3.Types{"array"},
							Items: recordRef,
						}},
						"meta": metaSchema(),
					},
				},
			}),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"records"},
			Summary:     "Create a record",
			OperationID: "createRecord",
			RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/CreateRecord", nil)),
			}},
			Responses: withError(newResponses("201", "Created record", recordRef), "409", "Record already exists"),
		},
	})

	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithDescription("Record identifier.").
			WithSchema(openapi3.NewStringSchema()),
	}
	doc.Paths.Set("/records/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			Tags:        []string{"records"},
			Summary:     "Get a record",
			OperationID: "getRecord",
			Responses:   newResponses("200", "The record", recordRef),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"records"},
			Summary:     "Delete a record",
			OperationID: "deleteRecord",
			Responses:   newResponses("204", "Record deleted", nil),
		},
	})
}

func addSystemPaths(doc *openapi3.T, healthPath string) {
	noSecurity := openapi3.NewSecurityRequirements()

	healthDesc := "Service is alive"
	health := openapi3.NewResponses()
	health.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &healthDesc,
		Content: openapi3.NewContentWithJSONSchema(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status":   openapi3.NewStringSchema().NewRef(),
				"database": openapi3.NewStringSchema().NewRef(),
				"version":  openapi3.NewStringSchema().NewRef(),
			},
		}),
	}})
	doc.Paths.Set(healthPath, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Liveness check",
			OperationID: "health",
			Security:    noSecurity,
			Responses:   health,
		},
	})

	docDesc := "OpenAPI document"
	docResponses := openapi3.NewResponses()
	docResponses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &docDesc,
		Content:     openapi3.NewContentWithJSONSchema(openapi3.NewObjectSchema()),
	}})
	doc.Paths.Set("/openapi.json", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "API description",
			OperationID: "openapi",
			Security:    noSecurity,
			Responses:   docResponses,
		},
	})

	doc.Paths.Set("/authorize", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Evaluate an authorizer event",
			Description: "Always answers 200 with an Allow or Deny policy document.",
			OperationID: "authorize",
			Security:    noSecurity,
			RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/AuthorizerRequest", nil)),
			}},
			Responses: newResponses("200", "Policy decision", openapi3.NewSchemaRef("#/components/schemas/AuthorizerResponse", nil)),
		},
	})
}

// ─── Schemas ────────────────────────────────────────────────────────────────

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"error"},
		Properties: openapi3.Schemas{
			"error":   (&openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}, Description: "Fixed label of the failure category."}).NewRef(),
			"message": openapi3.NewStringSchema().NewRef(),
			"details": &openapi3.SchemaRef{Value: &openapi3.Schema{Description: "Category-specific detail; omitted when suppressed."}},
		},
	}}
}

func recordSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"id", "name", "owner_id", "created_at", "updated_at"},
		Properties: openapi3.Schemas{
			"id":         openapi3.NewStringSchema().NewRef(),
			"name":       openapi3.NewStringSchema().NewRef(),
			"owner_id":   openapi3.NewStringSchema().NewRef(),
			"created_at": openapi3.NewDateTimeSchema().NewRef(),
			"updated_at": openapi3.NewDateTimeSchema().NewRef(),
		},
	}}
}

func createRecordSchema() *openapi3.SchemaRef {
	id := openapi3.NewStringSchema().WithPattern(`^[A-Za-z0-9_-]+$`).WithMinLength(1).WithMaxLength(64)
	id.Description = "Optional; generated when omitted."
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"name"},
		Properties: openapi3.Schemas{
			"id":   id.NewRef(),
			"name": openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(255).NewRef(),
		},
	}}
}

func authorizerRequestSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"type":               openapi3.NewStringSchema().NewRef(),
			"authorizationToken": openapi3.NewStringSchema().NewRef(),
			"methodArn":          openapi3.NewStringSchema().NewRef(),
		},
	}}
}

func authorizerResponseSchema() *openapi3.SchemaRef {
	statement := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"Action":   openapi3.NewStringSchema().NewRef(),
			"Effect":   openapi3.NewStringSchema().WithEnum("Allow", "Deny").NewRef(),
			"Resource": openapi3.NewStringSchema().NewRef(),
		},
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"principalId", "policyDocument"},
		Properties: openapi3.Schemas{
			"principalId": openapi3.NewStringSchema().NewRef(),
			"policyDocument": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"Version":   openapi3.NewStringSchema().NewRef(),
					"Statement": openapi3.NewArraySchema().WithItems(statement).NewRef(),
				},
			}},
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"userId":      openapi3.NewStringSchema().NewRef(),
					"email":       openapi3.NewStringSchema().NewRef(),
					"scope":       (&openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}, Description: "Comma-joined scope list."}).NewRef(),
					"tokenIssuer": openapi3.NewStringSchema().NewRef(),
				},
			}},
		},
	}}
}

// ─── Parameters & Responses ─────────────────────────────────────────────────

func listQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of records to return (1-1000, default 25).").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}
}

// newResponses builds a Responses map with a success response and the
// standard gateway error responses. A nil schema means no body.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	success := &openapi3.Response{Description: &successDesc}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: success})

	withError(responses, "400", "Bad request")
	withError(responses, "401", "Authentication required")
	withError(responses, "403", "Access denied")
	withError(responses, "404", "Not found")
	withError(responses, "429", "Rate limit exceeded")
	withError(responses, "500", "Internal server error")
	return responses
}

func withError(responses *openapi3.Responses, code, description string) *openapi3.Responses {
	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorEnvelope", nil)
	desc := description
	responses.Set(code, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})
	return responses
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"integer"},
					Format:      "int64",
					Description: "Total number of records the caller owns.",
				}},
				"limit": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"integer"},
					Format:      "int32",
					Description: "Maximum records returned per page.",
				}},
				"offset": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"integer"},
					Format:      "int32",
					Description: "Number of records skipped.",
				}},
				"took_ms": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:   &openapi3.Types{"number"},
					Format: "double",
				}},
			},
		},
	}
}
