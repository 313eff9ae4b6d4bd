// Package docs holds the OpenAPI document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/submissions": {
            "post": {
                "description": "Stores a PENDING submission and starts AI analysis in the background. A repeated Idempotency-Key replays the original submission with 200.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Submit a review",
                "parameters": [
                    {"type": "string", "description": "Client retry key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Rating and review", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateSubmissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Idempotent replay", "schema": {"$ref": "#/definitions/handlers.CreateSubmissionResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateSubmissionResponse"}},
                    "400": {"description": "Malformed body or key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed or wrong field type", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Get submission status",
                "parameters": [
                    {"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SubmissionStatusResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Obtain an admin bearer token",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TokenResponse"}},
                    "400": {"description": "Malformed body", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/submissions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List submissions",
                "parameters": [
                    {"type": "integer", "description": "Filter by rating (1..5)", "name": "rating", "in": "query"},
                    {"type": "string", "description": "Filter by status", "name": "status", "in": "query"},
                    {"type": "string", "description": "Case-insensitive review substring", "name": "q", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size (1..100)", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AdminSubmissionList"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/analytics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Submission analytics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AnalyticsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.CreateSubmissionRequest": {
            "type": "object",
            "properties": {
                "rating": {"type": "integer", "example": 4},
                "review": {"type": "string", "example": "Great food, slow service."}
            }
        },
        "handlers.CreateSubmissionResponse": {
            "type": "object",
            "properties": {
                "submission_id": {"type": "string", "example": "141add05-4415-4938-b5a1-17e0d3171aff"},
                "status": {"type": "string", "example": "PENDING"}
            }
        },
        "handlers.SubmissionStatusResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "rating": {"type": "integer"},
                "review": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "COMPLETED", "FAILED"]},
                "created_at": {"type": "string", "format": "date-time"},
                "user_ai_response": {"type": "string"},
                "error_message": {"type": "string"}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string", "example": "admin"},
                "password": {"type": "string", "example": "change-me"}
            }
        },
        "handlers.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string", "example": "bearer"},
                "expires_in": {"type": "integer", "example": 86400}
            }
        },
        "handlers.AdminSubmission": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "rating": {"type": "integer"},
                "status": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "review_preview": {"type": "string"},
                "admin_summary": {"type": "string"},
                "recommended_actions": {"type": "array", "items": {"type": "string"}},
                "error_message": {"type": "string"}
            }
        },
        "handlers.AdminSubmissionList": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/handlers.AdminSubmission"}},
                "total": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "handlers.AnalyticsResponse": {
            "type": "object",
            "properties": {
                "counts_by_rating": {"type": "object", "additionalProperties": {"type": "integer"}},
                "counts_by_status": {"type": "object", "additionalProperties": {"type": "integer"}},
                "submissions_per_day": {"type": "array", "items": {"$ref": "#/definitions/repo.DayCount"}}
            }
        },
        "repo.DayCount": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2025-01-31"},
                "count": {"type": "integer", "example": 12}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "submission not found"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Review Insights API",
	Description:      "Collects customer reviews, analyzes them with an LLM and serves an admin dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
