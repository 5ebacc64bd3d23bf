// Package docs holds the OpenAPI document served at /swagger/ when built
// with -tags=swagger. Regenerate with `swag init -g cmd/vlmd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "vlmd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/query": {
            "get": {
                "description": "Replaces the active prompt and waits for the first reply produced for it.",
                "produces": ["text/plain"],
                "summary": "Ask about the video",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Prompt text (default: Describe the scene.)",
                        "name": "query",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Model reply, or the timeout message",
                        "schema": {"type": "string"}
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    },
                    "502": {
                        "description": "Bad Gateway",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Service status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.StatusResponse"}
                    }
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "summary": "Query history",
                "parameters": [
                    {"type": "integer", "description": "Rows to skip", "name": "offset", "in": "query"},
                    {"type": "integer", "description": "Page size (max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.HistoryResponse"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "ready"},
                    "503": {"description": "starting"}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 502},
                "error": {"type": "string", "example": "inference failed"}
            }
        },
        "types.HistoryEntry": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string", "example": "2026-01-02T15:04:05Z"},
                "id": {"type": "string", "example": "3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10"},
                "prompt": {"type": "string", "example": "How many people are visible?"},
                "reply": {"type": "string", "example": "Two people are visible."},
                "status": {"type": "string", "example": "ok"},
                "updated_at": {"type": "string", "example": "2026-01-02T15:04:07Z"}
            }
        },
        "types.HistoryResponse": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/types.HistoryEntry"}
                },
                "limit": {"type": "integer", "example": 20},
                "offset": {"type": "integer", "example": 0},
                "total": {"type": "integer", "example": 42}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "busy": {"type": "boolean", "example": false},
                "calls": {"type": "integer", "example": 50},
                "frames": {"type": "integer", "example": 1200},
                "frames_skipped": {"type": "integer", "example": 1150},
                "last_error": {"type": "string"},
                "last_reply": {"type": "string", "example": "A person is walking a dog across the street."},
                "mailbox_depth": {"type": "integer", "example": 0},
                "pending_replies": {"type": "integer", "example": 1},
                "prompt": {"type": "string", "example": "Describe the scene."},
                "prompt_id": {"type": "string", "example": "3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10"},
                "running": {"type": "boolean", "example": true},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "vlmd API",
	Description:      "Control endpoint for a video stream narrated by a remote vision-language model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
