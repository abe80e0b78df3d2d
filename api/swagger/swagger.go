package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Deadline Radar API",
        "description": "Aggregates upcoming coursework deadlines from a Canvas-compatible LMS into a weekly schedule",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Runs", "description": "Background deadline sync runs"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/runs": {
            "get": {
                "tags": ["Runs"],
                "summary": "List recent runs",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Runs"],
                "summary": "Start a deadline sync run",
                "parameters": [
                    {"name": "Authorization", "in": "header", "required": true, "type": "string", "description": "Bearer LMS access token"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CreateRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or rejected token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Run status and progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}/schedule": {
            "get": {
                "tags": ["Runs"],
                "summary": "Week schedule of a finished run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run or expired schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run still in progress or failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}/export": {
            "get": {
                "tags": ["Runs"],
                "summary": "Download a finished schedule as CSV or PDF",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Attachment"},
                    "409": {"description": "Run still in progress or failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateRunRequest": {
            "type": "object",
            "properties": {
                "timezone": {"type": "string", "description": "IANA zone used for weekday bucketing, defaults to the server zone"}
            }
        },
        "SyncRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                "timezone": {"type": "string"},
                "completed": {"type": "integer"},
                "total": {"type": "integer"},
                "progress": {"type": "integer"},
                "course_count": {"type": "integer"},
                "assignment_count": {"type": "integer"},
                "upcoming_count": {"type": "integer"},
                "undated_count": {"type": "integer"},
                "discarded_count": {"type": "integer"},
                "error_message": {"type": "string"},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        },
        "WeekSchedule": {
            "type": "object",
            "properties": {
                "timezone": {"type": "string"},
                "generated_at": {"type": "string"},
                "days": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/DayBucket"}
                },
                "no_due_date": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/UndatedAssignment"}
                }
            }
        },
        "DayBucket": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "assignments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ScheduledAssignment"}
                }
            }
        },
        "ScheduledAssignment": {
            "type": "object",
            "properties": {
                "course": {"type": "string"},
                "assignment": {"type": "string"},
                "due_at": {"type": "string"},
                "due_label": {"type": "string"},
                "days_left": {"type": "integer"},
                "hours_left": {"type": "integer"}
            }
        },
        "UndatedAssignment": {
            "type": "object",
            "properties": {
                "course": {"type": "string"},
                "assignment": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
