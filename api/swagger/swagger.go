package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Agenda API",
        "description": "Timetable booking and academic planning approval service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens, password"},
        {"name": "Bookings", "description": "Timetable slot bookings"},
        {"name": "Plan Entries", "description": "Learning summaries and support sessions"},
        {"name": "Calendar", "description": "Bell schedule and term weeks"},
        {"name": "Exports", "description": "Agenda and entry exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string", "enum": ["HOMEWORK", "QUIZ"]},
                    {"name": "status", "in": "query", "type": "string", "enum": ["SCHEDULED", "CANCELLED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a timetable slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or period out of bounds"},
                    "409": {"description": "Slot taken or quiz cap reached"}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get booking",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Bookings"],
                "summary": "Update booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBookingRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel booking",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Cancelled"}}
            }
        },
        "/summaries": {
            "get": {
                "tags": ["Plan Entries"],
                "summary": "List learning summaries",
                "parameters": [
                    {"name": "term", "in": "query", "type": "integer"},
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Plan Entries"],
                "summary": "Create learning summary",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicts with an existing entry"}
                }
            }
        },
        "/summaries/{id}/submit": {
            "post": {
                "tags": ["Plan Entries"],
                "summary": "Submit own draft summary",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/summaries/{id}/approve": {
            "post": {
                "tags": ["Plan Entries"],
                "summary": "Approve summary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {"200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/summaries/{id}/reject": {
            "post": {
                "tags": ["Plan Entries"],
                "summary": "Reject summary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {"200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/calendar/day": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Bell schedule for a date",
                "parameters": [{"name": "date", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/calendar/week": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Resolve a term/week to date bounds",
                "parameters": [
                    {"name": "term", "in": "query", "required": true, "type": "integer"},
                    {"name": "week", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/agenda": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export a class's weekly agenda",
                "parameters": [
                    {"name": "class_id", "in": "query", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "integer"},
                    {"name": "week", "in": "query", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "period": {"type": "integer"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["HOMEWORK", "QUIZ"]},
                "note": {"type": "string"}
            }
        },
        "UpdateBookingRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "period": {"type": "integer"},
                "subject_id": {"type": "string"},
                "kind": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "CreateEntryRequest": {
            "type": "object",
            "properties": {
                "term": {"type": "integer"},
                "week": {"type": "integer"},
                "grade": {"type": "string"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "topic": {"type": "string"},
                "note": {"type": "string"},
                "sub_event_day": {"type": "string"},
                "sub_event_date": {"type": "string"},
                "sub_event_period": {"type": "integer"}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "comments": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
