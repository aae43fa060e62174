package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TrivselsTracker API",
        "description": "Survey-based wellbeing monitoring for FGU students",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Survey", "description": "Public tokenized survey flow"},
        {"name": "Consent", "description": "Public consent decisions"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Dashboard", "description": "Staff wellbeing dashboard"},
        {"name": "Analytics", "description": "Program-wide statistics and export"},
        {"name": "Reports", "description": "Asynchronous report generation"},
        {"name": "System", "description": "Cron-invoked operations"}
    ],
    "paths": {
        "/healthz": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/survey/{token}": {
            "get": {
                "tags": ["Survey"],
                "summary": "Load a survey by its opaque token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SurveyViewResponse"}},
                    "404": {"description": "Unknown token"},
                    "410": {"description": "Token expired"}
                }
            }
        },
        "/survey/{token}/submit": {
            "post": {
                "tags": ["Survey"],
                "summary": "Submit survey answers",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SurveySubmitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SurveySubmitResponse"}},
                    "400": {"description": "Validation failure or already completed"}
                }
            }
        },
        "/consent/{token}": {
            "get": {
                "tags": ["Consent"],
                "summary": "Resolve a consent token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ConsentStatusResponse"}}
                }
            }
        },
        "/consent/{token}/accept": {
            "post": {
                "tags": ["Consent"],
                "summary": "Record consent",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/consent/{token}/decline": {
            "post": {
                "tags": ["Consent"],
                "summary": "Decline consent",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "phase", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "consent", "in": "query", "type": "boolean"},
                    {"name": "groupId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/dashboard/overview": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Latest score and session state per active consented student",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/high-risk": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Students whose latest total is red",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/summary": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Program-wide wellbeing statistics",
                "parameters": [
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/export": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Pseudonymized score export",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "json"]},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List report jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report via signed token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/system/send-surveys": {
            "post": {
                "tags": ["System"],
                "summary": "Issue the weekly survey batch, or one targeted survey",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SendSurveyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/send-reminders": {
            "post": {
                "tags": ["System"],
                "summary": "Nudge students with open sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/process-expired": {
            "post": {
                "tags": ["System"],
                "summary": "Sweep expired sessions into non_response",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SurveyViewResponse": {
            "type": "object",
            "properties": {
                "student_name": {"type": "string"},
                "week_number": {"type": "integer"},
                "year": {"type": "integer"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/SurveyQuestionView"}},
                "custom_questions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "SurveyQuestionView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "category": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "SurveySubmitRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "object", "additionalProperties": {"type": "integer"}},
                "custom_answers": {"type": "object", "additionalProperties": {"type": "integer"}}
            },
            "required": ["answers"]
        },
        "SurveySubmitResponse": {
            "type": "object",
            "properties": {
                "total": {"type": "number"},
                "total_color": {"type": "string", "enum": ["green", "yellow", "red"]},
                "categories": {"type": "array", "items": {"type": "object"}},
                "completed_at": {"type": "string"}
            }
        },
        "ConsentStatusResponse": {
            "type": "object",
            "properties": {
                "student_name": {"type": "string"},
                "consent_status": {"type": "boolean"},
                "already_responded": {"type": "boolean"}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "internal_id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phase": {"type": "string", "enum": ["indslusning", "hovedforloeb", "udslusning"]}
            },
            "required": ["internal_id", "name", "email", "phase"]
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phase": {"type": "string"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["student", "weekly"]},
                "studentId": {"type": "string"},
                "weekNumber": {"type": "integer"},
                "year": {"type": "integer"},
                "format": {"type": "string", "enum": ["pdf", "csv"]}
            },
            "required": ["type", "format"]
        },
        "SendSurveyRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "custom_questions": {"type": "array", "items": {"type": "string"}}
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
