// Package docs is generated by swag init from the handler annotations.
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
        "/api/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [
                    {
                        "description": "credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.loginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.authResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Create an account",
                "parameters": [
                    {
                        "description": "credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.registerRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/me/document": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["document"],
                "summary": "Read the caller's document",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Named fields replace their stored values. Premium fields are rejected.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["document"],
                "summary": "Merge fields into the caller's document",
                "parameters": [
                    {
                        "description": "fields to merge",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object", "additionalProperties": true}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/me/document/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Server-sent events: a \"document\" event with the full document on connect and after every write.",
                "produces": ["text/event-stream"],
                "tags": ["document"],
                "summary": "Stream document snapshots",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/me/report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "Focus minutes over a date range",
                "parameters": [
                    {"type": "string", "description": "YYYY-MM-DD, defaults to six days before end_date", "name": "start_date", "in": "query"},
                    {"type": "string", "description": "YYYY-MM-DD, defaults to today", "name": "end_date", "in": "query"},
                    {"type": "string", "description": "IANA time zone, defaults to UTC", "name": "tz", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.FocusReport"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/webhooks/stripe": {
            "post": {
                "description": "Verifies the Stripe-Signature header and unlocks premium on checkout.session.completed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Stripe webhook",
                "parameters": [
                    {"type": "string", "description": "signature", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "domain.DayBucket": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "label": {"type": "string"},
                "minutes": {"type": "number"}
            }
        },
        "domain.FocusReport": {
            "type": "object",
            "properties": {
                "active_days": {"type": "integer"},
                "average_minutes": {"type": "number"},
                "days": {"type": "array", "items": {"$ref": "#/definitions/domain.DayBucket"}},
                "end_date": {"type": "string"},
                "level": {"$ref": "#/definitions/domain.LevelProgress"},
                "start_date": {"type": "string"},
                "streak": {"$ref": "#/definitions/domain.StreakState"},
                "total_minutes": {"type": "number"},
                "weekly_goal_minutes": {"type": "integer"}
            }
        },
        "domain.LevelProgress": {
            "type": "object",
            "properties": {
                "level": {"type": "string"},
                "next": {"type": "string"},
                "progress": {"type": "integer"},
                "remaining": {"type": "integer"}
            }
        },
        "domain.StreakState": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "last_active": {"type": "string"}
            }
        },
        "http.authResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/http.userResponse"}
            }
        },
        "http.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "http.registerRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 8}
            }
        },
        "http.userResponse": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"}
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

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "VibeDesk Engine API",
	Description:      "Accounts, per-user focus documents and the payment webhook.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
