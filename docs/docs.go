// Package docs is generated by swag from the handler annotations. Regenerate with
// `swag init -g cmd/server/main.go` after changing them.
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
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign in",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "login",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {
                        "description": "Refresh token",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.RefreshRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LoginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/leads/autosave": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Leads"],
                "summary": "Save onboarding fields, creating the lead on first call",
                "parameters": [
                    {
                        "description": "Any subset of lead fields",
                        "name": "draft",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    },
                    {"type": "string", "description": "Existing lead", "name": "leadId", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AutoSaveResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.AutoSaveResult"}}
                }
            }
        },
        "/leads/{id}/stage": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Pipeline"],
                "summary": "Move a lead to another pipeline stage",
                "parameters": [
                    {"type": "string", "description": "Lead ID", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Target stage",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.MoveStageRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/accounting/journal-entries": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounting"],
                "summary": "Post a balanced journal entry",
                "parameters": [
                    {
                        "description": "Entry",
                        "name": "entry",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.JournalEntryRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handlers.errorBody"}}
                }
            }
        },
        "/ussd/applications/{id}/status": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["USSD"],
                "summary": "Change the status of a USSD application",
                "parameters": [
                    {"type": "integer", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {
                        "description": "New status and saga options",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.UssdStatusRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.errorBody"}},
                    "502": {"description": "Bad Gateway", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.errorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object"},
                "error": {"type": "string"}
            }
        },
        "models.AutoSaveResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "leadId": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "models.JournalEntryRequest": {
            "type": "object",
            "required": ["credits", "currencyCode", "debits", "officeId", "transactionDate"],
            "properties": {
                "accountingRule": {"type": "integer"},
                "comments": {"type": "string"},
                "credits": {"type": "array", "items": {"$ref": "#/definitions/models.JournalLine"}},
                "currencyCode": {"type": "string"},
                "debits": {"type": "array", "items": {"$ref": "#/definitions/models.JournalLine"}},
                "officeId": {"type": "integer"},
                "paymentTypeId": {"type": "integer"},
                "referenceNumber": {"type": "string"},
                "transactionDate": {"type": "string"}
            }
        },
        "models.JournalLine": {
            "type": "object",
            "properties": {
                "amount": {"type": "string"},
                "comments": {"type": "string"},
                "glAccountId": {"type": "integer"}
            }
        },
        "models.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "models.LoginResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "refreshToken": {"type": "string"},
                "user": {"type": "object"}
            }
        },
        "models.MoveStageRequest": {
            "type": "object",
            "required": ["targetStageId"],
            "properties": {
                "override": {"type": "boolean"},
                "reason": {"type": "string"},
                "targetStageId": {"type": "integer"}
            }
        },
        "models.RefreshRequest": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "models.UssdStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "createLead": {"type": "boolean"},
                "notes": {"type": "string"},
                "status": {"type": "string"},
                "submitLoan": {"type": "boolean"}
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
	Title:            "loanops API",
	Description:      "Lead pipeline, USSD intake and core-banking proxy.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
