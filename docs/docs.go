// Package docs holds the generated OpenAPI definition served by the
// Swagger UI route. Regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
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
        "/chat/general": {
            "post": {
                "description": "Streams the assistant's reply over server-sent events. Each event is a JSON object with a type (conversation_id, token, sources, usage, message_id, end, error) and a payload.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["Chat"],
                "summary": "Stream a general chat reply",
                "operationId": "chatGeneral",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Chat payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "SSE stream", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/domain-grounded": {
            "post": {
                "description": "Streams the assistant's reply over server-sent events, grounded in the selected knowledge configuration. Source citations arrive as a sources event before the stream ends.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["Chat"],
                "summary": "Stream a knowledge-grounded chat reply",
                "operationId": "chatGrounded",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Chat payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "SSE stream", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation or configuration not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/configurations": {
            "get": {
                "description": "Returns the active configurations the caller's roles grant, ordered by domain then key. Callers without any grants receive an empty list.",
                "produces": ["application/json"],
                "tags": ["Configurations"],
                "summary": "List knowledge configurations",
                "operationId": "listConfigurations",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"enum": ["staging", "production"], "type": "string", "description": "Filter by environment", "name": "environment", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListConfigurationsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/configurations/{id}": {
            "get": {
                "description": "Returns one active configuration if the caller's roles grant it. Ungranted configurations are indistinguishable from absent ones.",
                "produces": ["application/json"],
                "tags": ["Configurations"],
                "summary": "Get a knowledge configuration",
                "operationId": "getConfiguration",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "format": "uuid", "description": "Configuration ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConfigurationView"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Configuration not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/conversations": {
            "get": {
                "description": "Returns a page of the caller's conversations, most recently active first. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "List conversations (paginated)",
                "operationId": "listConversations",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"enum": ["general", "grounded"], "type": "string", "description": "Filter by service type", "name": "service_type", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListConversationsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/conversations/{id}": {
            "get": {
                "description": "Returns one of the caller's conversations and its messages in chronological order.",
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Get a conversation with its messages",
                "operationId": "getConversation",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "format": "uuid", "description": "Conversation ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConversationDetailResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Deletes one of the caller's conversations together with its messages and feedback.",
                "tags": ["Conversations"],
                "summary": "Delete a conversation",
                "operationId": "deleteConversation",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "format": "uuid", "description": "Conversation ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content", "schema": {"type": "string"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/messages/{id}/feedback": {
            "post": {
                "description": "Records a 1-5 rating (stored as up or down) with an optional comment. Repeated submissions for the same message overwrite the previous rating.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Feedback"],
                "summary": "Rate an assistant message",
                "operationId": "leaveFeedback",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "format": "uuid", "description": "Assistant message ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"description": "Feedback payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LeaveFeedbackRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.FeedbackResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "configuration_id": {"type": "string"},
                "conversation_id": {"type": "string", "example": "141add05-4415-4938-b5a1-17e0d3171aff"},
                "message": {"type": "string", "example": "What is our refund policy?"}
            }
        },
        "handlers.ConfigurationView": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "domain_key": {"type": "string"},
                "domain_name": {"type": "string"},
                "environment": {"type": "string"},
                "id": {"type": "string"},
                "key": {"type": "string"}
            }
        },
        "handlers.ConversationDetailResponse": {
            "type": "object",
            "properties": {
                "conversation": {"type": "object"},
                "messages": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "configuration not found"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.FeedbackResponse": {
            "type": "object",
            "properties": {
                "comment": {"type": "string"},
                "id": {"type": "string"},
                "message_id": {"type": "string"},
                "rating": {"type": "string"}
            }
        },
        "handlers.LeaveFeedbackRequest": {
            "type": "object",
            "required": ["rating"],
            "properties": {
                "comment": {"type": "string", "example": "Cited the wrong section"},
                "rating": {"type": "integer", "maximum": 5, "minimum": 1, "example": 4}
            }
        },
        "handlers.ListConfigurationsResponse": {
            "type": "object",
            "properties": {
                "configurations": {"type": "array", "items": {"$ref": "#/definitions/handlers.ConfigurationView"}}
            }
        },
        "handlers.ListConversationsResponse": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"type": "object"}},
                "pagination": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Chat Gateway API",
	Description:      "Role-scoped streaming chat gateway with knowledge-grounded answers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
