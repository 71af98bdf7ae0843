package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrol Pay API",
        "description": "Paid course enrolment over an Authorize.Net-compatible gateway",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "https"
    ],
    "tags": [
        {"name": "Purchase", "description": "Payment form submission"},
        {"name": "Orders", "description": "Purchase history and receipts"},
        {"name": "Instances", "description": "Enrol instance configuration"},
        {"name": "Reconcile", "description": "Enrolment expiry reconciliation"}
    ],
    "paths": {
        "/purchase": {
            "post": {
                "tags": ["Purchase"],
                "summary": "Submit a course payment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PurchaseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"},
                    "403": {"description": "Method disabled, window closed or course full"},
                    "409": {"description": "Already enrolled"},
                    "412": {"description": "Secure connection required"}
                }
            }
        },
        "/orders": {
            "get": {
                "tags": ["Orders"],
                "summary": "List payment orders",
                "parameters": [
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": ["Orders"],
                "summary": "Get one order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the order owner"},
                    "404": {"description": "Order not found"}
                }
            }
        },
        "/orders/{id}/receipt": {
            "get": {
                "tags": ["Orders"],
                "summary": "Download the payment receipt PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "409": {"description": "Order not settled"}
                }
            }
        },
        "/instances/{id}": {
            "get": {
                "tags": ["Instances"],
                "summary": "Get an enrol instance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Instances"],
                "summary": "Update enrol instance configuration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateInstanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"},
                    "403": {"description": "Payment manager role required"}
                }
            }
        },
        "/reconcile": {
            "post": {
                "tags": ["Reconcile"],
                "summary": "Run the enrolment expiry reconciliation",
                "parameters": [
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "verbose", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Run finished with failures"}
                }
            }
        }
    },
    "definitions": {
        "PurchaseRequest": {
            "type": "object",
            "required": ["instance_id", "first_name", "last_name", "address", "city", "zip", "country", "email", "card_number", "card_code", "expiry_month", "expiry_year"],
            "properties": {
                "instance_id": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "address": {"type": "string"},
                "city": {"type": "string"},
                "state": {"type": "string"},
                "zip": {"type": "string"},
                "country": {"type": "string"},
                "email": {"type": "string"},
                "card_number": {"type": "string"},
                "card_code": {"type": "string"},
                "expiry_month": {"type": "integer"},
                "expiry_year": {"type": "integer"}
            }
        },
        "UpdateInstanceRequest": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["ENABLED", "DISABLED"]},
                "cost": {"type": "string"},
                "currency": {"type": "string"},
                "role_id": {"type": "string"},
                "enrol_period": {"type": "integer"},
                "enrol_start_date": {"type": "integer"},
                "enrol_end_date": {"type": "integer"},
                "long_time_no_see": {"type": "integer"},
                "max_enrolled": {"type": "integer"},
                "expiry_notify": {"type": "string", "enum": ["NONE", "ENROLLER", "ALL"]},
                "expiry_threshold": {"type": "integer"},
                "expired_action": {"type": "string", "enum": ["KEEP", "SUSPEND", "UNENROL"]},
                "welcome_mail": {"type": "boolean"}
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
