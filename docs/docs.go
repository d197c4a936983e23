// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package docs registers the Coursepay OpenAPI document with swag so that
// http-swagger can serve it at /swagger/doc.json.
//
// The template mirrors the @ annotations on the handlers in internal/api and
// the general API info in cmd/server/docs.go. Regenerate it with
// "swag init -g cmd/server/docs.go" after changing either.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"license": {
			"name": "AGPL-3.0-or-later",
			"url": "https://www.gnu.org/licenses/agpl-3.0.html"
		},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/admin/audit": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Admin"
				],
				"summary": "Query the audit trail",
				"parameters": [
					{
						"type": "string",
						"description": "Comma-separated event types",
						"name": "type",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Gateway reference",
						"name": "gateway_ref",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Actor ID",
						"name": "actor_id",
						"in": "query"
					},
					{
						"type": "string",
						"description": "RFC 3339 lower bound",
						"name": "since",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Maximum events (1-1000)",
						"name": "limit",
						"in": "query",
						"default": 100
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"400": {
						"description": "Invalid filter",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/admin/provisioning-failures": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Admin"
				],
				"summary": "List provisioning failures",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "array",
											"items": {
												"$ref": "#/definitions/models.ProvisioningFailure"
											}
										}
									}
								}
							]
						}
					},
					"503": {
						"description": "Remediation queue not configured",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/admin/provisioning-failures/{ref}/resolve": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Admin"
				],
				"summary": "Resolve a provisioning failure",
				"parameters": [
					{
						"type": "string",
						"description": "Gateway reference",
						"name": "ref",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"404": {
						"description": "Order not found",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"409": {
						"description": "Order not completed",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"503": {
						"description": "Provisioning unavailable",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/health/": {
			"get": {
				"description": "Ledger reachability, order counts by status, event and provisioning breaker states. Always 200; read status for degraded.",
				"produces": [
					"application/json"
				],
				"tags": [
					"Health"
				],
				"summary": "Get service health",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/models.HealthStatus"
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/health/live": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Health"
				],
				"summary": "Liveness check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/health/ready": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Health"
				],
				"summary": "Readiness check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"503": {
						"description": "Order ledger unavailable",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/orders": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Orders"
				],
				"summary": "List orders",
				"parameters": [
					{
						"type": "string",
						"description": "Payer to list (admin only)",
						"name": "payer_id",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Maximum orders (1-500)",
						"name": "limit",
						"in": "query",
						"default": 50
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/models.OrderHistory"
										}
									}
								}
							]
						}
					},
					"403": {
						"description": "Another payer's history",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Opens a pending order at the catalog price. amount and currency are optional quotes and are rejected when they differ from the catalog.",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Orders"
				],
				"summary": "Create an order",
				"parameters": [
					{
						"description": "Product to buy",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/models.CreateOrderRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/models.CheckoutResponse"
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"404": {
						"description": "Unknown product",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"409": {
						"description": "Already owned or price mismatch",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/orders/{ref}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Orders"
				],
				"summary": "Get an order",
				"parameters": [
					{
						"type": "string",
						"description": "Gateway reference",
						"name": "ref",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/models.Order"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Order not found",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/orders/{ref}/retry": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Orders"
				],
				"summary": "Retry a failed order",
				"parameters": [
					{
						"type": "string",
						"description": "Gateway reference of the failed order",
						"name": "ref",
						"in": "path",
						"required": true
					},
					{
						"description": "Optional overrides",
						"name": "request",
						"in": "body",
						"schema": {
							"$ref": "#/definitions/models.RetryOrderRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/models.CheckoutResponse"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Order not found",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					},
					"409": {
						"description": "Order not retryable",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		},
		"/payments/return": {
			"get": {
				"description": "Verifies the signature for display only and redirects to the frontend result page.",
				"tags": [
					"Payments"
				],
				"summary": "Payer return from the hosted page",
				"responses": {
					"302": {
						"description": "Redirect to the frontend result page"
					}
				}
			}
		},
		"/payments/webhook": {
			"post": {
				"description": "Signed IPN from the payment gateway. Always answers 200 with {RspCode, Message}.",
				"consumes": [
					"application/x-www-form-urlencoded"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Payments"
				],
				"summary": "Gateway settlement notification",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/settlement.Ack"
						}
					}
				}
			}
		},
		"/products": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Catalog"
				],
				"summary": "List catalog products",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "array",
											"items": {
												"$ref": "#/definitions/catalog.Product"
											}
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/products/{id}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"Catalog"
				],
				"summary": "Get a catalog product",
				"parameters": [
					{
						"type": "string",
						"description": "Product ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.APIResponse"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"$ref": "#/definitions/api.ProductInfo"
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Product not found",
						"schema": {
							"$ref": "#/definitions/models.APIResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"api.ProductInfo": {
			"type": "object",
			"properties": {
				"currency": {
					"type": "string"
				},
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"price": {
					"type": "number"
				},
				"purchases": {
					"type": "integer"
				}
			}
		},
		"catalog.Product": {
			"type": "object",
			"properties": {
				"currency": {
					"type": "string"
				},
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"price": {
					"type": "number"
				}
			}
		},
		"models.APIError": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"details": {
					"type": "object",
					"additionalProperties": true
				},
				"message": {
					"type": "string"
				}
			}
		},
		"models.APIResponse": {
			"type": "object",
			"properties": {
				"data": {},
				"error": {
					"$ref": "#/definitions/models.APIError"
				},
				"metadata": {
					"$ref": "#/definitions/models.Metadata"
				},
				"status": {
					"type": "string"
				}
			}
		},
		"models.CheckoutResponse": {
			"type": "object",
			"properties": {
				"order": {
					"$ref": "#/definitions/models.Order"
				},
				"payment_url": {
					"type": "string"
				}
			}
		},
		"models.CreateOrderRequest": {
			"type": "object",
			"properties": {
				"amount": {
					"type": "number",
					"maximum": 1000000000
				},
				"bank_code": {
					"type": "string",
					"maxLength": 20
				},
				"currency": {
					"type": "string"
				},
				"description": {
					"type": "string",
					"maxLength": 255
				},
				"locale": {
					"type": "string",
					"enum": [
						"vn",
						"en"
					]
				},
				"payer_email": {
					"type": "string",
					"maxLength": 254
				},
				"payer_name": {
					"type": "string",
					"maxLength": 100
				},
				"payment_method": {
					"type": "string",
					"maxLength": 32
				},
				"product_id": {
					"type": "string",
					"maxLength": 64
				}
			},
			"required": [
				"product_id"
			]
		},
		"models.HealthStatus": {
			"type": "object",
			"properties": {
				"database": {
					"type": "boolean"
				},
				"events_state": {
					"type": "string"
				},
				"gateway_mode": {
					"type": "string"
				},
				"journal_ready": {
					"type": "boolean"
				},
				"orders": {
					"type": "object",
					"additionalProperties": {
						"type": "integer"
					}
				},
				"provisioning_state": {
					"type": "string"
				},
				"status": {
					"type": "string"
				}
			}
		},
		"models.Metadata": {
			"type": "object",
			"properties": {
				"timestamp": {
					"type": "string"
				}
			}
		},
		"models.Order": {
			"type": "object",
			"properties": {
				"amount": {
					"type": "number"
				},
				"created_at": {
					"type": "string"
				},
				"currency": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"gateway_metadata": {
					"type": "object",
					"additionalProperties": {
						"type": "string"
					}
				},
				"gateway_ref": {
					"type": "string"
				},
				"id": {
					"type": "string"
				},
				"payer_id": {
					"type": "string"
				},
				"payment_method": {
					"type": "string"
				},
				"product_id": {
					"type": "string"
				},
				"retry_attempt": {
					"type": "integer"
				},
				"settled_at": {
					"type": "string"
				},
				"status": {
					"type": "string",
					"enum": [
						"pending",
						"completed",
						"failed"
					]
				},
				"transaction_id": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"models.OrderHistory": {
			"type": "object",
			"properties": {
				"orders": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/models.Order"
					}
				},
				"purchases": {
					"type": "integer"
				}
			}
		},
		"models.ProvisioningFailure": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"failed_at": {
					"type": "string"
				},
				"gateway_ref": {
					"type": "string"
				},
				"order_id": {
					"type": "string"
				},
				"payer_id": {
					"type": "string"
				},
				"product_id": {
					"type": "string"
				}
			}
		},
		"models.RetryOrderRequest": {
			"type": "object",
			"properties": {
				"bank_code": {
					"type": "string",
					"maxLength": 20
				},
				"locale": {
					"type": "string",
					"enum": [
						"vn",
						"en"
					]
				}
			}
		},
		"settlement.Ack": {
			"type": "object",
			"properties": {
				"Message": {
					"type": "string"
				},
				"RspCode": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Bearer JWT: \"Bearer <token>\".",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	},
	"tags": [
		{
			"description": "Checkout, retry and order history for the authenticated payer",
			"name": "Orders"
		},
		{
			"description": "Products and their prices",
			"name": "Catalog"
		},
		{
			"description": "Gateway-facing settlement webhook and payer return",
			"name": "Payments"
		},
		{
			"description": "Provisioning remediation and audit trail",
			"name": "Admin"
		},
		{
			"description": "Liveness, readiness and dependency health",
			"name": "Health"
		}
	]
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Coursepay API",
	Description:      "Course purchase checkout, gateway settlement and remediation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
