package api

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/files": {
            "get": {
                "summary": "List framed files",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            },
            "post": {
                "summary": "Write a JSON array of records as a new framed file",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{
                    "in": "body", "name": "records", "required": true,
                    "schema": {"type": "array", "items": {"$ref": "#/definitions/DeviceApps"}}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "Invalid record", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/files/{id}": {
            "get": {
                "summary": "Decode a framed file",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "File not found", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "422": {"description": "Corrupt file", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/files/{id}/load": {
            "post": {
                "summary": "Load a framed file into the record store",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "File not found", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "422": {"description": "Corrupt file", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/devices/{type}/{id}": {
            "get": {
                "summary": "Get the stored record of a device",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "type", "type": "string", "required": true},
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "Device not found", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "Device": {
            "type": "object",
            "required": ["id", "type"],
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "DeviceApps": {
            "type": "object",
            "required": ["device", "apps"],
            "properties": {
                "device": {"$ref": "#/definitions/Device"},
                "lat": {"type": "number"},
                "lon": {"type": "number"},
                "apps": {"type": "array", "items": {"type": "integer", "format": "uint32"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "devapps API",
	Description:      "Write, read and load framed DeviceApps files.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
