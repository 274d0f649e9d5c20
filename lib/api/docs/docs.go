// Package docs holds the OpenAPI description served under /swagger/.
// Regenerate with: go tool swag init -g lib/api/api.go -o lib/api/docs
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
        "/api/caps": {
            "get": {
                "produces": ["application/json"],
                "tags": ["source"],
                "summary": "Negotiated output format",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/websource.Caps"}}
                }
            }
        },
        "/api/frame": {
            "get": {
                "produces": ["image/jpeg", "image/png"],
                "tags": ["media"],
                "summary": "fetch the last frame sent to the sinks",
                "responses": {
                    "200": {"description": "OK"},
                    "424": {"description": "No frame was produced yet", "schema": {"type": "string"}}
                }
            }
        },
        "/api/frame/{format}": {
            "get": {
                "produces": ["image/jpeg", "image/png"],
                "tags": ["media"],
                "summary": "fetch the last frame sent to the sinks",
                "parameters": [
                    {"enum": ["jpeg", "png"], "type": "string", "description": "The image type to return", "name": "format", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "The requested image format is not supported", "schema": {"type": "string"}},
                    "424": {"description": "No frame was produced yet", "schema": {"type": "string"}},
                    "500": {"description": "The frame could not be encoded", "schema": {"type": "string"}}
                }
            }
        },
        "/api/kill": {
            "post": {
                "tags": ["base"],
                "summary": "Shut the process down",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/properties": {
            "get": {
                "produces": ["application/json"],
                "tags": ["source"],
                "summary": "Get the page url and frame size",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/websource.Properties"}}
                }
            },
            "put": {
                "description": "Only allowed while the source is stopped",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["source"],
                "summary": "Change the page url and frame size",
                "parameters": [
                    {"description": "New properties", "name": "properties", "in": "body", "required": true, "schema": {"$ref": "#/definitions/websource.Properties"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/websource.Properties"}},
                    "400": {"description": "The properties are invalid", "schema": {"type": "string"}},
                    "409": {"description": "The source is running", "schema": {"type": "string"}}
                }
            }
        },
        "/api/start": {
            "post": {
                "tags": ["source"],
                "summary": "Start rendering the page",
                "responses": {
                    "200": {"description": "OK"},
                    "500": {"description": "The browser session could not be created", "schema": {"type": "string"}}
                }
            }
        },
        "/api/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["base"],
                "summary": "Frame rate and session statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/stats.Snapshot"}}
                }
            }
        },
        "/api/stop": {
            "post": {
                "tags": ["source"],
                "summary": "Stop rendering the page",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/ws": {
            "get": {
                "tags": ["base"],
                "summary": "Open websocket for realtime status information",
                "parameters": [
                    {"type": "string", "description": "websocket", "name": "Upgrade", "in": "header", "required": true}
                ],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/prof": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["debug"],
                "summary": "Record a CPU profile for 10 seconds",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "stats.Snapshot": {
            "type": "object",
            "properties": {
                "fps": {"type": "integer"},
                "frame_interval_ms": {"type": "number"},
                "frames": {"type": "integer"},
                "running": {"type": "boolean"},
                "uptime": {"type": "number"},
                "ws_clients": {"type": "integer"}
            }
        },
        "websource.Caps": {
            "type": "object",
            "properties": {
                "format": {"type": "string"},
                "framerate_den": {"type": "integer"},
                "framerate_num": {"type": "integer"},
                "height": {"type": "integer"},
                "live": {"type": "boolean"},
                "par_den": {"type": "integer"},
                "par_num": {"type": "integer"},
                "seekable": {"type": "boolean"},
                "width": {"type": "integer"}
            }
        },
        "websource.Properties": {
            "type": "object",
            "properties": {
                "height": {"type": "integer"},
                "url": {"type": "string"},
                "width": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "webrendersrc",
	Description:      "Control API for the web page video source",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
