// Package docs registers the OpenAPI description served under
// /api/tours/swagger. Regenerate with `swag init -g cmd/main.go`.
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
        "/tours": {
            "get": {"tags": ["tours"], "summary": "List tours", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tours"], "summary": "Create a virtual tour", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Tour created"}, "400": {"description": "Invalid request format"}, "409": {"description": "Unknown owner"}, "422": {"description": "Validation failed"}}}
        },
        "/tours/{tourId}": {
            "get": {"tags": ["tours"], "summary": "Get a tour by ID", "responses": {"200": {"description": "OK"}, "404": {"description": "Tour not found"}}},
            "put": {"tags": ["tours"], "summary": "Rename a tour", "responses": {"200": {"description": "OK"}, "404": {"description": "Tour not found"}}},
            "delete": {"tags": ["tours"], "summary": "Delete a tour", "responses": {"204": {"description": "No Content"}, "404": {"description": "Tour not found"}}}
        },
        "/tours/{tourId}/nodes": {
            "get": {"tags": ["nodes"], "summary": "List nodes", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["nodes"], "summary": "Add a node", "responses": {"201": {"description": "Created"}, "404": {"description": "Tour not found"}}}
        },
        "/tours/{tourId}/nodes/nearby": {
            "get": {"tags": ["nodes"], "summary": "Find nodes near a GPS position", "responses": {"200": {"description": "OK"}}}
        },
        "/tours/{tourId}/nodes/{nodeId}": {
            "get": {"tags": ["nodes"], "summary": "Get a node", "responses": {"200": {"description": "OK"}, "404": {"description": "Node not found"}}},
            "put": {"tags": ["nodes"], "summary": "Update a node", "responses": {"200": {"description": "OK"}, "404": {"description": "Node not found"}}},
            "delete": {"tags": ["nodes"], "summary": "Delete a node", "responses": {"204": {"description": "No Content"}, "404": {"description": "Node not found"}}}
        },
        "/tours/{tourId}/start-node": {
            "put": {"tags": ["nodes"], "summary": "Set the start node", "responses": {"204": {"description": "No Content"}, "409": {"description": "Node is not part of the tour"}}}
        },
        "/tours/{tourId}/links": {
            "post": {"tags": ["links"], "summary": "Link two nodes", "responses": {"201": {"description": "Created"}, "409": {"description": "Endpoint is not part of the tour"}}}
        },
        "/tours/{tourId}/links/{linkId}": {
            "delete": {"tags": ["links"], "summary": "Remove a link", "responses": {"204": {"description": "No Content"}, "404": {"description": "Link not found"}}}
        },
        "/tours/{tourId}/nodes/{nodeId}/drawings": {
            "get": {"tags": ["drawings"], "summary": "Load node drawings", "responses": {"200": {"description": "OK"}, "404": {"description": "Node not found"}}},
            "put": {"tags": ["drawings"], "summary": "Save node drawings", "responses": {"200": {"description": "OK"}, "422": {"description": "Validation failed"}}}
        },
        "/tours/{tourId}/export": {
            "get": {"tags": ["export"], "summary": "Export a tour for the panorama viewer", "responses": {"200": {"description": "OK", "headers": {"X-Export-Warnings": {"type": "integer", "description": "Number of dropped references"}}}}}
        },
        "/tours/{tourId}/nodes/{nodeId}/panorama": {
            "post": {"tags": ["media"], "summary": "Upload a node panorama or thumbnail", "consumes": ["multipart/form-data"], "responses": {"200": {"description": "OK"}, "503": {"description": "Media storage not configured"}}}
        },
        "/tours/{tourId}/import": {
            "post": {"tags": ["media"], "summary": "Import a panorama archive", "consumes": ["multipart/form-data"], "responses": {"201": {"description": "Created"}, "503": {"description": "Media storage not configured"}}}
        },
        "/tours/cache/stats": {
            "get": {"tags": ["cache"], "summary": "Export cache statistics", "responses": {"200": {"description": "OK"}}}
        },
        "/tours/cache/clear": {
            "post": {"tags": ["cache"], "summary": "Clear the export cache", "responses": {"200": {"description": "Cache cleared"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Tour Service API",
	Description:      "Virtual tour graph, annotation sync and viewer export.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
