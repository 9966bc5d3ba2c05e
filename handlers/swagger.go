package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>hojaruta API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "hojaruta", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Grant": { "type": "object", "properties": { "access_token": {"type":"string"}, "refresh_token": {"type":"string","description":"omitted for X-Client-Type: web"}, "must_change_password": {"type":"boolean"}, "expires_in": {"type":"integer"}, "user": {"type":"object"} } },
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "code": {"type":"string"}, "details": {"type":"string"} } }
    }
  },
  "paths": {
    "/auth/login": {
      "post": {
        "summary": "Password login",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"identifier":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "grant" }, "401": { "description": "invalid credentials" }, "403": { "description": "pending approval" } }
      }
    },
    "/auth/register": {
      "post": { "summary": "Register a driver account (pending approval)", "responses": { "201": { "description": "pending" }, "409": { "description": "identifier taken" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate the refresh cookie and return a new access token", "responses": { "200": { "description": "grant" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/mobile/refresh": {
      "post": { "summary": "Rotate a body refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "grant" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Invalidate the refresh session and blacklist the access token", "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/forgot-password": {
      "post": { "summary": "Request a password reset", "responses": { "202": { "description": "accepted" } } }
    },
    "/me": {
      "get": { "summary": "Current user", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "401": { "description": "unauthorized" } } }
    },
    "/me/change-password": {
      "post": { "summary": "Change own password", "security": [{"bearer": []}], "responses": { "200": { "description": "changed" }, "400": { "description": "current password incorrect" } } }
    },
    "/admin/users/{id}/approve": {
      "post": { "summary": "Approve a pending account", "security": [{"bearer": []}], "responses": { "200": { "description": "approved" }, "403": { "description": "not an admin" } } }
    },
    "/route-sheets": {
      "get": { "summary": "List own route sheets", "security": [{"bearer": []}], "responses": { "200": { "description": "list" } } },
      "post": { "summary": "Create a route sheet", "security": [{"bearer": []}], "responses": { "201": { "description": "created" } } }
    },
    "/route-sheets/{id}": {
      "get": { "summary": "Get a route sheet", "security": [{"bearer": []}], "responses": { "200": { "description": "route sheet" }, "404": { "description": "not found" } } }
    },
    "/route-sheets/{id}/pdf": {
      "get": { "summary": "Download the stored PDF", "security": [{"bearer": []}], "responses": { "200": { "description": "application/pdf" }, "404": { "description": "not found" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
