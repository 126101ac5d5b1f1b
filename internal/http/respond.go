package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const msgServerError = "Something went wrong. Please try again later."

// respond escribe el sobre {success, message} comun a todos los endpoints.
func respond(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"success": status < http.StatusBadRequest}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
	c.Abort()
}

// bindJSON decodifica y valida el body; responde 400 y devuelve false si falla.
func bindJSON(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
