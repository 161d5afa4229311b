package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/forms"
	"schoolsite/pkg/logger"
)

// Fail answers with the status matching err. CMS failures keep the
// backend's status for 4xx and become 502 otherwise.
func Fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, cmsclient.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	status := http.StatusInternalServerError
	if cmsclient.IsBackend(err) {
		status = cmsclient.StatusOf(err)
	}
	logger.FromContext(c.Request.Context()).Error(msg, "err", err, "status", status)
	c.JSON(status, gin.H{"error": msg})
}

func ParseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Invalid answers 400 with the per-field messages when err is a form
// error. It reports whether it wrote a response.
func Invalid(c *gin.Context, err error) bool {
	var fe forms.FieldErrors
	if !errors.As(err, &fe) {
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form", "fields": fe})
	return true
}

// Logger returns the request scoped logger.
func Logger(c *gin.Context) logger.Logger {
	return logger.FromContext(c.Request.Context())
}
