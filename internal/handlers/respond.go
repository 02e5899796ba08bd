package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emedical/clinic-api/internal/middleware"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

func respond(c *gin.Context, code int, data gin.H) {
	c.JSON(code, gin.H{"status": "success", "data": data})
}

func respondList[T any](c *gin.Context, key string, items []T) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": len(items),
		"data":    gin.H{key: items},
	})
}

func respondDeleted(c *gin.Context) {
	c.JSON(http.StatusNoContent, gin.H{"status": "success", "data": nil})
}

func fail(c *gin.Context, err error) {
	middleware.Abort(c, err)
}

// bindJSON decodes the body into obj and records any decoding or binding
// error for the error handler.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// orNotFound replaces store.ErrNotFound with a 404 carrying msg.
func orNotFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.NotFound(msg)
	}
	return err
}

func rejectPasswordFields(password, confirm *string) error {
	if (password != nil && *password != "") || (confirm != nil && *confirm != "") {
		return utils.BadRequest("This route is not for password updates. Please use /updateMyPassword")
	}
	return nil
}
