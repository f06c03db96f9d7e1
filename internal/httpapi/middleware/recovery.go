package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orionai/orion/internal/common"
)

// Recovery converts panics into the standard error envelope instead of
// a bare 500. No failure is fatal to the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered: %v", r)
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
