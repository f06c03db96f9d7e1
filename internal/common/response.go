package common

import "github.com/gin-gonic/gin"

// Error codes used across the API. The HTTP status carries transport
// semantics; these codes identify the business outcome.
const (
	CodeOK                 = 0
	CodeInvalidJSON        = 10001
	CodeMissingField       = 10002
	CodeInvalidCredentials = 40102
	CodeUsernameTaken      = 40901
	CodeNotFound           = 40400
	CodeUnauthorized       = 40101
	CodeStorageUnavailable = 50001
	CodeRequestFailed      = 50201
	CodeTranscribeFailed   = 50202
	CodeMailFailed         = 50203
)

func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"code":    CodeOK,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
