package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Response 成功响应
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse 失败响应
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

// ErrorHandler 将 echo 的错误（404、405、panic 恢复等）统一为失败响应
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := err.Error()
	if he, isHTTPError := err.(*echo.HTTPError); isHTTPError {
		status = he.Code
		if m, isString := he.Message.(string); isString {
			message = m
		} else {
			message = http.StatusText(he.Code)
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = fail(c, status, message)
}
