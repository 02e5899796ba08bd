package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

// Abort records err for ErrorHandler and stops the chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler turns the last error recorded on the context into the JSON
// envelope. Errors it does not recognise are logged and hidden behind a 500.
func ErrorHandler(logger zerolog.Logger, development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr := Translate(err); appErr != nil {
			c.JSON(appErr.StatusCode, gin.H{
				"status":  appErr.Status,
				"message": appErr.Message,
			})
			return
		}

		logger.Error().
			Err(err).
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")

		body := gin.H{
			"status":  "error",
			"message": "Something went wrong!",
		}
		if development {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// Translate maps known error shapes to operational errors. It returns nil
// for anything that should be reported as an internal error.
func Translate(err error) *utils.AppError {
	var (
		appErr     *utils.AppError
		invalidID  *store.InvalidIDError
		verr       *models.ValidationError
		fieldErrs  validator.ValidationErrors
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		timeErr    *time.ParseError
		bodyTooBig *http.MaxBytesError
	)

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &invalidID):
		return utils.BadRequest(fmt.Sprintf("Invalid %s: %s.", invalidID.Path, invalidID.Value))
	case errors.Is(err, store.ErrNotFound):
		return utils.NotFound("No document found with that ID")
	case mongo.IsDuplicateKeyError(err):
		return duplicateKey(err)
	case errors.As(err, &verr):
		msgs := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			msgs = append(msgs, f.Message)
		}
		return invalidInput(msgs)
	case errors.As(err, &fieldErrs):
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return invalidInput(msgs)
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return utils.BadRequest("Invalid request body")
	case errors.As(err, &typeErr):
		return utils.BadRequest(fmt.Sprintf("Invalid %s: expected %s.", typeErr.Field, typeErr.Type))
	case errors.As(err, &timeErr):
		return utils.BadRequest(fmt.Sprintf("Invalid date: %s.", strings.Trim(timeErr.Value, `"`)))
	case errors.As(err, &bodyTooBig):
		return utils.NewAppError("Request body too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, jwt.ErrTokenExpired):
		return utils.Unauthorized("Your token has expired! Please log in again.")
	case errors.Is(err, utils.ErrInvalidToken):
		return utils.Unauthorized("Invalid token! Please log in again.")
	}
	return nil
}

func invalidInput(msgs []string) *utils.AppError {
	return utils.BadRequest("Invalid input data. " + strings.Join(msgs, ". ") + ".")
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{ ?([\w.]+): "?([^"}]*?)"? ?\}`)

func duplicateKey(err error) *utils.AppError {
	field, value := "", ""
	if m := dupKeyPattern.FindStringSubmatch(err.Error()); m != nil {
		field, value = m[1], m[2]
	}
	if field == "email" {
		return utils.BadRequest("This email address is already registered")
	}
	return utils.BadRequest(fmt.Sprintf("Duplicate field %s: %s. Please use another value!", field, value))
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please provide a valid email"
	case "eqfield":
		if field == "passwordConfirm" {
			return "Passwords are not the same"
		}
		return fmt.Sprintf("%s must equal %s", field, lowerFirst(fe.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
