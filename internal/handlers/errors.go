package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
)

// ErrorDetail is one entry of the {"detail": [...]} error body.
type ErrorDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func abortWithDetail(c *gin.Context, status int, details ...ErrorDetail) {
	c.AbortWithStatusJSON(status, gin.H{"detail": details})
}

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:     http.StatusNotFound,
	services.KindValidation:   http.StatusBadRequest,
	services.KindConflict:     http.StatusConflict,
	services.KindForbidden:    http.StatusForbidden,
	services.KindUnauthorized: http.StatusUnauthorized,
}

// respondError writes err as a structured error response. Anything that is
// not an expected domain error is logged and hidden behind a generic 500.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		if status, ok := kindStatus[svcErr.Kind]; ok {
			if svcErr.Kind == services.KindUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			loc := svcErr.Loc
			if loc == nil {
				loc = []string{}
			}
			abortWithDetail(c, status, ErrorDetail{Loc: loc, Msg: svcErr.Message, Type: string(svcErr.Kind)})
			return
		}
	}

	log.WithError(err).WithFields(map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"kind":   string(services.KindOf(err)),
	}).Error("Request failed")

	abortWithDetail(c, http.StatusInternalServerError, ErrorDetail{
		Loc:  []string{},
		Msg:  "Internal server error",
		Type: string(services.KindInternal),
	})
}

// respondBindError reports request validation failures with 422, one detail
// per offending field.
func respondBindError(c *gin.Context, source string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ErrorDetail{
				Loc:  []string{source, toSnake(fe.Field())},
				Msg:  validationMessage(fe),
				Type: "value_error",
			})
		}
		abortWithDetail(c, http.StatusUnprocessableEntity, details...)
		return
	}
	abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
		Loc:  []string{source},
		Msg:  err.Error(),
		Type: "value_error",
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "ensure this value has at least " + fe.Param() + " characters"
	case "max":
		return "ensure this value has at most " + fe.Param() + " characters"
	case "datetime":
		return "invalid date, expected YYYY-MM-DD"
	default:
		return "invalid value"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
			Loc:  []string{"path", name},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		})
		return 0, false
	}
	return uint(id), true
}

// queryInt parses an optional integer query parameter within [min, max].
func queryInt(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
			Loc:  []string{"query", name},
			Msg:  "ensure this value is between " + strconv.Itoa(min) + " and " + strconv.Itoa(max),
			Type: "value_error.number",
		})
		return 0, false
	}
	return v, true
}
