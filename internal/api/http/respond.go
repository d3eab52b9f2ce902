package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mind-engage/satresults/internal/grading"
	"github.com/mind-engage/satresults/internal/marks"
	"github.com/mind-engage/satresults/internal/metrics"
	"github.com/mind-engage/satresults/internal/plan"
	"github.com/mind-engage/satresults/internal/users"
)

// maxBody caps request bodies; CSV uploads included.
const maxBody = 4 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return &badRequest{msg: "bad json: " + err.Error()}
	}
	return validate.Struct(dst)
}

type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// fail maps domain errors to HTTP statuses. Unexpected errors are logged and
// hidden behind a generic 500.
func fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		ve  validator.ValidationErrors
		br  *badRequest
		ug  *grading.UnknownGradeError
		fe  *marks.FormulaError
		ebe *marks.EmptyBatchError
	)
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve))
		for _, f := range ve {
			fields[f.Namespace()] = f.Tag()
		}
		writeError(w, http.StatusBadRequest, "validation failed", fields)
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg, nil)
	case errors.As(err, &ug):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), map[string]string{"grade": ug.Grade, "scale": ug.Scale})
	case errors.As(err, &fe):
		metrics.FormulaFailures.Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{"formula": fe.Formula, "pos": fe.Pos, "reason": fe.Reason})
	case errors.As(err, &ebe):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]any{"received": ebe.Received, "skipped": ebe.Skipped})
	case errors.Is(err, plan.ErrCourseNotFound), errors.Is(err, marks.ErrNotFound), errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, plan.ErrInvalidCredits):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil)
	}
}
