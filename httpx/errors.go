package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/caps-forms/log"
	"github.com/mbolis/caps-forms/model"
)

type ErrorBody struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	writeJSON(w, r, http.StatusInternalServerError, ErrorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	writeJSON(w, r, status, ErrorBody{Error: http.StatusText(status)})
}

// WriteError maps errors from the forms layer to HTTP responses: 404 for
// missing entities, 422 for rejected input (with per-field reasons), 409
// for concurrent edits, and 500 for anything else.
func WriteError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var invalid *model.ValidationError
	switch {
	case errors.As(err, &invalid):
		log.Debugf("%s: %s", code, err)
		writeJSON(w, r, http.StatusUnprocessableEntity, ErrorBody{Error: invalid.Error(), Fields: invalid.Fields})
	case errors.Is(err, model.ErrNotFound):
		log.Debugf("%s: %s", code, err)
		writeJSON(w, r, http.StatusNotFound, ErrorBody{Error: err.Error()})
	case errors.Is(err, model.ErrConflict):
		log.Debugf("%s: %s", code, err)
		writeJSON(w, r, http.StatusConflict, ErrorBody{Error: err.Error()})
	default:
		LogInternalError(w, r, code, err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}
