package routes

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/caps-forms/app"
	"github.com/mbolis/caps-forms/httpx"
	"github.com/mbolis/caps-forms/log"
)

type submissionBody struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

// revisionParam reads the {rev} URL parameter; "latest" maps to 0.
func revisionParam(r *http.Request) (int, bool) {
	param := chi.URLParam(r, "rev")
	if param == "latest" {
		return 0, true
	}
	rev, err := strconv.Atoi(param)
	if err != nil || rev < 1 {
		return 0, false
	}
	return rev, true
}

func RenderForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rev, ok := revisionParam(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.rev")
			return
		}

		schema, err := app.Renderer.Render(r.Context(), chi.URLParam(r, "id"), rev)
		if err != nil {
			httpx.WriteError(w, r, "render_form", err)
			return
		}

		render.JSON(w, r, schema)
	}
}

func ValidateSubmission(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rev, ok := revisionParam(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.rev")
			return
		}

		body := submissionBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		answers, err := app.Renderer.ValidateSubmission(r.Context(), chi.URLParam(r, "id"), rev, body.Answers)
		if err != nil {
			httpx.WriteError(w, r, "validate_submission", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"answers": answers,
		})
	}
}

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rev, ok := revisionParam(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.rev")
			return
		}

		body := submissionBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		response, err := app.Responses.Submit(r.Context(), chi.URLParam(r, "id"), rev, body.Answers)
		if err != nil {
			httpx.WriteError(w, r, "submit_response", err)
			return
		}

		log.WithFields(log.Fields{
			"schema":   response.SchemaID,
			"revision": response.SchemaRevision,
			"response": response.ID,
		}).Info("response captured")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": response.ID,
		})
	}
}
