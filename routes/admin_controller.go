package routes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/caps-forms/app"
	"github.com/mbolis/caps-forms/httpx"
	"github.com/mbolis/caps-forms/log"
	"github.com/mbolis/caps-forms/model"
)

type titleBody struct {
	Title string `json:"title"`
}

type orderBody struct {
	Order []string `json:"order"`
}

// ifMatch reads the draft version a client last saw from If-Match.
// A missing header gives 0, which skips the version check.
func ifMatch(r *http.Request) (int, bool) {
	tag := r.Header.Get("If-Match")
	if tag == "" {
		return 0, true
	}
	tag = strings.Trim(strings.TrimPrefix(tag, "W/"), `"`)
	version, err := strconv.Atoi(tag)
	if err != nil || version < 1 {
		return 0, false
	}
	return version, true
}

func setETag(w http.ResponseWriter, version int) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(version)))
}

func CreateSchema(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := titleBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		draft, err := app.CreateSchema(r.Context(), body.Title)
		if err != nil {
			httpx.WriteError(w, r, "create_schema", err)
			return
		}

		log.WithFields(log.Fields{"schema": draft.SchemaID, "title": draft.Title}).Info("schema created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, draft)
	}
}

func ListSchemas(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schemas, err := app.ListSchemas(r.Context())
		if err != nil {
			httpx.WriteError(w, r, "list_schemas", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"schemas": schemas,
		})
	}
}

func GetDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, err := app.Draft(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, "get_draft", err)
			return
		}

		setETag(w, draft.Version)
		render.JSON(w, r, draft)
	}
}

func RenameSchema(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, ok := ifMatch(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}

		body := titleBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		draft, err := app.RenameSchema(r.Context(), chi.URLParam(r, "id"), version, body.Title)
		if err != nil {
			httpx.WriteError(w, r, "rename_schema", err)
			return
		}

		setETag(w, draft.Version)
		render.JSON(w, r, draft)
	}
}

func AddSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := model.SectionSpec{}
		err := render.DecodeJSON(r.Body, &spec)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		section, err := app.AddSection(r.Context(), chi.URLParam(r, "id"), spec)
		if err != nil {
			httpx.WriteError(w, r, "add_section", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, section)
	}
}

func UpdateSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, ok := ifMatch(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}

		spec := model.SectionSpec{}
		err := render.DecodeJSON(r.Body, &spec)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		section, err := app.UpdateSection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), version, spec)
		if err != nil {
			httpx.WriteError(w, r, "update_section", err)
			return
		}

		render.JSON(w, r, section)
	}
}

func RemoveSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := app.RemoveSection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"))
		if err != nil {
			httpx.WriteError(w, r, "remove_section", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ReorderSections(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := orderBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err = app.ReorderSections(r.Context(), chi.URLParam(r, "id"), body.Order)
		if err != nil {
			httpx.WriteError(w, r, "reorder_sections", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func AddField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := model.FieldSpec{}
		err := render.DecodeJSON(r.Body, &spec)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		field, err := app.AddField(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), spec)
		if err != nil {
			httpx.WriteError(w, r, "add_field", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, field)
	}
}

func UpdateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, ok := ifMatch(r)
		if !ok {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}

		spec := model.FieldSpec{}
		err := render.DecodeJSON(r.Body, &spec)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		field, err := app.UpdateField(r.Context(),
			chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), chi.URLParam(r, "fieldId"),
			version, spec,
		)
		if err != nil {
			httpx.WriteError(w, r, "update_field", err)
			return
		}

		render.JSON(w, r, field)
	}
}

func RemoveField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := app.RemoveField(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), chi.URLParam(r, "fieldId"))
		if err != nil {
			httpx.WriteError(w, r, "remove_field", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ReorderFields(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := orderBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err = app.ReorderFields(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), body.Order)
		if err != nil {
			httpx.WriteError(w, r, "reorder_fields", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func PublishRevision(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, err := app.PublishRevision(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, "publish_revision", err)
			return
		}

		log.WithFields(log.Fields{"schema": schema.ID, "revision": schema.Revision}).Info("revision published")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, schema)
	}
}

func ListRevisions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		revisions, err := app.Revisions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, "list_revisions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"revisions": revisions,
		})
	}
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses, err := app.Responses.List(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, "list_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

func GetResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, err := app.Responses.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, "get_response", err)
			return
		}

		render.JSON(w, r, response)
	}
}
