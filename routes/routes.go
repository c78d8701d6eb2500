package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/caps-forms/app"
	"github.com/mbolis/caps-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)
	root.Use(middlewares.Identity)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/forms/{id}/revisions/{rev}", RenderForm(app))
	api.Post("/forms/{id}/revisions/{rev}/validate", ValidateSubmission(app))
	api.Post("/forms/{id}/revisions/{rev}/responses", SubmitResponse(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.EnforceRoles))

		// schema drafts
		r.Post("/schemas", CreateSchema(app))
		r.Get("/schemas", ListSchemas(app))
		r.Get("/schemas/{id}", GetDraft(app))
		r.Put("/schemas/{id}", RenameSchema(app))

		r.Post("/schemas/{id}/sections", AddSection(app))
		r.Put("/schemas/{id}/section-order", ReorderSections(app))
		r.Put("/schemas/{id}/sections/{sectionId}", UpdateSection(app))
		r.Delete("/schemas/{id}/sections/{sectionId}", RemoveSection(app))

		r.Post("/schemas/{id}/sections/{sectionId}/fields", AddField(app))
		r.Put("/schemas/{id}/sections/{sectionId}/field-order", ReorderFields(app))
		r.Put("/schemas/{id}/sections/{sectionId}/fields/{fieldId}", UpdateField(app))
		r.Delete("/schemas/{id}/sections/{sectionId}/fields/{fieldId}", RemoveField(app))

		// revisions and captured responses
		r.Post("/schemas/{id}/revisions", PublishRevision(app))
		r.Get("/schemas/{id}/revisions", ListRevisions(app))
		r.Get("/schemas/{id}/responses", ListResponses(app))
		r.Get("/responses/{id}", GetResponse(app))
	})

	return api
}
