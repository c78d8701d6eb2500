package app

import (
	"database/sql"

	"github.com/mbolis/caps-forms/config"
	"github.com/mbolis/caps-forms/database"
	"github.com/mbolis/caps-forms/forms"
)

type App struct {
	*forms.Editor
	Renderer  *forms.Renderer
	Responses *forms.ResponseStore
	config.Config
}

// New wires the form services over a migrated database.
func New(db *sql.DB, cfg config.Config) App {
	store := database.NewStore(db)
	renderer := forms.NewRenderer(store)
	return App{
		Editor:    forms.NewEditor(store),
		Renderer:  renderer,
		Responses: forms.NewResponseStore(renderer, store),
		Config:    cfg,
	}
}
