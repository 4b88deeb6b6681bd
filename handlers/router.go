package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)

	// Locally stored uploads
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))
	mux.Get("/healthz", MakeHandler(app, HandleHealth))

	mux.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(CSRFMiddleware)
		r.Use(ViewerMiddleware(app))

		// Live board channel
		r.Method(http.MethodGet, "/ws/boards/{slug}/", app.Sockets())

		r.Post("/auth/login", MakeHandler(app, HandleLogin))
		r.Post("/auth/logout", MakeHandler(app, HandleLogout))
		r.Get("/auth/me", MakeHandler(app, HandleWhoAmI))
		r.Get("/images/backgrounds", MakeHandler(app, HandleListBackgrounds))

		r.Post("/boards/", MakeHandler(app, HandleCreateBoard))
		r.Route("/boards/{slug}", func(r chi.Router) {
			r.Get("/", MakeHandler(app, HandleGetBoard))
			r.Post("/update", MakeHandler(app, HandleUpdateBoard))
			r.Post("/delete", MakeHandler(app, HandleDeleteBoard))
			r.Post("/lock", MakeHandler(app, HandleToggleBoardLock))
			r.Post("/preferences", MakeHandler(app, HandleSavePreferences))
			r.Post("/moderators", MakeHandler(app, HandleSetModerators))
			r.Post("/approve-all", MakeHandler(app, HandleApproveAll))
			r.Post("/delete-all", MakeHandler(app, HandleDeleteAll))
			r.Get("/images", MakeHandler(app, HandleListPostImages))
			r.Post("/images", MakeHandler(app, HandleUploadPostImage))
			r.Post("/topics/create", MakeHandler(app, HandleCreateTopic))

			r.Route("/topics/{topicID}", func(r chi.Router) {
				r.Get("/", MakeHandler(app, HandleGetTopic))
				r.Post("/update", MakeHandler(app, HandleUpdateTopic))
				r.Post("/delete", MakeHandler(app, HandleDeleteTopic))
				r.Post("/lock", MakeHandler(app, HandleToggleTopicLock))
				r.Post("/posts/create", MakeHandler(app, HandleCreatePost))

				r.Route("/posts/{postID}", func(r chi.Router) {
					r.Get("/", MakeHandler(app, HandleGetPost))
					r.Post("/update", MakeHandler(app, HandleUpdatePost))
					r.Post("/delete", MakeHandler(app, HandleDeletePost))
					r.Post("/approval", MakeHandler(app, HandleTogglePostApproval))
					r.Post("/react", MakeHandler(app, HandleReact))
					r.Post("/reactions/clear", MakeHandler(app, HandleClearReactions))
				})
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireStaff)
			r.Post("/backup", MakeHandler(app, HandleDatabaseBackup))
			r.Post("/images/background", MakeHandler(app, HandleUploadBackground))
			r.Post("/images/{imageID}/delete", MakeHandler(app, HandleDeleteImage))
		})
	})

	return mux
}
