package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/handlers"
	"github.com/muraselchat/murasel-backend/internal/middleware"
)

// Deps collects everything the route table wires together.
type Deps struct {
	Auth           *auth.Auth
	AllowedOrigins []string

	AuthHandler     *handlers.AuthHandler
	MessageHandler  *handlers.MessageHandler
	GroupHandler    *handlers.GroupHandler
	UploadHandler   *handlers.UploadHandler
	PresenceHandler *handlers.PresenceHandler
	ChatWSHandler   *handlers.ChatWSHandler
}

// New builds the HTTP router.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Websocket endpoint authenticates its own handshake (token query param
	// support), so it sits outside the auth middleware.
	r.Get("/ws", d.ChatWSHandler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", d.AuthHandler.Register)
		r.Post("/auth/login", d.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			r.Post("/auth/fcm-token", d.AuthHandler.RegisterFCMToken)

			r.Route("/messages", func(r chi.Router) {
				r.Post("/", d.MessageHandler.Send)
				r.Put("/read", d.MessageHandler.MarkRead)
				r.Get("/unread/count", d.MessageHandler.UnreadCounts)
				r.Get("/{userID}", d.MessageHandler.Conversation)
				r.Post("/{id}/reaction", d.MessageHandler.React)
				r.Put("/{id}", d.MessageHandler.Edit)
				r.Delete("/{id}", d.MessageHandler.Delete)
			})

			r.Post("/groups/{id}/messages", d.GroupHandler.SendMessage)
			r.Get("/users/{userID}/presence", d.PresenceHandler.Presence)
			r.Post("/upload", d.UploadHandler.Upload)
		})
	})

	return r
}
