package cmd

import (
	"net/http"

	"interaction-backend/internal/handlers"
	"interaction-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// routes groups the HTTP handlers the router mounts
type routes struct {
	auth       middleware.TokenValidator
	user       *handlers.UserHandler
	photo      *handlers.PhotoHandler
	permission *handlers.PermissionHandler
	like       *handlers.LikeHandler
	message    *handlers.MessageHandler
	websocket  *handlers.WebSocketHandler
}

func newRouter(h routes) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(h.auth))

		r.Put("/users/me/push-token", h.user.UpdatePushToken)

		// Photos
		r.Get("/users/{user_id}/photos", h.photo.GetUserPhotos)
		r.Post("/photos/upload", h.photo.UploadPhoto)
		r.Patch("/photos/{photo_id}/visibility", h.photo.UpdateVisibility)
		r.Put("/photos/{photo_id}/profile", h.photo.SetProfilePhoto)
		r.Delete("/photos/{photo_id}", h.photo.DeletePhoto)

		// Permissions
		r.Post("/photos/{photo_id}/permissions", h.permission.RequestAccess)
		r.Put("/photos/{photo_id}/permissions/{requester_id}", h.permission.RespondFor)
		r.Post("/photos/{photo_id}/grants", h.permission.Grant)
		r.Get("/permissions/incoming", h.permission.ListIncoming)
		r.Get("/permissions/outgoing", h.permission.ListOutgoing)
		r.Post("/permissions/approve-all", h.permission.ApproveAll)
		r.Put("/permissions/{permission_id}", h.permission.Respond)
		r.Post("/permissions/{permission_id}/revoke", h.permission.Revoke)

		// Likes
		r.Get("/likes/received", h.like.ListReceived)
		r.Get("/likes/sent", h.like.ListSent)
		r.Get("/likes/quota", h.like.GetQuota)
		r.Get("/matches", h.like.ListMatches)
		r.Post("/likes/{user_id}", h.like.Like)
		r.Delete("/likes/{user_id}", h.like.Unlike)

		// Messages
		r.Post("/messages", h.message.SendMessage)
		r.Get("/conversations/unread", h.message.GetUnreadCounts)
		r.Get("/conversations/{peer_id}/messages", h.message.GetConversation)
		r.Put("/conversations/{peer_id}/read", h.message.MarkConversationRead)
		r.Put("/messages/{message_id}/read", h.message.MarkRead)
		r.Put("/messages/{message_id}/reaction", h.message.AddReaction)
		r.Delete("/messages/{message_id}/reaction", h.message.RemoveReaction)
		r.Delete("/messages/{message_id}", h.message.DeleteMessage)
	})

	// WebSocket route
	r.Get("/ws", h.websocket.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
