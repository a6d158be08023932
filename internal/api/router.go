package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tvmmachans/Customo/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	if s.metricsH != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsH)
	}

	// Device channel (authenticates from the handshake itself)
	wsPath := s.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/api/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.authLimit.middleware)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Get("/me", s.handleMe)
				r.Put("/profile", s.handleUpdateProfile)
				r.Put("/change-password", s.handleChangePassword)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(s.productLimit.middleware)
			r.Get("/", s.handleListProducts)
			r.Get("/{id}", s.handleGetProduct)
			r.Get("/{id}/reviews", s.handleListReviews)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/{id}/reviews", s.handleAddReview)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermCatalogManage))
					r.Post("/", s.handleCreateProduct)
					r.Put("/{id}", s.handleUpdateProduct)
					r.Delete("/{id}", s.handleDeleteProduct)
				})
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats/overview", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Put("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/control", s.handleControlDevice)
					r.Put("/location", s.handleUpdateLocation)
					r.Put("/battery", s.handleUpdateBattery)
					r.Get("/logs", s.handleDeviceLogs)
				})
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.handleGetCart)
				r.Delete("/", s.handleClearCart)
				r.Post("/items", s.handleAddCartItem)
				r.Put("/items/{itemId}", s.handleUpdateCartItem)
				r.Delete("/items/{itemId}", s.handleRemoveCartItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.handlePlaceOrder)
				r.Get("/", s.handleListOrders)
				r.Get("/{id}", s.handleGetOrder)
				r.Post("/{id}/cancel", s.handleCancelOrder)
				r.With(s.requirePermission(auth.PermOrderManage)).Put("/{id}/status", s.handleUpdateOrderStatus)
			})

			r.Route("/service/tickets", func(r chi.Router) {
				r.Post("/", s.handleCreateTicket)
				r.Get("/", s.handleListTickets)
				r.Get("/stats", s.handleTicketStats)
				r.Get("/{id}", s.handleGetTicket)
				r.Post("/{id}/cancel", s.handleCancelTicket)
				r.With(s.requirePermission(auth.PermTicketWork)).Put("/{id}/status", s.handleUpdateTicketStatus)
				r.With(s.requirePermission(auth.PermTicketAllocate)).Put("/{id}/assign", s.handleAssignTicket)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserManage))
				r.Get("/users", s.handleListUsers)
				r.Put("/users/{id}/role", s.handleSetUserRole)
				r.Put("/users/{id}/active", s.handleSetUserActive)
				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}
