package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/printhub/internal/middleware"
)

// RouterOptions содержит параметры маршрутизации, не относящиеся к бизнес-логике.
type RouterOptions struct {
	CORSAllowedOrigins []string
	Metrics            http.Handler
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса printhub.
func (h *Handler) SetupRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.RequestLogger(h.logger))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/models", h.ListModels)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.Me)
				r.Put("/bank-details", h.UpdateOwnBankDetails)

				r.Post("/orders", h.PlaceOrder)
				r.Get("/orders", h.ListOwnOrders)

				r.Get("/earnings", h.MyEarnings)
				r.Get("/earnings/stream", h.StreamEarnings)

				r.Post("/redeem", h.SubmitRedeem)
				r.Get("/redeem", h.ListRedeems)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin)

				r.Get("/photographers", h.AdminPhotographers)
				r.Get("/photographers/{id}/earnings", h.PhotographerEarnings)
				r.Put("/photographers/{id}/bank-details", h.UpdateBankDetails)
				r.Post("/photographers/{id}/adjustments", h.PostAdjustment)

				r.Get("/orders", h.AdminListOrders)
				r.Put("/orders/{id}/status", h.SetOrderStatus)

				r.Get("/redeem", h.AdminListRedeems)
				r.Post("/redeem/{id}/resolve", h.ResolveRedeem)

				r.Post("/models", h.CreateModel)
				r.Delete("/models/{id}", h.DeleteModel)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
