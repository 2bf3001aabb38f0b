package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/bakery-storefront/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/loyalty/{card}", h.GetLoyalty)
		r.Post("/catering/quote", h.CateringQuote)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)

				r.Post("/items", h.AddCartItem)
				r.Patch("/items/{lineID}", h.UpdateCartItem)
				r.Delete("/items/{lineID}", h.RemoveCartItem)

				r.Post("/discount", h.ApplyDiscount)
				r.Delete("/discount", h.RemoveDiscount)
			})

			r.Post("/checkout", h.Checkout)
			r.Get("/orders/{orderID}", h.GetOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
