package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires all API routes behind the standard middleware stack.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Order matters.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/blockchain", h.Blockchain)
	r.Get("/rules", h.Rules)

	r.Get("/price", h.Price)
	r.Get("/ratio", h.Ratio)
	r.Post("/price-detailed", h.PriceDetailed)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/user/{phone}", h.GetUser)
	r.Route("/users", func(r chi.Router) {
		r.Get("/role/{role}", h.UsersByRole)
		r.Get("/location/{location}", h.UsersByLocation)
	})

	r.Post("/supply-report", h.SupplyReport)
	r.Get("/supply/{region}", h.SupplyByRegion)
	r.Post("/waste-report", h.WasteReport)
	r.Get("/waste/{phone}", h.WasteByUser)
	r.Get("/regional-metrics/{region}", h.RegionalMetrics)

	r.Route("/delivery", func(r chi.Router) {
		r.Post("/create", h.CreateDelivery)
		r.Post("/complete/{delivery_id}", h.CompleteDelivery)
	})
	r.Get("/deliveries/{status}", h.Deliveries)

	return r
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		GetZlog().Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("addr", r.RemoteAddr).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}
