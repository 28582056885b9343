package http

import (
	"net/http"
	"time"

	"github.com/Dracko000/meet/internal/metrics"
	httpmw "github.com/Dracko000/meet/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	WS             http.HandlerFunc
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(d.Metrics.Middleware)

	// WS endpoint; hijacked, so it stays out of the timeout group
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Group(func(api chi.Router) {
		api.Use(httpmw.Trace)
		api.Use(httpmw.RequestLogger)
		api.Use(httpmw.AccessLog)
		api.Use(middlewareChi.Timeout(30 * time.Second))

		api.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", d.Handler.CreateRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetRoom)
				rr.Get("/participants", d.Handler.GetParticipants)
				rr.Get("/chat", d.Handler.GetChatHistory)
			})
		})
		api.Get("/config", d.Handler.GetClientConfig)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", d.Metrics.Handler())

	return r
}
