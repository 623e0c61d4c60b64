package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/septivank/meter-field-ops/internal/metrics"
	"go.uber.org/zap"
)

// NewRouter wires the API routes. /api requires a session and /api/admin an
// administrator session.
func NewRouter(
	handler *Handler,
	authMiddleware *AuthMiddleware,
	m *metrics.Metrics,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID, Recovery(logger), m.Middleware(routeTemplate))

	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	// Public API routes - Authentication
	r.HandleFunc("/auth/login", handler.Login).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.HandleFunc("/customers/search", handler.SearchCustomers).Methods("GET")
	api.HandleFunc("/customers/route", handler.RouteCustomers).Methods("GET")
	api.HandleFunc("/arrears", handler.ListArrears).Methods("GET")
	api.HandleFunc("/arrears/export", handler.ExportArrears).Methods("GET")
	api.HandleFunc("/entries/gate", handler.EntryGate).Methods("GET")
	api.HandleFunc("/entries", handler.SubmitEntries).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)
	admin.HandleFunc("/stats", handler.Stats).Methods("GET")
	admin.HandleFunc("/imports/{table}", handler.Import).Methods("POST")
	admin.HandleFunc("/imports/{table}", handler.ImportStatus).Methods("GET")
	admin.HandleFunc("/imports/{table}/resume", handler.ResumeImport).Methods("POST")
	admin.HandleFunc("/tables/{table}", handler.ClearTable).Methods("DELETE")
	admin.HandleFunc("/arrears/settle", handler.SettleArrears).Methods("POST")
	admin.HandleFunc("/users/{username}/device", handler.ResetDevice).Methods("DELETE")
	admin.HandleFunc("/users/{username}/secret", handler.SetSecret).Methods("PUT")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}
