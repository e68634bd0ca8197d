package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinysense/sensord/pkg/engine"
)

// NewRouter builds the node's full route surface: dashboard API, websocket
// stream, prometheus metrics and static files.
func NewRouter(eng *engine.Engine, hub *ReadingsHub, webDir string) *mux.Router {
	handler := NewHandler(eng)

	router := mux.NewRouter()

	// CORS middleware so the dashboard works when served from another host
	// on the LAN.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/current", handler.HandleCurrent).Methods("GET")
	api.HandleFunc("/history", handler.HandleHistory).Methods("GET")
	api.HandleFunc("/stats", handler.HandleStats).Methods("GET")
	api.HandleFunc("/alerts", handler.HandleAlerts).Methods("GET")
	api.HandleFunc("/alerts/{metric}/threshold", handler.HandleSetThreshold).Methods("POST")
	api.HandleFunc("/alerts/{metric}/acknowledge", handler.HandleAcknowledge).Methods("POST")
	api.HandleFunc("/save", handler.HandleSave).Methods("POST")
	api.HandleFunc("/health", handler.HandleHealth).Methods("GET")
	api.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	// Prometheus self-metrics at the standard path.
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Static dashboard assets (strip prefix to prevent path traversal).
	if webDir != "" {
		fileServer := http.FileServer(http.Dir(webDir))
		router.PathPrefix("/").Handler(http.StripPrefix("/", fileServer))
	}

	return router
}
