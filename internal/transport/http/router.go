package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter configures the conversion API routes and static UI serving.
func NewRouter(handler *Handler, publicDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/convert", handler.Convert).Methods("POST")
	r.HandleFunc("/api/status/{id}", handler.Status).Methods("GET")
	r.HandleFunc("/api/progress/{id}", handler.Progress).Methods("GET")
	r.HandleFunc("/api/ws/{id}", handler.ProgressSocket).Methods("GET")
	r.HandleFunc("/api/download/{id}", handler.Download).Methods("GET")
	r.HandleFunc("/api/hls/{id}", handler.HLSAsset).Methods("GET")
	r.HandleFunc("/api/hls/{id}/{file}", handler.HLSAsset).Methods("GET")
	r.HandleFunc("/api/dash/{id}", handler.DASHAsset).Methods("GET")
	r.HandleFunc("/api/dash/{id}/{file}", handler.DASHAsset).Methods("GET")
	if publicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(publicDir)))
	}
	return r
}
