package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (api *HTTP) setupRoutes() {
	router := mux.NewRouter()

	if api.metrics != nil {
		router.Handle("/metrics", api.metrics).Methods(http.MethodGet)
	}

	// api/v1 base path handlers
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middlewareCounter(api), middlewareRequestID(), middlewareLogger(api.logger))
	v1.HandleFunc("/info", api.handleInfo()).Methods(http.MethodGet)
	v1.HandleFunc("/classes/{class}/twins", api.handleQueryTwins()).Methods(http.MethodGet)
	v1.HandleFunc("/classes/{class}/patch", api.handleApplyPatch()).Methods(http.MethodPost)
	v1.HandleFunc("/batches/{id}", api.handleGetBatch()).Methods(http.MethodGet)

	api.srv.Handler = router
}
