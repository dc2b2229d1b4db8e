package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

func router(config *Global) http.Handler {
	router := mux.NewRouter()
	POST := router.Methods("POST").Subrouter()
	GET := router.Methods("GET", "HEAD").Subrouter()
	DELETE := router.Methods("DELETE").Subrouter()

	h := handler{Global: config, router: router}

	GET.HandleFunc("/", h.Index).Name("index")
	GET.HandleFunc("/goroutines", h.Goroutines)
	GET.HandleFunc("/jobs", h.ListJobs).Name("jobs")
	GET.HandleFunc("/jobs/{id}", h.GetJob).Name("job")
	GET.HandleFunc("/jobs/{id}/result", h.GetResult).Name("result")
	GET.HandleFunc("/jobs/{id}/frames/{frame}", h.GetFrame).Name("frame")

	//
	// POST
	//
	POST.Handle("/", http.NotFoundHandler())
	POST.HandleFunc("/videos", h.CreateVideo)

	DELETE.HandleFunc("/jobs/{id}", h.DeleteJob)

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router)
}
