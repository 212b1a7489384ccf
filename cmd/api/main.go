package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/platform/metrics"
	"pet-skin-triage/internal/router"
)

func main() {
	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: nil, // sin verifier para modo dev
		Logger:       logger.NewFromEnv(),
		Metrics:      metrics.New(),
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // submissions cargan imágenes
	}

	log.Printf("starting server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
