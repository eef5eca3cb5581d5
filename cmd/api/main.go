package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/lmoretti/finance-service/internal/config"
	"github.com/lmoretti/finance-service/internal/handler"
	"github.com/lmoretti/finance-service/internal/integrations/ecb"
	"github.com/lmoretti/finance-service/internal/middleware"
	"github.com/lmoretti/finance-service/internal/repository"
	"github.com/lmoretti/finance-service/internal/scheduler"
	"github.com/lmoretti/finance-service/internal/service"
	"github.com/lmoretti/finance-service/internal/utils/email"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	ratesClient := ecb.NewClient(cfg, logger)
	svc := service.NewService(repo, ratesClient, logger)
	h := handler.NewHandler(svc, logger)
	sender := email.NewSender(cfg, logger)

	// Start periodic jobs
	sched := scheduler.NewScheduler(svc, sender, cfg, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.Logging(logger))
	h.RegisterRoutes(r)
	// Reference rates endpoint
	r.HandleFunc("/rates", func(w http.ResponseWriter, r *http.Request) {
		rates, err := ratesClient.Rates()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get rates: %v", err), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(rates)
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
