package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sqlgym/internal/api"
	"sqlgym/internal/app/service"
	"sqlgym/internal/app/worker"
	"sqlgym/internal/common/security"
	"sqlgym/internal/domain/repository"
	"sqlgym/internal/judge"
	"sqlgym/internal/platform/config"
	"sqlgym/internal/platform/database"
	"sqlgym/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)

	// 6. Initialize the grading core and queue
	executor := judge.NewPgExecutor(config.AppConfig.GraderConnStr)
	validator := judge.NewValidator(executor, config.AppConfig.GradingTimeout)
	gradingQueue := queue.NewGradingQueue(queue.RDB, config.AppConfig.GradingQueueName)

	// 7. Initialize Services
	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemRepo, validator, database.DB)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, gradingQueue, validator)
	progressService := service.NewProgressService(progressRepo)

	// 8. Initialize Grading Worker (as a goroutine)
	gradingWorker := worker.NewGradingWorker(gradingQueue, problemRepo, submissionRepo, progressRepo, validator)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go gradingWorker.Start(workerCtx)
	fmt.Println("Grading worker started.")

	// 9. Initialize Router & HTTP Server
	router := api.NewRouter(authService, problemService, submissionService, progressService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	workerCancel() // Signal worker to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and worker stopped gracefully.")
}
