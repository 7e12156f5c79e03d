// Command hello serves the one-route greeting app.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"myblog/internal/config"
	"myblog/internal/hello"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := hello.NewApp()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("hello shutdown error: %v", err)
		}
	}()

	log.Printf("hello listening on port %s...", cfg.HelloPort)
	if err := app.Listen(":" + cfg.HelloPort); err != nil {
		log.Fatalf("hello stopped: %v", err)
	}
}
