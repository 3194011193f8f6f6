package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/csvpass/internal/app"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "./config/config.yaml", "path to the config file")
	mode := pflag.String("mode", "", "delivery mode: deferred or sync (overrides service.mode)")
	pflag.Parse()

	application := app.New(app.Options{ConfigPath: *configPath, Mode: *mode}) // Initialize the application
	wait := application.Start()                                              // Start the application and wait for the termination signal
	<-wait                                                                    // Wait for the application to receive a termination signal

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application.Stop(ctx) // Stop the application gracefully
}
