package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/crypto-backtest/src/api"
	"github.com/jiaming2012/crypto-backtest/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/results_server/main.go --resultsDir results",
	Short: "Serves stored backtest run artifacts over HTTP.",
	Run: func(cmd *cobra.Command, args []string) {
		port, err := cmd.Flags().GetString("port")
		if err != nil {
			log.Fatalf("error getting port: %v", err)
		}

		resultsDir, err := cmd.Flags().GetString("resultsDir")
		if err != nil {
			log.Fatalf("error getting resultsDir: %v", err)
		}

		if err := utils.InitEnvironmentVariables(); err != nil {
			log.Fatalf("failed to init environment variables: %v", err)
		}

		if port == "" {
			port = utils.EnvOrDefault("PORT", "3000")
		}

		if resultsDir == "" {
			resultsDir = utils.EnvOrDefault("RESULTS_DIR", "results")
		}

		// setup router
		router := mux.NewRouter()
		api.SetupHandler(router.PathPrefix("/runs").Subrouter(), resultsDir)

		// start the http server
		srv := &http.Server{
			Handler: router,
			Addr:    fmt.Sprintf(":%s", port),
		}

		go func() {
			log.Infof("serving run artifacts from %s on :%s", resultsDir, port)
			if err := srv.ListenAndServe(); err != nil {
				if err.Error() != "http: Server closed" {
					log.Fatalf("http: failed to listen and serve: %v", err)
				}
			}
		}()

		// Create channel for shutdown signals.
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		signal.Notify(stop, syscall.SIGTERM)

		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server %s", err)
		} else {
			log.Println("Server gracefully stopped")
		}
	},
}

func main() {
	runCmd.PersistentFlags().String("port", "", "Port to listen on. Defaults to the PORT environment variable or 3000.")
	runCmd.PersistentFlags().String("resultsDir", "", "Directory holding run artifacts. Defaults to the RESULTS_DIR environment variable.")

	runCmd.Execute()
}
