// Package profiling starts the optional pprof listener and Pyroscope agent.
package profiling

import (
	"errors"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // bound to localhost only
	"os"
	"time"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

const defaultPprofPort = "6060"

// StartPprofServer serves /debug/pprof on localhost when ENABLE_PROFILING=true.
// PPROF_PORT overrides the port.
func StartPprofServer(log logger.Logger) {
	if os.Getenv("ENABLE_PROFILING") != "true" {
		return
	}

	port := os.Getenv("PPROF_PORT")
	if port == "" {
		port = defaultPprofPort
	}
	addr := "localhost:" + port

	srv := &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Starting pprof server", logger.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("pprof server stopped", logger.Error(err))
		}
	}()
}
