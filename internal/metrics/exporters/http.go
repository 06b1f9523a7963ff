// Package exporters exposes the procexec metrics over HTTP.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Registers the procexec collectors with the default registry.
	_ "github.com/smazurov/procexec/internal/metrics"
)

// HTTPHandler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
