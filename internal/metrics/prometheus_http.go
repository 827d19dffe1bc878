package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// scrapeTimeout bounds one /metrics request; viewers share the listener.
const scrapeTimeout = 10 * time.Second

// HTTPHandler serves the docstream collectors registered on reg. A collector
// that fails to gather is logged and left out so the run and stream series
// still reach the scraper. Scrapes themselves are counted on reg under
// promhttp_metric_handler_requests_total. Without a registry the handler
// serves only Go runtime and process metrics.
func HTTPHandler(reg *prom.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics:   true,
		ErrorHandling:       promhttp.ContinueOnError,
		ErrorLog:            scrapeLog{logger},
		MaxRequestsInFlight: 2,
		Timeout:             scrapeTimeout,
	})
	return promhttp.InstrumentMetricHandler(reg, h)
}

// scrapeLog adapts slog to the promhttp error logger.
type scrapeLog struct{ logger *slog.Logger }

func (l scrapeLog) Println(v ...any) {
	l.logger.Warn("Metrics scrape error", slog.String("error", fmt.Sprint(v...)))
}
