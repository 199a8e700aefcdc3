package controller

import "net/http"

// HandleMetrics serves GET /metrics, delegating to the Prometheus handler.
func (c *Controller) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	c.App.Metrics.Handler().ServeHTTP(w, r)
}
