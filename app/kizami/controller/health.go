package controller

import "net/http"

type healthBody struct {
	Status string `json:"status"`
}

// HandleHealth serves GET /health. It reports process liveness only; it
// does not gate on progress.Ready since the supervisor's rehydration is an
// internal readiness concern, not a process health one.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Status: "ok"})
}
