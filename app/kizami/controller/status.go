package controller

import "net/http"

type chainStatus struct {
	ChainID     uint32 `json:"chainId"`
	IndexedUpTo uint64 `json:"indexedUpTo"`
	Head        uint64 `json:"head"`
}

// HandleIndexingStatus serves GET /v1/indexing-status. Until the progress
// map has been rehydrated from the cursor store, the supervisor cannot
// vouch for any reported number, so it answers 503 instead of a partial
// snapshot.
func (c *Controller) HandleIndexingStatus(w http.ResponseWriter, r *http.Request) {
	if !c.App.Progress.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	entries := c.App.Progress.Snapshot()
	out := make([]chainStatus, len(entries))
	for i, e := range entries {
		out[i] = chainStatus{ChainID: e.ChainID, IndexedUpTo: e.Cursor, Head: e.Head}
	}

	writeJSON(w, http.StatusOK, out)
}
