package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

type blockResponse struct {
	Number      uint64 `json:"number"`
	Timestamp   uint64 `json:"timestamp"`
	IndexedUpTo uint64 `json:"indexedUpTo"`
}

// HandleBlockBefore serves GET /v1/chains/{chainId}/block/before/{timestamp}.
func (c *Controller) HandleBlockBefore(w http.ResponseWriter, r *http.Request) {
	c.handleBlockQuery(w, r, store.Before)
}

// HandleBlockAfter serves GET /v1/chains/{chainId}/block/after/{timestamp}.
func (c *Controller) HandleBlockAfter(w http.ResponseWriter, r *http.Request) {
	c.handleBlockQuery(w, r, store.After)
}

// handleBlockQuery implements spec §6: path-level inclusivity is strict
// (before = strictly less, after = strictly greater) unless the query
// parameter inclusive=true is supplied.
func (c *Controller) handleBlockQuery(w http.ResponseWriter, r *http.Request, direction store.Direction) {
	if !c.App.Progress.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	vars := mux.Vars(r)
	chainID, err := strconv.ParseUint(vars["chainId"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chainId")
		return
	}

	timestamp, err := strconv.ParseUint(vars["timestamp"], 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			// Syntactically a number but outside u64: no block could ever
			// carry that timestamp, so this is a miss, not bad input.
			writeError(w, http.StatusNotFound, "no matching block")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	inclusive := r.URL.Query().Get("inclusive") == "true"

	resp, err := c.App.Lookup.Lookup(uint32(chainID), timestamp, direction, inclusive)
	if err != nil {
		switch {
		case errors.Is(err, kizamierr.ErrUnknownChain):
			writeError(w, http.StatusNotFound, "unknown chain")
		case errors.Is(err, kizamierr.ErrNotFound):
			writeError(w, http.StatusNotFound, "no matching block")
		case errors.Is(err, kizamierr.ErrStorage):
			writeError(w, http.StatusInternalServerError, "storage error")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, blockResponse{
		Number:      resp.Number,
		Timestamp:   resp.Timestamp,
		IndexedUpTo: resp.IndexedUpTo,
	})
}
