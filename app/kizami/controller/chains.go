package controller

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/prettyirrelevant/kizami/pkg/registry"
)

type chainResponse struct {
	ChainID uint32 `json:"chainId"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
}

// HandleChainsList serves GET /v1/chains.
func (c *Controller) HandleChainsList(w http.ResponseWriter, r *http.Request) {
	descs := registry.List()
	out := make([]chainResponse, len(descs))
	for i, d := range descs {
		out[i] = chainResponse{ChainID: d.ChainID, Slug: d.Slug, Name: d.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleChainGet serves GET /v1/chains/{chainId}.
func (c *Controller) HandleChainGet(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(mux.Vars(r)["chainId"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chainId")
		return
	}

	d, err := registry.Get(uint32(chainID))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown chain")
		return
	}

	writeJSON(w, http.StatusOK, chainResponse{ChainID: d.ChainID, Slug: d.Slug, Name: d.Name})
}
