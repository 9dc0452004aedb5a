package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdpchain/native/oracle"
)

type setPriceRequest struct {
	Price string `json:"price"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	entry, ok, err := s.protocol.GetPriceInfo(r.Context(), chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, oracle.ErrPriceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":     entry.Asset,
		"price":     entry.Price.String(),
		"timestamp": entry.Timestamp,
		"source":    entry.Source.String(),
	})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.SetPrice(r.Context(), callerOf(r), chi.URLParam(r, "asset"), price); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetPrice(w, r)
}

func (s *Server) handleOracleOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.protocol.OracleOwner(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": owner.String()})
}

func (s *Server) handleTransferOracleOwner(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	next, err := parseAddress("owner", req.Owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.TransferOracleOwnership(r.Context(), callerOf(r), next); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": next.String()})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.protocol.OracleSources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": addressStrings(sources)})
}

func (s *Server) handleSourceStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok, err := s.protocol.IsAuthorizedSource(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "authorized": ok})
}

func (s *Server) handleAuthorizeSource(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	source, err := parseAddress("address", req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.AuthorizeSource(r.Context(), callerOf(r), source); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": source.String(), "authorized": true})
}

func (s *Server) handleRevokeSource(w http.ResponseWriter, r *http.Request) {
	source, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.RevokeSource(r.Context(), callerOf(r), source); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": source.String(), "authorized": false})
}
