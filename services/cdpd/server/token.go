package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cdpchain/native/token"
)

type transferRequest struct {
	Amount string `json:"amount"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Memo   string `json:"memo,omitempty"`
}

type mintRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type burnRequest struct {
	Amount string `json:"amount"`
	Holder string `json:"holder"`
}

type tokenMetadataJSON struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

func tokenMetadataView(meta *token.Metadata) tokenMetadataJSON {
	return tokenMetadataJSON{Symbol: meta.Symbol, Name: meta.Name, Decimals: meta.Decimals}
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tokens": s.protocol.Tokens()})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	meta, err := s.protocol.TokenMetadata(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	supply, err := s.protocol.TotalSupply(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := s.protocol.TokenOwner(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	minters, err := s.protocol.Minters(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata":    tokenMetadataView(meta),
		"totalSupply": newAmount(supply, meta.Decimals),
		"owner":       owner.String(),
		"minters":     addressStrings(minters),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	addr, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.protocol.Balance(r.Context(), symbol, addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decimals, err := s.tokenDecimals(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"address": addr.String(),
		"balance": newAmount(bal, decimals),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	caller := callerOf(r)
	from := caller
	if strings.TrimSpace(req.From) != "" {
		if from, err = parseAddress("from", req.From); err != nil {
			s.writeError(w, err)
			return
		}
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.Transfer(r.Context(), symbolParam(r), caller, amt, from, to, req.Memo); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.Mint(r.Context(), symbolParam(r), callerOf(r), amt, recipient); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.Burn(r.Context(), symbolParam(r), callerOf(r), amt, holder); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMinterStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok, err := s.protocol.IsMinter(r.Context(), symbolParam(r), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "minter": ok})
}

func (s *Server) handleAuthorizeMinter(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	minter, err := parseAddress("address", req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.AuthorizeMinter(r.Context(), symbolParam(r), callerOf(r), minter); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": minter.String(), "minter": true})
}

func (s *Server) handleRevokeMinter(w http.ResponseWriter, r *http.Request) {
	minter, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.protocol.RevokeMinter(r.Context(), symbolParam(r), callerOf(r), minter); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": minter.String(), "minter": false})
}

func (s *Server) handleTransferTokenOwner(w http.ResponseWriter, r *http.Request) {
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
	if err := s.protocol.TransferTokenOwnership(r.Context(), symbolParam(r), callerOf(r), next); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": next.String()})
}
