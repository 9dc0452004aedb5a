package server

import (
	"context"
	"math/big"
	"net/http"

	"cdpchain/core/genesis"
	"cdpchain/crypto"
	"cdpchain/gateway/middleware"
	"cdpchain/native/vault"
	"cdpchain/services/cdpd/indexer"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

type createVaultRequest struct {
	Collateral string `json:"collateral"`
}

type vaultView struct {
	ID          uint64  `json:"id"`
	Owner       string  `json:"owner"`
	Collateral  amount  `json:"collateral"`
	Debt        amount  `json:"debt"`
	CreatedAt   uint64  `json:"createdAt"`
	RatioBps    *string `json:"ratioBps,omitempty"`
	MaxMintable *amount `json:"maxMintable,omitempty"`
}

func callerOf(r *http.Request) crypto.Address {
	caller, _ := middleware.CallerFromContext(r.Context())
	return caller
}

func (s *Server) renderVault(ctx context.Context, v *vault.Vault) (vaultView, error) {
	collateralDecimals, err := s.tokenDecimals(ctx, s.protocol.VaultParams().BaseAsset)
	if err != nil {
		return vaultView{}, err
	}
	debtDecimals, err := s.tokenDecimals(ctx, genesis.SymbolStable)
	if err != nil {
		return vaultView{}, err
	}
	view := vaultView{
		ID:         v.ID,
		Owner:      v.Owner.String(),
		Collateral: newAmount(v.Collateral, collateralDecimals),
		Debt:       newAmount(v.Debt, debtDecimals),
		CreatedAt:  v.CreatedAt,
	}
	if ratio, ok, err := s.protocol.CollateralRatio(ctx, v.ID); err == nil && ok {
		value := ratio.String()
		view.RatioBps = &value
	}
	if limit, err := s.protocol.MaxMintable(ctx, v.ID); err == nil {
		rendered := newAmount(limit, debtDecimals)
		view.MaxMintable = &rendered
	}
	return view, nil
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	collateral, err := parseAmount("collateral", req.Collateral)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.protocol.CreateVault(r.Context(), callerOf(r), collateral)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id, err := pathVaultID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, ok, err := s.protocol.Vault(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, vault.ErrVaultNotFound)
		return
	}
	view, err := s.renderVault(r.Context(), v)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// vaultMutation decodes {"amount"} and applies fn for the path vault.
func (s *Server) vaultMutation(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller crypto.Address, id uint64, amt *big.Int) (any, error)) {
	id, err := pathVaultID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := fn(r.Context(), callerOf(r), id, amt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if result != nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	v, ok, err := s.protocol.Vault(r.Context(), id)
	if err != nil || !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	view, err := s.renderVault(r.Context(), v)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddCollateral(w http.ResponseWriter, r *http.Request) {
	s.vaultMutation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amt *big.Int) (any, error) {
		return nil, s.protocol.AddCollateral(ctx, caller, id, amt)
	})
}

func (s *Server) handleMintDebt(w http.ResponseWriter, r *http.Request) {
	s.vaultMutation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amt *big.Int) (any, error) {
		return nil, s.protocol.MintDebt(ctx, caller, id, amt)
	})
}

func (s *Server) handleRepayDebt(w http.ResponseWriter, r *http.Request) {
	s.vaultMutation(w, r, func(ctx context.Context, caller crypto.Address, id uint64, amt *big.Int) (any, error) {
		repaid, err := s.protocol.RepayDebt(ctx, caller, id, amt)
		if err != nil {
			return nil, err
		}
		decimals, err := s.tokenDecimals(ctx, genesis.SymbolStable)
		if err != nil {
			return nil, err
		}
		return map[string]amount{"repaid": newAmount(repaid, decimals)}, nil
	})
}

func (s *Server) handleVaultRatio(w http.ResponseWriter, r *http.Request) {
	id, err := pathVaultID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ratio, ok, err := s.protocol.CollateralRatio(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, vault.ErrVaultNotFound)
		return
	}
	limit, err := s.protocol.MaxMintable(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decimals, err := s.tokenDecimals(r.Context(), genesis.SymbolStable)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ratioBps":              ratio.String(),
		"minCollateralRatioBps": s.protocol.VaultParams().MinCollateralRatioBps,
		"maxMintable":           newAmount(limit, decimals),
	})
}

func (s *Server) handleVaultEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathVaultID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event index not configured"})
		return
	}
	records, err := s.events.VaultEvents(r.Context(), id, queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := renderRecords(records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vaultId": id, "events": out})
}

// handleRecentEvents lists indexed events newest first, optionally filtered
// by ?type=.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event index not configured"})
		return
	}
	records, err := s.events.Recent(r.Context(), r.URL.Query().Get("type"), queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := renderRecords(records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func renderRecords(records []indexer.EventRecord) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		attrs, err := record.DecodeAttributes()
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id":         record.ID.String(),
			"sequence":   record.Sequence,
			"type":       record.Type,
			"attributes": attrs,
			"createdAt":  record.CreatedAt,
		})
	}
	return out, nil
}

func (s *Server) handleOwnerVaults(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.protocol.UserVaults(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner.String(), "vaults": ids})
}

func (s *Server) handleDebt(w http.ResponseWriter, r *http.Request) {
	total, err := s.protocol.TotalDebt(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	meta, err := s.protocol.DebtToken(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalDebt": newAmount(total, meta.Decimals),
		"token":     tokenMetadataView(meta),
	})
}

func (s *Server) handleDebtBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.protocol.DebtBalance(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decimals, err := s.tokenDecimals(r.Context(), genesis.SymbolStable)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.String(), "balance": newAmount(bal, decimals)})
}
