package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
)

type paramsRequest struct {
	MinDebtSize    string `json:"minDebtSize"`
	InterestModel  string `json:"interestModel"`
	RatePerSecond  string `json:"ratePerSecond"`
	ReservePoolBps uint64 `json:"reservePoolBps"`
	KillBountyBps  uint64 `json:"killBountyBps"`
}

func (a *api) setParams(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req paramsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg := lending.PoolConfig{
		InterestModel:  req.InterestModel,
		ReservePoolBps: req.ReservePoolBps,
		KillBountyBps:  req.KillBountyBps,
	}
	if cfg.MinDebtSize, err = parseAmount("minDebtSize", req.MinDebtSize, false); err != nil {
		writeBadRequest(w, err)
		return
	}
	if cfg.RatePerSecond, err = parseAmount("ratePerSecond", req.RatePerSecond, false); err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.proto.SetPoolConfig(r.Context(), caller, cfg); err != nil {
		a.writeProtocolError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vaultRequest struct {
	Vault         string `json:"vault"`
	IsVault       bool   `json:"isVault"`
	AcceptsDebt   bool   `json:"acceptsDebt"`
	WorkFactorBps uint64 `json:"workFactorBps"`
	KillFactorBps uint64 `json:"killFactorBps"`
}

func (a *api) setVault(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req vaultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	vault, err := crypto.ParseAddress(req.Vault)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg := lending.VaultConfig{
		IsVault:       req.IsVault,
		AcceptsDebt:   req.AcceptsDebt,
		WorkFactorBps: req.WorkFactorBps,
		KillFactorBps: req.KillFactorBps,
	}
	if err := cfg.Validate(); err != nil && nativecommon.ReasonOf(err) == "" {
		writeBadRequest(w, err)
		return
	}
	if err := a.proto.SetVault(r.Context(), caller, vault, cfg); err != nil {
		a.writeProtocolError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setBounty(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	vault, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req struct {
		Bps uint64 `json:"bps"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.proto.SetReinvestBounty(r.Context(), caller, vault, req.Bps); err != nil {
		a.writeProtocolError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reserveRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (a *api) withdrawReserve(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to := caller
	if req.To != "" {
		if to, err = crypto.ParseAddress(req.To); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	amt, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.proto.WithdrawReserve(r.Context(), caller, to, amt); err != nil {
		a.writeProtocolError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) reduceReserve(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.proto.ReduceReserve(r.Context(), caller, amt); err != nil {
		a.writeProtocolError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
