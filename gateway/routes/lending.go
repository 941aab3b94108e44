package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/gateway/middleware"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/services/indexer"
)

var errNoCaller = errors.New("caller address required")

type api struct {
	proto  Protocol
	events EventSource
	logger *slog.Logger
}

type poolResponse struct {
	BaseAsset       string `json:"baseAsset"`
	ShareAsset      string `json:"shareAsset"`
	Held            string `json:"held"`
	TotalBaseAsset  string `json:"totalBaseAsset"`
	TotalShares     string `json:"totalShares"`
	GlobalDebtShare string `json:"globalDebtShare"`
	GlobalDebtValue string `json:"globalDebtValue"`
	Reserve         string `json:"reserve"`
	LastAccrual     uint64 `json:"lastAccrual"`
	NextPositionID  uint64 `json:"nextPositionId"`
	Utilisation     string `json:"utilisation"`
}

type positionResponse struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Vault     string `json:"vault"`
	DebtShare string `json:"debtShare"`
	Debt      string `json:"debt"`
	Health    string `json:"health"`
	Killable  bool   `json:"killable"`
}

func newPositionResponse(v *core.PositionView) positionResponse {
	return positionResponse{
		ID:        v.Position.ID,
		Owner:     v.Position.Owner.Hex(),
		Vault:     v.Position.Vault.Hex(),
		DebtShare: amount(v.Position.DebtShare),
		Debt:      amount(v.Debt),
		Health:    amount(v.Health),
		Killable:  v.Killable,
	}
}

func callerOf(r *http.Request) (common.Address, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok || caller == (common.Address{}) {
		return common.Address{}, errNoCaller
	}
	return caller, nil
}

func (a *api) getPool(w http.ResponseWriter, r *http.Request) {
	view, err := a.proto.Pool()
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	util := "0"
	if view.Utilisation != nil {
		util = view.Utilisation.FloatString(6)
	}
	writeJSON(w, http.StatusOK, poolResponse{
		BaseAsset:       view.BaseAsset,
		ShareAsset:      view.ShareAsset,
		Held:            amount(view.Held),
		TotalBaseAsset:  amount(view.TotalBaseAsset),
		TotalShares:     amount(view.TotalShares),
		GlobalDebtShare: amount(view.GlobalDebtShare),
		GlobalDebtValue: amount(view.GlobalDebtValue),
		Reserve:         amount(view.Reserve),
		LastAccrual:     view.LastAccrual,
		NextPositionID:  view.NextPositionID,
		Utilisation:     util,
	})
}

func (a *api) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("invalid position id"))
		return
	}
	view, err := a.proto.Position(id)
	if err != nil {
		a.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionResponse(view))
}

func (a *api) listPositions(w http.ResponseWriter, r *http.Request) {
	views, err := a.proto.Positions()
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	out := make([]positionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newPositionResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": out})
}

func (a *api) listVaults(w http.ResponseWriter, r *http.Request) {
	type vaultResponse struct {
		Address       string `json:"address"`
		PendingReward string `json:"pendingReward"`
	}
	vaults := a.proto.Vaults()
	out := make([]vaultResponse, 0, len(vaults))
	for _, addr := range vaults {
		reward, err := a.proto.PendingReward(addr)
		if err != nil {
			a.writeProtocolError(w, err)
			return
		}
		out = append(out, vaultResponse{Address: addr.Hex(), PendingReward: amount(reward)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vaults": out})
}

func (a *api) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset := strings.TrimSpace(chi.URLParam(r, "asset"))
	if asset == "" {
		writeBadRequest(w, fmt.Errorf("asset is required"))
		return
	}
	bal, err := a.proto.Balance(addr, asset)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"asset":   asset,
		"balance": amount(bal),
	})
}

func (a *api) listEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeJSONError(w, http.StatusNotImplemented, errors.New("event history is not enabled"))
		return
	}
	params := r.URL.Query()
	q := indexer.Query{Type: strings.TrimSpace(params.Get("type"))}
	if raw := params.Get("position"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("invalid position filter"))
			return
		}
		q.PositionID = &id
	}
	if raw := params.Get("vault"); raw != "" {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		q.Vault = addr.Hex()
	}
	if raw := params.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("invalid after cursor"))
			return
		}
		q.AfterSeq = after
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, fmt.Errorf("invalid limit"))
			return
		}
		q.Limit = n
	}
	records, err := a.events.Events(r.Context(), q)
	if err != nil {
		a.logger.Error("event query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	type eventResponse struct {
		ID         string            `json:"id"`
		Seq        uint64            `json:"seq"`
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
		CreatedAt  int64             `json:"createdAt"`
	}
	out := make([]eventResponse, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decode()
		if err != nil {
			a.logger.Warn("undecodable event", "seq", rec.Seq, "error", err)
			continue
		}
		out = append(out, eventResponse{
			ID:         rec.ID.String(),
			Seq:        rec.Seq,
			Type:       rec.Type,
			Attributes: attrs,
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

type depositRequest struct {
	Amount string `json:"amount"`
}

func (a *api) deposit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amt, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	shares, err := a.proto.Deposit(r.Context(), caller, amt)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": amount(shares)})
}

type withdrawRequest struct {
	Shares string `json:"shares"`
}

func (a *api) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	shares, err := parseAmount("shares", req.Shares, true)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	out, err := a.proto.Withdraw(r.Context(), caller, shares)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount(out)})
}

// workRequest carries one work call. Strategy names the strategy variant and
// selects which of the optional strategy fields apply. An empty MaxReturn
// repays as much debt as possible.
type workRequest struct {
	PositionID   uint64 `json:"positionId"`
	Vault        string `json:"vault"`
	Loan         string `json:"loan"`
	Principal    string `json:"principal"`
	MaxReturn    string `json:"maxReturn"`
	MinReturn    string `json:"minReturn"`
	Strategy     string `json:"strategy"`
	MinLP        string `json:"minLp"`
	PairedAmount string `json:"pairedAmount"`
	MinBase      string `json:"minBase"`
	MinPaired    string `json:"minPaired"`
}

func (req workRequest) toWorkRequest() (lending.WorkRequest, error) {
	vault, err := crypto.ParseAddress(req.Vault)
	if err != nil {
		return lending.WorkRequest{}, fmt.Errorf("vault: %w", err)
	}
	out := lending.WorkRequest{PositionID: req.PositionID, Vault: vault}
	if out.Loan, err = parseAmount("loan", req.Loan, false); err != nil {
		return lending.WorkRequest{}, err
	}
	if out.Principal, err = parseAmount("principal", req.Principal, false); err != nil {
		return lending.WorkRequest{}, err
	}
	if out.MaxReturn, err = parseAmount("maxReturn", req.MaxReturn, false); err != nil {
		return lending.WorkRequest{}, err
	}
	if out.MinReturn, err = parseAmount("minReturn", req.MinReturn, false); err != nil {
		return lending.WorkRequest{}, err
	}
	if out.Loan == nil {
		out.Loan = big.NewInt(0)
	}
	if out.Principal == nil {
		out.Principal = big.NewInt(0)
	}
	if out.MinReturn == nil {
		out.MinReturn = big.NewInt(0)
	}
	if out.Params, err = req.params(); err != nil {
		return lending.WorkRequest{}, err
	}
	return out, nil
}

func (req workRequest) params() (strategy.Params, error) {
	id, err := strategy.ParseID(strings.TrimSpace(req.Strategy))
	if err != nil {
		return nil, err
	}
	get := func(field, raw string) (*big.Int, error) {
		v, err := parseAmount(field, raw, false)
		if v == nil && err == nil {
			v = big.NewInt(0)
		}
		return v, err
	}
	switch id {
	case strategy.IDAddBaseOnly:
		minLP, err := get("minLp", req.MinLP)
		return strategy.AddBaseOnlyParams{MinLP: minLP}, err
	case strategy.IDAddTwoSidesOptimal:
		paired, err := get("pairedAmount", req.PairedAmount)
		if err != nil {
			return nil, err
		}
		minLP, err := get("minLp", req.MinLP)
		return strategy.AddTwoSidesParams{PairedAmount: paired, MinLP: minLP}, err
	case strategy.IDLiquidate:
		minBase, err := get("minBase", req.MinBase)
		return strategy.LiquidateParams{MinBase: minBase}, err
	case strategy.IDWithdrawMinimizeTrading:
		minPaired, err := get("minPaired", req.MinPaired)
		return strategy.WithdrawMinimizeParams{MinPaired: minPaired}, err
	default:
		return nil, fmt.Errorf("unsupported strategy %s", id)
	}
}

func (a *api) work(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req workRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	work, err := req.toWorkRequest()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := a.proto.Work(r.Context(), caller, work)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positionId": res.PositionID,
		"returned":   amount(res.Returned),
		"repaid":     amount(res.Repaid),
		"payout":     amount(res.Payout),
		"debt":       amount(res.Debt),
	})
}

func (a *api) kill(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("invalid position id"))
		return
	}
	res, err := a.proto.Kill(r.Context(), caller, id)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"debt":       amount(res.Debt),
		"released":   amount(res.Released),
		"bounty":     amount(res.Bounty),
		"reserveCut": amount(res.ReserveCut),
		"left":       amount(res.Left),
		"badDebt":    amount(res.BadDebt),
	})
}

func (a *api) reinvest(w http.ResponseWriter, r *http.Request) {
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
	bounty, err := a.proto.Reinvest(r.Context(), caller, vault)
	if err != nil {
		a.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bounty": amount(bounty)})
}
