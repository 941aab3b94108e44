package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/state"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
)

const requestLimit = 1 << 20 // 1 MiB

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// parseAmount reads a non-negative base-10 integer. An empty string yields
// nil when the field is optional.
func parseAmount(field, raw string, required bool) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return nil, fmt.Errorf("%s is required", field)
		}
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return v, nil
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

// writeProtocolError maps a failed protocol call onto an HTTP status. Revert
// reasons are returned verbatim with 422.
func (a *api) writeProtocolError(w http.ResponseWriter, err error) {
	if reason := nativecommon.ReasonOf(err); reason != "" {
		writeJSONError(w, http.StatusUnprocessableEntity, errors.New(reason))
		return
	}
	switch {
	case errors.Is(err, core.ErrUnknownVault):
		writeJSONError(w, http.StatusNotFound, err)
	case errors.Is(err, state.ErrInsufficientBalance):
		writeJSONError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeJSONError(w, http.StatusServiceUnavailable, err)
	default:
		a.logger.Error("protocol call failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// writeLookupError is writeProtocolError for reads, where a missing position
// is a 404 rather than a revert.
func (a *api) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, lending.ErrUnknownPosition) {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	a.writeProtocolError(w, err)
}
