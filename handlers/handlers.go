package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dpow-project/chain"
	"dpow-project/logger"
	"dpow-project/models"
	"dpow-project/repository"
	"dpow-project/wallet"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxConf is the listunspent upper bound when maxconf is not given.
const DefaultMaxConf int64 = 9999999

// Handler contains the HTTP handlers for the chain, notarization and wallet endpoints
type Handler struct {
	Chain          *chain.Chain
	Wallet         *wallet.Service
	DefaultMinConf int64
}

// NewHandler creates and returns a new Handler instance
func NewHandler(c *chain.Chain, w *wallet.Service, defaultMinConf int64) *Handler {
	return &Handler{Chain: c, Wallet: w, DefaultMinConf: defaultMinConf}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error from the chain or wallet layer to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidHash),
		errors.Is(err, models.ErrInvalidCheckpoint),
		errors.Is(err, wallet.ErrInvalidOutput):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrOrphanBlock),
		errors.Is(err, chain.ErrBlockExists),
		errors.Is(err, chain.ErrHashMismatch):
		return http.StatusConflict
	case errors.Is(err, chain.ErrUnknownHeight),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, wallet.ErrTxNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// confParam reads a non-negative confirmation bound from the query string.
func confParam(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

// ConnectBlock handles POST requests that append a block to the chain
func (h *Handler) ConnectBlock(w http.ResponseWriter, r *http.Request) {
	var block models.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		logger.Logger.Error("Failed to decode block", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ref, err := h.Chain.ConnectBlock(&block)
	if err != nil {
		logger.Logger.Error("Failed to connect block", zap.Stringer("hash", block.Hash), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Block connected successfully",
		"block":   ref,
	})
}

// GetBlock handles GET requests for the block at a height
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "height must be an integer")
		return
	}

	block, err := h.Chain.BlockAt(height)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// SubmitNotarization handles POST requests carrying a notarization checkpoint
// from the relay. Stale and duplicate checkpoints are accepted and ignored.
func (h *Handler) SubmitNotarization(w http.ResponseWriter, r *http.Request) {
	var cp models.Checkpoint
	if err := json.NewDecoder(r.Body).Decode(&cp); err != nil {
		logger.Logger.Error("Failed to decode notarization", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	applied, err := h.Chain.SubmitNotarization(cp)
	if err != nil {
		logger.Logger.Warn("Rejected notarization",
			zap.Int64("height", cp.Height), zap.Stringer("hash", cp.Hash), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	message := "Notarization ignored"
	if applied {
		status = http.StatusAccepted
		message = "Notarization applied"
	}
	writeJSON(w, status, map[string]interface{}{
		"message":    message,
		"applied":    applied,
		"checkpoint": cp,
	})
}

// GetInfo handles GET requests for the tip and notarization summary
func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Wallet.GetInfo())
}

// RecordOutput handles POST requests registering a wallet output
func (h *Handler) RecordOutput(w http.ResponseWriter, r *http.Request) {
	var out models.Output
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		logger.Logger.Error("Failed to decode output", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	out.Inclusion = nil

	if err := h.Wallet.RecordOutput(&out); err != nil {
		logger.Logger.Error("Failed to record output", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Output recorded successfully",
		"output":  out,
	})
}

// ListUnspent handles GET requests for unspent outputs within a confirmation range
func (h *Handler) ListUnspent(w http.ResponseWriter, r *http.Request) {
	minConf, err := confParam(r, "minconf", h.DefaultMinConf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxConf, err := confParam(r, "maxconf", DefaultMaxConf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.Wallet.ListUnspent(minConf, maxConf)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListReceivedByAddress handles GET requests for per-address received totals
func (h *Handler) ListReceivedByAddress(w http.ResponseWriter, r *http.Request) {
	minConf, err := confParam(r, "minconf", h.DefaultMinConf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.Wallet.ListReceivedByAddress(minConf)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetBalance handles GET requests for the wallet balance at a minconf
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	minConf, err := confParam(r, "minconf", h.DefaultMinConf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.Wallet.GetBalance(minConf)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"balance": balance,
		"minconf": minConf,
	})
}

// GetTransaction handles GET requests for a wallet transaction by txid
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txid, err := models.NewHashFromString(mux.Vars(r)["txid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.Wallet.GetTransaction(txid)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
