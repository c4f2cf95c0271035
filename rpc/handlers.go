package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

const (
	defaultLimit = 100
	maxLimit     = 1000

	// MaxBatchSize bounds the request body of a batch submission.
	MaxBatchSize = 64 << 20
)

type handler struct {
	receipts  *store.ReceiptStore
	submitter Submitter
	logger    log.Logger
	router    *mux.Router
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	LatestBatchID *uint64 `json:"latest_batch_id,omitempty"`
}

// ReceiptsResponse is returned by GET /receipts.
type ReceiptsResponse struct {
	Receipts []*types.SubmissionReceipt `json:"receipts"`
}

// ErrorResponse is returned with every non 2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newHandler(receipts *store.ReceiptStore, submitter Submitter, logger log.Logger) *handler {
	h := &handler{
		receipts:  receipts,
		submitter: submitter,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	h.router.HandleFunc("/health", h.health).Methods(http.MethodGet, http.MethodHead)
	h.router.HandleFunc("/receipts", h.list).Methods(http.MethodGet)
	h.router.HandleFunc("/receipts/latest", h.latest).Methods(http.MethodGet)
	h.router.HandleFunc("/receipts/{batch_id:[0-9]+}", h.get).Methods(http.MethodGet)
	if submitter != nil {
		h.router.HandleFunc("/batches/{batch_id:[0-9]+}", h.submit).Methods(http.MethodPost)
	}
	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	res := HealthResponse{Status: "ok"}
	if id, ok := h.receipts.LatestBatchID(); ok {
		res.LatestBatchID = &id
	}
	h.writeResponse(w, res)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	from, err := uintParam(r, "from", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := uintParam(r, "limit", defaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	receipts, err := h.receipts.Receipts(from, int(limit))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if receipts == nil {
		receipts = []*types.SubmissionReceipt{}
	}
	h.writeResponse(w, ReceiptsResponse{Receipts: receipts})
}

func (h *handler) latest(w http.ResponseWriter, _ *http.Request) {
	id, ok := h.receipts.LatestBatchID()
	if !ok {
		h.writeError(w, http.StatusNotFound, errors.New("no receipts"))
		return
	}
	h.writeReceipt(w, id)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["batch_id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeReceipt(w, id)
}

// submit publishes the request body as a batch. Rounds that do not commit are
// answered with 502 and the receipt as body.
func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["batch_id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBatchSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.submitter.Publish(r.Context(), &types.Batch{ID: id, Data: data})
	if receipt == nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err != nil {
		h.logger.Error("failed to journal receipt", "batch", id, "error", err)
	}
	status := http.StatusOK
	if !receipt.Committed() {
		status = http.StatusBadGateway
	}
	h.writeStatusResponse(w, status, receipt)
}

func (h *handler) writeReceipt(w http.ResponseWriter, batchID uint64) {
	receipt, err := h.receipts.GetReceipt(batchID)
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		h.writeError(w, http.StatusNotFound, fmt.Errorf("no receipt for batch %d", batchID))
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err)
	default:
		h.writeResponse(w, receipt)
	}
}

func uintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func (h *handler) writeResponse(w http.ResponseWriter, payload interface{}) {
	h.writeStatusResponse(w, http.StatusOK, payload)
}

func (h *handler) writeStatusResponse(w http.ResponseWriter, status int, payload interface{}) {
	resp, err := json.Marshal(payload)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp, jerr := json.Marshal(ErrorResponse{Error: err.Error()})
	if jerr != nil {
		h.logger.Error("failed to serialize error message", "error", jerr)
		return
	}
	if _, werr := w.Write(resp); werr != nil {
		h.logger.Error("failed to write response", "error", werr)
	}
}
