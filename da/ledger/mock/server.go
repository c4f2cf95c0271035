package mock

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	mux2 "github.com/gorilla/mux"

	"github.com/rollkit/multida/libs/cnrc"
	"github.com/rollkit/multida/log"
)

// Server emulates the REST gateway of a ledger DA node. Every accepted
// PayForData lands in its own block.
type Server struct {
	logger log.Logger

	mtx        sync.Mutex
	height     uint64
	blobs      map[string][][]byte
	authToken  string
	rejectCode uint32
	delay      time.Duration
	srv        *http.Server
}

// NewServer creates a mock gateway.
func NewServer(logger log.Logger) *Server {
	return &Server{
		logger: logger,
		blobs:  make(map[string][][]byte),
	}
}

// RequireAuthToken makes the gateway reject requests without the bearer token.
func (s *Server) RequireAuthToken(token string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.authToken = token
}

// RejectWithCode makes every following submission fail with the given tx code.
// Zero restores normal behavior.
func (s *Server) RejectWithCode(code uint32) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.rejectCode = code
}

// SetDelay delays every response.
func (s *Server) SetDelay(delay time.Duration) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.delay = delay
}

// Height returns the height of the latest block.
func (s *Server) Height() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.height
}

// Start serves the gateway on listener until Stop is called.
func (s *Server) Start(listener net.Listener) error {
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: time.Second}
	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("listener", "error", err)
		}
	}()
	return nil
}

// Stop shuts the gateway down.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

// Handler returns the gateway routes, for use with httptest.
func (s *Server) Handler() http.Handler {
	mux := mux2.NewRouter()
	mux.HandleFunc("/submit_pfd", s.submit).Methods(http.MethodPost)
	mux.HandleFunc("/namespaced_data/{namespace}/height/{height}", s.data).Methods(http.MethodGet)
	mux.Use(s.authenticate, s.throttle)
	return mux
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		token := s.authToken
		s.mtx.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			s.writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid auth token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		delay := s.delay
		s.mtx.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	req := cnrc.SubmitPFDRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := hex.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mtx.Lock()
	if s.rejectCode != 0 {
		code := s.rejectCode
		s.mtx.Unlock()
		s.writeResponse(w, cnrc.TxResponse{
			Code:      code,
			Codespace: "sdk",
			RawLog:    "insufficient fees",
		})
		return
	}
	s.height++
	height := s.height
	s.blobs[blobKey(req.NamespaceID, height)] = append(s.blobs[blobKey(req.NamespaceID, height)], data)
	s.mtx.Unlock()

	s.writeResponse(w, cnrc.TxResponse{
		Height: int64(height),
		TxHash: fmt.Sprintf("%064X", height),
	})
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	vars := mux2.Vars(r)

	height, err := strconv.ParseUint(vars["height"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mtx.Lock()
	if height > s.height {
		s.mtx.Unlock()
		s.writeError(w, http.StatusNotFound, fmt.Errorf("height %d is from the future", height))
		return
	}
	data := s.blobs[blobKey(vars["namespace"], height)]
	s.mtx.Unlock()

	s.writeResponse(w, cnrc.NamespacedDataResponse{
		Data:   data,
		Height: height,
	})
}

func (s *Server) writeResponse(w http.ResponseWriter, payload interface{}) {
	resp, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp, jerr := json.Marshal(err.Error())
	if jerr != nil {
		s.logger.Error("failed to serialize error message", "error", jerr)
	}
	if _, werr := w.Write(resp); werr != nil {
		s.logger.Error("failed to write response", "error", werr)
	}
}

func blobKey(namespace string, height uint64) string {
	return namespace + "/" + strconv.FormatUint(height, 10)
}
