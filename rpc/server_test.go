package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/coordinator"
	"github.com/rollkit/multida/da"
	damock "github.com/rollkit/multida/da/mock"
	testlog "github.com/rollkit/multida/log/test"
	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

func newTestServer(t *testing.T, ids ...uint64) (*Server, *store.ReceiptStore) {
	t.Helper()
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)
	for _, id := range ids {
		outcomes := []types.SubmissionOutcome{{BackendID: "ledger-0", Status: types.OutcomeSuccess, Location: types.Location{{0xab}}, Submitted: 1}}
		r := types.NewSubmissionReceipt(id, 1, 1, types.RoundCommitted, outcomes, time.Now(), time.Millisecond)
		require.NoError(t, receipts.SaveReceipt(r))
	}
	return NewServer(receipts, config.DefaultNodeConfig().RPC, testlog.NewTestLogger(t)), receipts
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	srv, _ = newTestServer(t, 4, 2)
	rec = get(t, srv.Handler(), "/health")
	assert.JSONEq(t, `{"status":"ok","latest_batch_id":4}`, rec.Body.String())
}

func TestGetReceipt(t *testing.T) {
	srv, _ := newTestServer(t, 1, 2)
	h := srv.Handler()

	rec := get(t, h, "/receipts/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var r types.SubmissionReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, uint64(2), r.BatchID())
	assert.Equal(t, types.RoundCommitted, r.Status())

	rec = get(t, h, "/receipts/3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Contains(t, e.Error, "batch 3")

	rec = get(t, h, "/receipts/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/receipts/99999999999999999999999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestReceipt(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/receipts/latest").Code)

	srv, _ = newTestServer(t, 3, 8, 5)
	rec := get(t, srv.Handler(), "/receipts/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var r types.SubmissionReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, uint64(8), r.BatchID())
}

func TestListReceipts(t *testing.T) {
	srv, _ := newTestServer(t, 1, 2, 3, 4)
	h := srv.Handler()

	cases := []struct {
		name     string
		target   string
		code     int
		expected []uint64
	}{
		{"all", "/receipts", http.StatusOK, []uint64{1, 2, 3, 4}},
		{"from", "/receipts?from=3", http.StatusOK, []uint64{3, 4}},
		{"limit", "/receipts?from=2&limit=1", http.StatusOK, []uint64{2}},
		{"empty", "/receipts?from=10", http.StatusOK, []uint64{}},
		{"invalid from", "/receipts?from=x", http.StatusBadRequest, nil},
		{"invalid limit", "/receipts?limit=-1", http.StatusBadRequest, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := get(t, h, c.target)
			require.Equal(t, c.code, rec.Code)
			if c.code != http.StatusOK {
				return
			}
			var res ReceiptsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			ids := []uint64{}
			for _, r := range res.Receipts {
				ids = append(ids, r.BatchID())
			}
			assert.Equal(t, c.expected, ids)
		})
	}
}

func TestCORS(t *testing.T) {
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)
	cfg := config.DefaultNodeConfig().RPC
	cfg.CORSAllowedOrigins = []string{"https://explorer.example"}
	srv := NewServer(receipts, cfg, testlog.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://explorer.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://explorer.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun(t *testing.T) {
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := config.DefaultNodeConfig().RPC
	cfg.ListenAddress = "tcp://" + addr
	srv := NewServer(receipts, cfg, testlog.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close() //nolint:errcheck
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSubmitBatch(t *testing.T) {
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)

	ok := damock.NewDummyBackend("ok", 8)
	c := coordinator.New(coordinator.WithLogger(testlog.NewTestLogger(t)))
	publisher := coordinator.NewPublisher(c, []da.Backend{ok}, types.All(), receipts)
	srv := NewServer(receipts, config.DefaultNodeConfig().RPC, testlog.NewTestLogger(t), WithSubmitter(publisher))
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batches/5", strings.NewReader("hello multida")))
	require.Equal(t, http.StatusOK, rec.Code)

	var r types.SubmissionReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, uint64(5), r.BatchID())
	assert.True(t, r.Committed())
	assert.Equal(t, 2, ok.Stored())

	rec = get(t, h, "/receipts/5")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitBatchNotCommitted(t *testing.T) {
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)

	bad := damock.NewDummyBackend("bad", 8, damock.WithBehavior(damock.Fail))
	c := coordinator.New(coordinator.WithLogger(testlog.NewTestLogger(t)))
	srv := NewServer(receipts, config.DefaultNodeConfig().RPC, testlog.NewTestLogger(t),
		WithSubmitter(coordinator.NewPublisher(c, []da.Backend{bad}, types.All(), receipts)))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batches/1", strings.NewReader("data")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	status, err := receipts.Status(1)
	require.NoError(t, err)
	assert.Equal(t, types.RoundFailed, status)
}

func TestSubmitDisabledWithoutSubmitter(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batches/1", strings.NewReader("data")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSubmitBatchBodyErrors(t *testing.T) {
	receipts, err := store.NewReceiptStore(store.NewInMemoryKVStore())
	require.NoError(t, err)

	ok := damock.NewDummyBackend("ok", 1<<20)
	c := coordinator.New(coordinator.WithLogger(testlog.NewTestLogger(t)))
	srv := NewServer(receipts, config.DefaultNodeConfig().RPC, testlog.NewTestLogger(t),
		WithSubmitter(coordinator.NewPublisher(c, []da.Backend{ok}, types.All(), receipts)))

	cases := []struct {
		name string
		body io.Reader
		code int
	}{
		{"too large", io.LimitReader(zeroReader{}, MaxBatchSize+1), http.StatusRequestEntityTooLarge},
		{"read failure", brokenReader{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batches/1", tc.body))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
	assert.Zero(t, ok.Calls())
	_, found := receipts.LatestBatchID()
	assert.False(t, found)
}
