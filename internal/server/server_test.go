package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/probe"
	"github.com/dhruv3/CudaCode/internal/sieve"
	"github.com/dhruv3/CudaCode/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts ...device.HostOption) (*Server, *storage.Store) {
	t.Helper()
	// Lanes run one at a time so the suite is clean under -race.
	serial := device.WithLaneOrder(func(lanes int) []int {
		order := make([]int, lanes)
		for i := range order {
			order[i] = i
		}
		return order
	})
	opts = append([]device.HostOption{device.WithComputeVersion(7, 0), serial}, opts...)
	eng := sieve.New(device.NewHostDevice(opts...), sieve.WithMaxBound(1_000_000))
	st := storage.New(t.TempDir())
	return New(eng, probe.DefaultPolicy(), st), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSieveHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()

	rec := do(t, h, http.MethodPost, "/api/sieve", SieveRequest{Bound: 102})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 102, resp.Bound)
	assert.Equal(t, 26, resp.Count)
	assert.Equal(t, 2, resp.Primes[0])
	assert.Equal(t, 101, resp.Primes[25])
	assert.Equal(t, "1x11", resp.Launch)
	assert.Equal(t, 1024, resp.Width)
	assert.Empty(t, resp.RunID)
}

func TestSieveHandlerCountOnlyAndSave(t *testing.T) {
	s, st := newTestServer(t)
	h := s.GenerateRoutes()

	rec := do(t, h, http.MethodPost, "/api/sieve", SieveRequest{Bound: 1000, CountOnly: true, Save: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 168, resp.Count)
	assert.Nil(t, resp.Primes)
	require.NotEmpty(t, resp.RunID)

	meta, err := st.Load(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, 168, meta.PrimeCount)

	rec = do(t, h, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []storage.RunMetadata `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, resp.RunID, list.Runs[0].ID)
}

func TestSieveHandlerErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()

	cases := []struct {
		name string
		body any
		code int
	}{
		{"below two", SieveRequest{Bound: 1}, http.StatusBadRequest},
		{"above maximum", SieveRequest{Bound: 2_000_000}, http.StatusBadRequest},
		{"not json", "bound=10", http.StatusBadRequest},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/sieve", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestSieveHandlerDeviceUnavailable(t *testing.T) {
	s, _ := newTestServer(t, device.WithComputeMode(device.ComputeProhibited))
	rec := do(t, s.GenerateRoutes(), http.MethodPost, "/api/sieve", SieveRequest{Bound: 102})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe")
}

func TestProbeHandler(t *testing.T) {
	s, _ := newTestServer(t, device.WithMaxLanesPerGroup(256))
	rec := do(t, s.GenerateRoutes(), http.MethodGet, "/api/probe", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7.0", resp.Compute)
	assert.Equal(t, "default", resp.Mode)
	assert.Equal(t, 256, resp.Width)
}

func TestShowHandlerNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.GenerateRoutes(), http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShowHandlerInvalidID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()
	for _, path := range []string{"/api/runs/..", "/api/runs/%2e%2e", "/api/runs/..%2Fsecret"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.NotEqual(t, http.StatusOK, rec.Code, path)
		assert.NotEqual(t, http.StatusInternalServerError, rec.Code, path)
	}

	rec := do(t, h, http.MethodGet, "/api/runs/%2e%2e", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "invalid run id")
}

func TestNoStore(t *testing.T) {
	eng := sieve.New(device.NewHostDevice())
	h := New(eng, probe.DefaultPolicy(), nil).GenerateRoutes()

	rec := do(t, h, http.MethodPost, "/api/sieve", SieveRequest{Bound: 10, Save: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestServeShutsDown(t *testing.T) {
	s, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, s) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
