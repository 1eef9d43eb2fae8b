// Package server exposes the sieve engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/probe"
	"github.com/dhruv3/CudaCode/internal/sieve"
	"github.com/dhruv3/CudaCode/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	eng    *sieve.Engine
	policy probe.Policy
	store  *storage.Store
}

// New returns a server for eng. store may be nil, in which case runs cannot
// be saved or listed.
func New(eng *sieve.Engine, policy probe.Policy, store *storage.Store) *Server {
	return &Server{eng: eng, policy: policy, store: store}
}

type SieveRequest struct {
	Bound     int  `json:"bound"`
	CountOnly bool `json:"count_only,omitempty"`
	Save      bool `json:"save,omitempty"`
}

type SieveResponse struct {
	Bound   int           `json:"bound"`
	Count   int           `json:"count"`
	Primes  []int         `json:"primes,omitempty"`
	Device  string        `json:"device"`
	Launch  string        `json:"launch"`
	Width   int           `json:"width"`
	Elapsed time.Duration `json:"elapsed_ns"`
	RunID   string        `json:"run_id,omitempty"`
}

type ProbeResponse struct {
	Name             string   `json:"name"`
	Compute          string   `json:"compute"`
	Mode             string   `json:"mode"`
	MaxLanesPerGroup int      `json:"max_lanes_per_group"`
	MaxGroups        int      `json:"max_groups"`
	TotalMemory      uint64   `json:"total_memory"`
	Units            int      `json:"units"`
	Features         []string `json:"features,omitempty"`
	Width            int      `json:"width"`
}

func (s *Server) GenerateRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "gpusieve is running")
	})
	r.HEAD("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/api/probe", s.ProbeHandler)
	r.POST("/api/sieve", s.SieveHandler)
	r.GET("/api/runs", s.ListHandler)
	r.GET("/api/runs/:id", s.ShowHandler)

	return r
}

func (s *Server) ProbeHandler(c *gin.Context) {
	res, err := probe.Run(s.eng.Device(), s.policy)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	capability := res.Capability
	c.JSON(http.StatusOK, ProbeResponse{
		Name:             capability.Name,
		Compute:          capability.Version(),
		Mode:             capability.Mode.String(),
		MaxLanesPerGroup: capability.MaxLanesPerGroup,
		MaxGroups:        capability.MaxGroups,
		TotalMemory:      capability.TotalMemory,
		Units:            capability.Units,
		Features:         capability.Features,
		Width:            res.Width,
	})
}

func (s *Server) SieveHandler(c *gin.Context) {
	var req SieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Save && s.store == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "run storage is not configured"})
		return
	}

	res, err := s.eng.Run(c.Request.Context(), req.Bound)
	if err != nil {
		slog.Warn("sieve request failed", "bound", req.Bound, "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	primes := res.Primes()
	resp := SieveResponse{
		Bound:   res.Bound,
		Count:   len(primes),
		Device:  res.Capability.Name,
		Launch:  res.Launch.String(),
		Width:   res.Width,
		Elapsed: res.Elapsed,
	}
	if !req.CountOnly {
		resp.Primes = primes
	}

	if req.Save {
		runID, err := s.store.Save(res)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.RunID = runID
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []storage.RunMetadata{}})
		return
	}

	runs, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) ShowHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run storage is not configured"})
		return
	}

	meta, err := s.store.Load(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidRunID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sieve.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, device.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Serve handles requests on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, s *Server) error {
	srv := &http.Server{
		Handler:           s.GenerateRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", ln.Addr().String(), "device", s.eng.Device().Name())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
