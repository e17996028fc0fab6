// Package rest serves a finished search over HTTP: the run status, the
// ranked finalists and the full measurement dump. It only ever reads a
// persisted snapshot after the search process has exited, so it never
// contends with an active search for the checkpoint state.
package rest

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/core"
	"github.com/llm-inferno/config-explorer/pkg/search"
)

// Server exposing search results
type Server struct {
	router *gin.Engine
	store  *checkpoint.Store
	report *search.Report
}

// NewServer creates a results server over a checkpoint directory and an
// optional report of the last run
func NewServer(store *checkpoint.Store, report *search.Report) *Server {
	server := &Server{
		router: gin.Default(),
		store:  store,
		report: report,
	}

	server.router.GET("/status", server.getStatus)
	server.router.GET("/results", server.getResults)
	server.router.GET("/measurements", server.getMeasurements)
	server.router.GET("/measurements/:model", server.getModelMeasurements)

	return server
}

// WithMetrics exposes a Prometheus gatherer on /metrics
func (s *Server) WithMetrics(gatherer prometheus.Gatherer) *Server {
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Run starts serving on the host and port from the environment
func (s *Server) Run() error {
	host := os.Getenv(RestHostEnvName)
	if host == "" {
		host = DefaultHost
	}
	port := os.Getenv(RestPortEnvName)
	if port == "" {
		port = DefaultPort
	}
	return s.router.Run(host + ":" + port)
}

func (s *Server) getStatus(c *gin.Context) {
	state, err := s.store.Load()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	status := gin.H{
		"checkpointDir": s.store.Dir(),
		"runID":         state.RunID(),
		"version":       state.Version(),
		"measurements":  state.Len(),
	}
	if s.report != nil {
		status["mode"] = s.report.Mode
		status["interrupted"] = s.report.Interrupted
	}
	c.IndentedJSON(http.StatusOK, status)
}

func (s *Server) getResults(c *gin.Context) {
	if s.report == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "no completed run in this process"})
		return
	}
	c.IndentedJSON(http.StatusOK, s.report)
}

func (s *Server) getMeasurements(c *gin.Context) {
	state, err := s.store.Load()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, state.Measurements())
}

func (s *Server) getModelMeasurements(c *gin.Context) {
	model := c.Param("model")
	state, err := s.store.Load()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	var filtered []*core.Measurement
	for _, m := range state.Measurements() {
		if m.Config.ModelName == model {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "model " + model + " has no measurements"})
		return
	}
	c.IndentedJSON(http.StatusOK, filtered)
}
