package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obiente/whisperbridge/internal/version"
	"github.com/obiente/whisperbridge/internal/whisper"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"version":   version.Info(),
		"telemetry": s.recorder.Snapshot(),
	})
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"system_info": whisper.SystemInfo()})
}

func (s *Server) handleBench(c *gin.Context) {
	threads := s.cfg.Threads
	if v := c.Query("threads"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threads"})
			return
		}
		threads = n
	}

	kind := c.Param("kind")
	var result string
	switch kind {
	case "memcpy":
		result = whisper.BenchMemcpy(threads)
	case "matmul":
		result = whisper.BenchMatMul(threads)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown bench kind"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "threads": threads, "result": result})
}
