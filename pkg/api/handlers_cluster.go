package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// listNodes handles GET /api/v1/cluster/nodes
func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.registry.GetActiveNodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get nodes: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// CapacityResponse reports resource headroom of the host serving the API.
type CapacityResponse struct {
	CPUCount       int       `json:"cpu_count"`
	CPUPercent     float64   `json:"cpu_percent"`
	Load1          float64   `json:"load_1"`
	MemoryTotalMB  uint64    `json:"memory_total_mb"`
	MemoryUsedMB   uint64    `json:"memory_used_mb"`
	MemoryPercent  float64   `json:"memory_percent"`
	GoMaxProcs     int       `json:"gomaxprocs"`
	CollectedAt    time.Time `json:"collected_at"`
}

// getCapacity handles GET /api/v1/cluster/capacity
func (s *Server) getCapacity(c *gin.Context) {
	resp := CapacityResponse{
		GoMaxProcs:  runtime.GOMAXPROCS(0),
		CollectedAt: time.Now().UTC(),
	}

	if count, err := cpu.Counts(true); err == nil {
		resp.CPUCount = count
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if avg, err := load.Avg(); err == nil {
		resp.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryTotalMB = vm.Total / (1 << 20)
		resp.MemoryUsedMB = vm.Used / (1 << 20)
		resp.MemoryPercent = vm.UsedPercent
	}

	c.JSON(http.StatusOK, resp)
}
