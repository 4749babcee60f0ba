package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

// Health reports liveness plus a few host numbers. Host stats are best
// effort and left out when unavailable.
func (h *Handler) Health(c *gin.Context) {
	info := gin.H{
		"status":         "ok",
		"version":        h.Version,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	}
	if h.Hub != nil {
		info["stream_subscribers"] = h.Hub.Subscribers()
	}

	ctx := c.Request.Context()
	if usage, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(usage) > 0 {
		info["cpu_usage"] = usage[0]
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory_total"] = memInfo.Total
		info["memory_used"] = memInfo.Used
		info["memory_used_percent"] = memInfo.UsedPercent
	}
	c.JSON(http.StatusOK, info)
}
