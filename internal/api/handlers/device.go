package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/api/middleware"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/service"
)

// ListDevices 获取租户全部设备及最新位置
func (h *Handler) ListDevices(c *gin.Context) {
	user := middleware.CurrentUser(c)

	devices, err := h.devices.ListByTenant(c.Request.Context(), user.TenantID)
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
		return
	}

	c.JSON(http.StatusOK, devices)
}

// AddDevice 为当前租户登记新设备
func (h *Handler) AddDevice(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req struct {
		DeviceID string `json:"deviceId" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	device := &models.Device{
		DeviceID: req.DeviceID,
		Name:     req.Name,
		TenantID: &user.TenantID,
	}
	if err := h.devices.Create(c.Request.Context(), device); err != nil {
		h.logger.Error("Failed to add device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add device"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Device added"})
}

// GetHistory 查询设备历史轨迹，可选 start/end 时间范围（RFC3339）
func (h *Handler) GetHistory(c *gin.Context) {
	deviceID := c.Param("deviceId")

	var start, end *time.Time
	if s, e := c.Query("start"), c.Query("end"); s != "" && e != "" {
		st, err1 := time.Parse(time.RFC3339, s)
		et, err2 := time.Parse(time.RFC3339, e)
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time range"})
			return
		}
		start, end = &st, &et
	}

	positions, err := h.positions.History(c.Request.Context(), deviceID, start, end)
	if err != nil {
		h.logger.Error("Failed to fetch history", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, positions)
}

// DeleteHistory 清空设备历史轨迹
func (h *Handler) DeleteHistory(c *gin.Context) {
	deviceID := c.Param("deviceId")

	if err := h.positions.DeleteByDevice(c.Request.Context(), deviceID); err != nil {
		h.logger.Error("Failed to delete history", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "History deleted successfully"})
}

// Simulate 模拟定位入口：结构化输入直接进入与 TCP 路径相同的管线。
// 同步调用方能看到失败，位置写入与状态更新不会只应用一半。
func (h *Handler) Simulate(c *gin.Context) {
	var upd service.LocationUpdate
	if err := c.BindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	upd.Timestamp = time.Now()

	if err := h.tracker.ProcessLocationUpdate(c.Request.Context(), upd); err != nil {
		h.logger.Error("Simulation failed", zap.String("device_id", upd.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Simulation data processed"})
}
