package handlers

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/models"
)

// SIM 卡号：0 开头共 10 位数字
var simPhoneRe = regexp.MustCompile(`^0\d{9}$`)

// ListTenants 获取全部租户
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.users.ListTenants(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list tenants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tenants"})
		return
	}

	c.JSON(http.StatusOK, tenants)
}

// CreateTenant 创建租户并附带管理员账号
func (h *Handler) CreateTenant(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		AdminEmail    string `json:"adminEmail" binding:"required,email"`
		AdminPassword string `json:"adminPassword" binding:"required,min=6"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tenant"})
		return
	}

	if _, err := h.users.CreateTenant(c.Request.Context(), req.Name, req.AdminEmail, string(hash)); err != nil {
		h.logger.Error("Failed to create tenant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tenant"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Tenant created successfully"})
}

// AssignDevice 把设备登记到指定租户
func (h *Handler) AssignDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"deviceId" binding:"required"`
		Name     string `json:"name"`
		TenantID int64  `json:"tenantId" binding:"required"`
		SimPhone string `json:"simPhone"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device ID and Tenant ID are required"})
		return
	}

	if req.SimPhone != "" && !simPhoneRe.MatchString(req.SimPhone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SIM Phone must start with 0 and be exactly 10 digits"})
		return
	}

	name := req.Name
	if name == "" {
		name = req.DeviceID
	}
	device := &models.Device{
		DeviceID: req.DeviceID,
		Name:     name,
		TenantID: &req.TenantID,
	}
	if req.SimPhone != "" {
		device.SimPhone = &req.SimPhone
	}

	if err := h.devices.Create(c.Request.Context(), device); err != nil {
		h.logger.Error("Failed to assign device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign device"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Device assigned successfully"})
}
