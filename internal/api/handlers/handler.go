package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/api/middleware"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/observability"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/repository"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/service"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger    *zap.Logger
	users     *repository.UserRepository
	devices   *repository.DeviceRepository
	positions *repository.PositionRepository
	tracker   *service.Tracker
	wsHub     *ws.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	users *repository.UserRepository,
	devices *repository.DeviceRepository,
	positions *repository.PositionRepository,
	tracker *service.Tracker,
	wsHub *ws.Hub,
	jwtSecret string,
) *Handler {
	return &Handler{
		logger:    logger,
		users:     users,
		devices:   devices,
		positions: positions,
		tracker:   tracker,
		wsHub:     wsHub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	authRequired := middleware.AuthRequired(h.jwtSecret)

	// API 路由
	api := r.Group("/api")
	{
		// 认证
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.PUT("/auth/profile", authRequired, h.UpdateProfile)

		// 设备
		api.GET("/devices", authRequired, h.ListDevices)
		api.POST("/devices", authRequired, h.AddDevice)
		api.GET("/devices/:deviceId/history", authRequired, h.GetHistory)
		api.DELETE("/devices/:deviceId/history", authRequired, h.DeleteHistory)

		// 模拟入口，与 TCP 路径共用同一套持久化与推送序列
		api.POST("/devices/simulate", h.Simulate)

		// 管理端
		admin := api.Group("/admin", authRequired, middleware.RequireAdmin())
		{
			admin.GET("/tenants", h.ListTenants)
			admin.POST("/tenants", h.CreateTenant)
			admin.POST("/devices", h.AssignDevice)
		}
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查与指标
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", observability.MetricsHandler())
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
