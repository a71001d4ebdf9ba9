package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// TCPConnectionsActive 当前保持的设备 TCP 连接数
	TCPConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gps_tcp_connections_active",
		Help: "Currently open tracker TCP connections",
	})
	// MessagesDecoded 按方言统计解码成功的报文数
	MessagesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_messages_decoded_total",
		Help: "Messages decoded successfully, by dialect",
	}, []string{"dialect"})
	// DecodeFailures 未识别或畸形而被丢弃的报文数
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_decode_failures_total",
		Help: "Messages dropped as unrecognized or malformed",
	})
	// PositionsSaved 成功落库的位置记录数
	PositionsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_positions_saved_total",
		Help: "Position rows persisted",
	})
	// StoreErrors 持久化失败次数（被隔离、不中断会话）
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_store_errors_total",
		Help: "Persistence failures contained by the ingestion path",
	})
	// EventsPublished 按事件类型统计推送数
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_events_published_total",
		Help: "Events published to the broadcast hub, by type",
	}, []string{"event"})
)

// MetricsHandler 暴露 /metrics 的 gin 处理函数
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
