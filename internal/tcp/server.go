package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/observability"
)

// 一个读事件即一条逻辑报文，方言均不做分帧
const readBufferSize = 2048

// BP05 登录/保活标记及其协议应答
const (
	loginMarker = "BP05"
	loginReply  = "(AP05)"
)

// Ingestor 每条报文的处理方
type Ingestor interface {
	HandleRaw(ctx context.Context, payload string, receivedAt time.Time)
}

// Server 设备接入 TCP 服务
type Server struct {
	addr     string
	logger   *zap.Logger
	ingestor Ingestor
}

// NewServer 创建 TCP 服务
func NewServer(addr string, logger *zap.Logger, ingestor Ingestor) *Server {
	return &Server{
		addr:     addr,
		logger:   logger,
		ingestor: ingestor,
	}
}

// ListenAndServe 接受设备连接直到 ctx 取消。
// 单个连接的错误只终止该连接，监听循环继续服务其他设备。
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("TCP server listening", zap.String("addr", s.addr))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Accept failed", zap.Error(err))
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection 单连接会话：同一连接内报文严格串行处理，
// 保证单台设备状态转换的先后次序。
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	observability.TCPConnectionsActive.Inc()
	defer observability.TCPConnectionsActive.Dec()

	remote := conn.RemoteAddr().String()
	s.logger.Info("Device connected", zap.String("remote", remote))
	defer s.logger.Info("Device disconnected", zap.String("remote", remote))

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	buffer := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("Read failed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}
		if n == 0 {
			continue
		}

		payload := string(buffer[:n])
		s.ingestor.HandleRaw(ctx, payload, time.Now())

		// 旧设备族的登录握手：原样应答，不解析具体字段
		if strings.Contains(payload, loginMarker) {
			if _, err := conn.Write([]byte(loginReply)); err != nil {
				s.logger.Warn("Login reply failed", zap.String("remote", remote), zap.Error(err))
				return
			}
		}
	}
}
