package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var serverLog = logrus.WithField("component", "status-server")

// StatusProvider 提供 /status 的 JSON 内容
type StatusProvider interface {
	Status() any
}

// StatusFunc 适配普通函数
type StatusFunc func() any

func (f StatusFunc) Status() any { return f() }

// Router 状态路由：
// - /healthz
// - /status   运行状态（活跃周期、最近一次周期报告、策略布局）
// - /metrics  prometheus
func Router(status StatusProvider) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, status.Status())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// StartAsync 启动状态服务（非阻塞），ctx.Done() 时优雅关闭。
// 返回的 server 也可以交给 shutdown 管理器主动关闭。
func StartAsync(ctx context.Context, listenAddr string, status StatusProvider) (*http.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           Router(status),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLog.WithError(err).Error("状态服务异常退出")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	serverLog.Infof("状态服务已启动: http://%s", s.Addr)
	return s, nil
}
