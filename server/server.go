// Package server exposes the status endpoint of the responder process.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Connectivity reports whether the bus session is up.
type Connectivity interface {
	IsConnected() bool
}

// Services tracks liveliness tokens seen on the bus. It is safe for
// concurrent use; Update matches the bus watch callback.
type Services struct {
	mu    sync.RWMutex
	alive map[string]time.Time
}

func NewServices() *Services {
	return &Services{alive: make(map[string]time.Time)}
}

func (s *Services) Update(name string, alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !alive {
		delete(s.alive, name)
		slog.Debug("service gone", "token", name)
		return
	}
	if _, ok := s.alive[name]; !ok {
		s.alive[name] = time.Now()
		slog.Debug("service discovered", "token", name)
	}
}

type ServiceInfo struct {
	Name  string    `json:"name"`
	Since time.Time `json:"since"`
}

// List returns the live services sorted by name.
func (s *Services) List() []ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]ServiceInfo, 0, len(s.alive))
	for name, since := range s.alive {
		list = append(list, ServiceInfo{Name: name, Since: since})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// NewHandler builds the status router. services may be nil, in which case
// /services is not routed.
func NewHandler(conn Connectivity, gatherer prometheus.Gatherer, services *Services) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		if conn.IsConnected() {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "detail": "bus not connected"})
		}
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if services != nil {
		r.GET("/services", func(c *gin.Context) {
			c.JSON(http.StatusOK, services.List())
		})
	}

	return r
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler)
}

func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
