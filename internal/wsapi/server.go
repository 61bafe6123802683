package wsapi

import (
	"net/http"
	"sync/atomic"

	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/discoverycache"
	"github.com/agentkube/clustercore/pkg/kubeconfig"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the process-wide frontend API surface: one Registry, one
// Discovery Cache, and one kubeconfig search configuration shared by
// every connection; per-connection state (the Supervisor, the exec
// session multiplexer) lives on Connection instead, so one desktop
// client disconnecting never affects another's background work.
type Server struct {
	Registry *clusterregistry.Registry
	Cache    *discoverycache.Store
	Home     string
	ConfigDir string

	upgrader websocket.Upgrader

	activeConns prometheus.Gauge
	taskCount   int64
}

// New builds a Server. devMode relaxes the websocket origin check so the
// desktop shell's dev server (a different origin) can connect.
func New(registry *clusterregistry.Registry, cache *discoverycache.Store, home, userConfigDir string, devMode bool) *Server {
	s := &Server{
		Registry:  registry,
		Cache:     cache,
		Home:      home,
		ConfigDir: userConfigDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return devMode
			},
		},
	}

	s.activeConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clustercore_ws_connections",
		Help: "Currently open frontend WebSocket connections.",
	})
	prometheus.MustRegister(s.activeConns)
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "clustercore_background_tasks",
		Help: "Background tasks currently running across all connections (watches, log streams, exec sessions).",
	}, func() float64 { return float64(atomic.LoadInt64(&s.taskCount)) }))

	return s
}

// reportTaskCount folds one connection's active-task delta into the
// process-wide gauge; each connection owns a single Supervisor and tracks
// its own last-reported count so concurrent connections' stats never
// clobber one another.
func (s *Server) reportTaskCount(delta int) {
	atomic.AddInt64(&s.taskCount, int64(delta))
}

// Routes registers the upgrade endpoint plus the two plain REST
// endpoints named in §6's domain-stack wiring, following
// internal/routes/routes.go's gin.Engine setup.
func (s *Server) Routes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.handleUpgrade)
}

func (s *Server) handleUpgrade(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log(logger.LevelWarn, nil, err, "websocket upgrade failed")
		return
	}

	s.activeConns.Inc()
	defer s.activeConns.Dec()

	session := newConnection(s, conn)
	session.run()
}

// WatchKubeconfigs runs the kubeconfig discovery watch loop for the
// server's lifetime; the caller runs it in its own goroutine. onChange is
// invoked with the freshly reloaded entry list whenever a kubeconfig file
// changes (§6 "Kubeconfig discovery").
func (s *Server) WatchKubeconfigs(onChange func([]kubeconfig.Entry)) {
	kubeconfig.Watch(s.Home, s.ConfigDir, onChange)
}
