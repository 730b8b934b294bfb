package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/session"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler reports liveness and a runtime snapshot of the process.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	registry  *session.Registry
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(db Pinger, rdb *redis.Client, registry *session.Registry, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		registry:  registry,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings PostgreSQL and Redis; 503 when either is down.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"postgres": "ok", "redis": "ok"}
	var g errgroup.Group
	var pgErr, redisErr error
	g.Go(func() error {
		pgErr = h.db.Ping(ctx)
		return nil
	})
	g.Go(func() error {
		redisErr = h.rdb.Ping(ctx).Err()
		return nil
	})
	_ = g.Wait()

	if pgErr != nil {
		checks["postgres"] = pgErr.Error()
	}
	if redisErr != nil {
		checks["redis"] = redisErr.Error()
	}
	if pgErr != nil || redisErr != nil {
		h.log.Warn().AnErr("postgres", pgErr).AnErr("redis", redisErr).Msg("Health check failed")
		response.FailWithFields(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable, checks)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// ---------- Status ----------

type systemStatus struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	HeapSys     uint64 `json:"heap_sys"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes"`
	GoVersion   string `json:"go_version"`
	NumCPU      int    `json:"num_cpu"`

	// Exam sessions
	OpenSessions     int   `json:"open_sessions"`
	ExpiringSessions int64 `json:"expiring_sessions"`
}

// SystemStatus godoc
// GET /api/v1/admin/system
// Returns process runtime figures and exam session counts.
func (h *SystemHandler) SystemStatus(c *gin.Context) {
	s := systemStatus{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		OpenSessions: h.registry.Len(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAlloc = ms.HeapAlloc
	s.HeapSys = ms.Sys
	s.NumGC = ms.NumGC

	s.LoadAvg1, s.LoadAvg5, s.LoadAvg15, _ = readLoadAvg()
	s.AppRSSBytes, _ = readProcessRSS()

	n, err := h.rdb.ZCard(c.Request.Context(), config.WorkerKey.ExpiringSessions).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Expiring session count unavailable")
	}
	s.ExpiringSessions = n

	response.Success(c, http.StatusOK, s)
}

// ---------- /proc Readers ----------

// readLoadAvg parses /proc/loadavg.
func readLoadAvg() (load1, load5, load15 float64, err error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}

// readProcessRSS reads VmRSS from /proc/self/status.
func readProcessRSS() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			// Format: "VmRSS:     123456 kB"
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			kb, _ := strconv.ParseUint(fields[1], 10, 64)
			return kb * 1024, nil
		}
	}
	return 0, fmt.Errorf("VmRSS not found")
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
