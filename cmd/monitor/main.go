package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentledger/agentledger/internal/indexer"
	"github.com/agentledger/agentledger/internal/indexer/sink"
	"github.com/agentledger/agentledger/pkg/client"
)

// cursorName keys this monitor's position in the cursor store.
const cursorName = "monitor"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("monitor exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("monitor")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("monitor.port", 8081)
	viper.SetDefault("node.url", "http://localhost:8080")
	viper.SetDefault("poll.interval", "2s")
	viper.SetDefault("start.position", "latest")
	viper.SetDefault("cursor.path", defaultCursorPath())
	viper.SetDefault("kafka.brokers", []string{})
	viper.SetDefault("kafka.topic", "agentledger.events")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Node source ───────────────────────────────────────────────────────────
	nodeURL := viper.GetString("node.url")
	c, err := client.New(nodeURL)
	if err != nil {
		return fmt.Errorf("node client: %w", err)
	}

	m := indexer.NewMonitor(indexer.NewRemoteSource(c), logger)

	// ── Cursor persistence ────────────────────────────────────────────────────
	startCtx := context.Background()

	var store *indexer.CursorStore
	if path := viper.GetString("cursor.path"); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
		store, err = indexer.OpenCursorStore(path)
		if err != nil {
			return fmt.Errorf("open cursor store: %w", err)
		}
		defer store.Close() //nolint:errcheck
		m.SetCursorStore(store, cursorName)
		logger.Info("cursor store open", zap.String("path", path))
	}

	// ── Sinks ─────────────────────────────────────────────────────────────────
	var webhookSubs []sink.Subscription
	if err := viper.UnmarshalKey("webhooks", &webhookSubs); err != nil {
		return fmt.Errorf("parse webhooks config: %w", err)
	}
	if len(webhookSubs) > 0 {
		w := sink.NewWebhook(webhookSubs, logger)
		m.OnAny(w.Deliver)
		logger.Info("webhook sink enabled", zap.Int("subscriptions", len(webhookSubs)))
	}

	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		topic := viper.GetString("kafka.topic")
		k := sink.NewKafka(brokers, topic, logger)
		defer k.Close() //nolint:errcheck
		m.OnAny(k.Deliver)
		logger.Info("kafka sink enabled",
			zap.Strings("brokers", brokers),
			zap.String("topic", topic),
		)
	}

	// ── Start position ────────────────────────────────────────────────────────
	// A persisted cursor always wins; start.position only applies to the
	// first run.
	from, err := resolveStart(startCtx, store, logger)
	if err != nil {
		return err
	}

	interval := viper.GetDuration("poll.interval")
	if err := m.Start(from, interval); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer m.Stop()
	logger.Info("monitor polling",
		zap.String("node", nodeURL),
		zap.Duration("interval", interval),
	)

	// ── HTTP surface ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.GET("/status", statusHandler(m))
	v1.GET("/history", historyHandler(m, c))

	httpPort := viper.GetInt("monitor.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("monitor HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down monitor...")
	m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("monitor stopped")
	return nil
}

// resolveStart picks the cursor seed: the persisted cursor when one exists,
// otherwise the configured start.position.
func resolveStart(ctx context.Context, store *indexer.CursorStore, logger *zap.Logger) (indexer.Start, error) {
	if store != nil {
		pos, ok, err := store.Load(ctx, cursorName)
		if err != nil {
			return indexer.Start{}, fmt.Errorf("load cursor: %w", err)
		}
		if ok {
			logger.Info("resuming from persisted cursor", zap.Uint64("position", pos))
			return indexer.From(pos), nil
		}
	}

	startPos := viper.GetString("start.position")
	if startPos == "latest" {
		return indexer.Latest, nil
	}
	pos, err := strconv.ParseUint(startPos, 10, 64)
	if err != nil {
		return indexer.Start{}, fmt.Errorf("start.position must be \"latest\" or a non-negative integer, got %q", startPos)
	}
	return indexer.From(pos), nil
}

// statusHandler reports the monitor's lifecycle state for dashboards.
func statusHandler(m *indexer.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{
			"state":  m.State(),
			"cursor": m.Cursor(),
		}
		if t := m.LastPollAt(); !t.IsZero() {
			resp["last_poll_at"] = t
		}
		if err := m.LastError(); err != nil {
			resp["last_error"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// historyHandler serves stateless range queries. to defaults to the node's
// current tip.
func historyHandler(m *indexer.Monitor, c *client.Client) gin.HandlerFunc {
	return func(g *gin.Context) {
		ctx := g.Request.Context()

		from, ok := queryUint(g, "from", 1)
		if !ok {
			return
		}
		to, ok := queryUint(g, "to", 0)
		if !ok {
			return
		}
		if to == 0 {
			tip, err := c.CurrentTip(ctx)
			if err != nil {
				g.JSON(http.StatusBadGateway, gin.H{"error": "failed to read node tip"})
				return
			}
			to = tip
		}

		var f indexer.Filter
		if f.AgentID, ok = optQueryUint(g, "agent_id"); !ok {
			return
		}
		if f.MessageID, ok = optQueryUint(g, "message_id"); !ok {
			return
		}
		if f.SenderAgentID, ok = optQueryUint(g, "sender_agent_id"); !ok {
			return
		}
		if f.ReceiverAgentID, ok = optQueryUint(g, "receiver_agent_id"); !ok {
			return
		}

		hist, err := m.HistoricalQuery(ctx, from, to, f)
		if err != nil {
			g.JSON(http.StatusBadGateway, gin.H{"error": "history query failed"})
			return
		}
		g.JSON(http.StatusOK, hist)
	}
}

// optQueryUint parses an optional uint64 filter parameter, nil when absent.
func optQueryUint(g *gin.Context, name string) (*uint64, bool) {
	s := g.Query(name)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return nil, false
	}
	return &v, true
}

// queryUint parses an optional uint64 query parameter, writing a 400 on
// malformed input.
func queryUint(g *gin.Context, name string, def uint64) (uint64, bool) {
	s := g.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

// defaultCursorPath places the cursor database under the user's home
// directory, falling back to the working directory.
func defaultCursorPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "monitor.db"
	}
	return filepath.Join(home, ".agentledger", "monitor.db")
}
