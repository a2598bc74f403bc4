// cmd/signalbot runs one signal robot (entropy or macd) against the candles
// kept in Redis, falling back to SQLite, and fans emitted signals out to the
// journal, the paper account, the live feed and any configured notifiers.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fxsignal/config"
	"fxsignal/internal/api"
	"fxsignal/internal/execution"
	"fxsignal/internal/gateway"
	"fxsignal/internal/indicator"
	"fxsignal/internal/logger"
	"fxsignal/internal/metrics"
	"fxsignal/internal/notification"
	"fxsignal/internal/robot"
	redisstore "fxsignal/internal/store/redis"
	sqlitestore "fxsignal/internal/store/sqlite"
	"fxsignal/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("signalbot-"+cfg.Robot, logger.ParseLevel(cfg.LogLevel))
	instruments := cfg.ParseInstruments()

	profile, err := robot.ProfileFor(cfg.Robot)
	if err != nil {
		log.Fatalf("[signalbot] %v", err)
	}
	profile.Timeframe, profile.TrendTimeframe, profile.Bars = cfg.TF(), cfg.TrendTF(), cfg.Bars
	log.Printf("[signalbot] robot=%s tf=%s trend=%s bars=%d instruments=%v",
		profile.Strategy, profile.Timeframe, profile.TrendTimeframe, profile.Bars, instruments.Symbols())

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(cfg.Robot)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, reg, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[signalbot] shutting down")
		cancel()
	}()

	// ---- SQLite: candles fallback, signal journal, paper trades ----
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[signalbot] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)

	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[signalbot] sqlite reader failed: %v", err)
	}
	defer sqlReader.Close()

	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[signalbot] journal init failed: %v", err)
	}
	defer journal.Close()

	// ---- Redis: primary candle source and signal stream ----
	breaker := redisstore.NewCircuitBreaker(5, 30*time.Second)
	breaker.OnStateChange = func(from, to redisstore.State) {
		prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.RedisCircuitBreakerTrips.Inc()
		}
	}

	var source robot.CandleSource = sqlReader
	var fallback robot.CandleSource
	sinks := []notification.Notifier{notification.NewLogNotifier(), sqlWriter}

	var rdb *goredis.Client
	rdb, err = redisstore.Connect(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Printf("[signalbot] WARNING: redis init failed: %v (reading candles from sqlite)", err)
		health.SetRedisConnected(false)
	} else {
		defer rdb.Close()
		health.SetRedisConnected(true)
		source = redisstore.NewCandleStore(rdb, breaker, 0)
		fallback = sqlReader
		sinks = append(sinks, redisstore.NewPublisher(rdb, breaker))
	}
	health.StartLivenessChecker(ctx, rdb, sqlWriter.DB(), 10*time.Second)

	// ---- Live feed & paper account ----
	hub := gateway.NewHub(0)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }

	paper := execution.NewPaperExecutor(cfg.RiskPerTrade, 0, journal)
	paper.OnFill = func(execution.Fill) { prom.PaperFills.Inc() }
	sinks = append(sinks, hub, paper)

	// ---- Optional notifiers ----
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.Robot, cfg.RiskPerTrade))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.AMQPURL != "" {
		mq, err := notification.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			log.Printf("[signalbot] WARNING: amqp disabled: %v", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}

	fanout := notification.NewFanout(sinks...)
	fanout.OnError = func(sink string, err error) {
		prom.PublishErrors.WithLabelValues(sink).Inc()
	}
	log.Printf("[signalbot] signal sinks: %v", fanout.Sinks())

	// ---- REST API + /ws ----
	apiSrv := &http.Server{
		Addr: cfg.APIAddr,
		Handler: api.NewRouter(api.Deps{
			Robot:       cfg.Robot,
			Instruments: instruments,
			Signals:     sqlReader,
			Trades:      journal,
			Candles:     sqlReader,
			Feed:        gateway.ServeWS(hub),
			FeedStats:   hub,
			Breaker:     breaker,
		}),
	}
	go func() {
		log.Printf("[signalbot] api listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[signalbot] api server error: %v", err)
		}
	}()

	// ---- Robot ----
	bot := robot.New(robot.Options{
		Profile:     profile,
		Instruments: instruments,
		Source:      source,
		Fallback:    fallback,
		Engine:      strategy.NewEngine(newStrategy(cfg.Robot), cfg.Workers),
		Sink:        fanout,
		Metrics:     prom,
		Health:      health,
		Interval:    cfg.EvalInterval,
	})
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[signalbot] robot stopped: %v", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[signalbot] api shutdown: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)
	log.Println("[signalbot] stopped")
}

func newStrategy(name string) strategy.Strategy {
	ta := indicator.NewLibrary()
	if name == "macd" {
		return strategy.NewMacd(ta, strategy.DefaultMacdConfig())
	}
	return strategy.NewEntropy(ta, strategy.DefaultEntropyConfig())
}
