package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inloco/rtspview/internal/config"
	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/metrics"
	"github.com/inloco/rtspview/internal/presenter"
	"github.com/inloco/rtspview/internal/rtc"
	"github.com/inloco/rtspview/internal/server"
	signaling "github.com/inloco/rtspview/internal/signal"
	"github.com/inloco/rtspview/internal/store"
	"github.com/inloco/rtspview/internal/stream"
	"github.com/inloco/rtspview/internal/transcoder"
	"github.com/inloco/rtspview/internal/vp8"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.Config
	// defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv()
	for i := 1; i < len(os.Args); i++ {
		a := strings.TrimPrefix(os.Args[i], "-")
		if (a == "-config" || a == "config") && i+1 < len(os.Args) {
			cfg.ConfigFile = os.Args[i+1]
			break
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			cfg.ConfigFile = v
			break
		}
		if v, ok := strings.CutPrefix(a, "config="); ok {
			cfg.ConfigFile = v
			break
		}
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent(flag.CommandLine)
	flag.Parse()
	if *showVersion {
		fmt.Printf("rtspview version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	logx.Configure(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	preg := prometheus.NewRegistry()
	metrics.Register(preg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := openStore(ctx, cfg.RedisAddr)
	defer settings.Close()
	saved, err := settings.Load(ctx)
	if err != nil {
		logx.Log.Warn().Err(err).Msg("load saved settings")
	}

	res, _ := stream.ParseResolution(cfg.Resolution)
	if saved.Resolution != "" {
		if r, err := stream.ParseResolution(saved.Resolution); err == nil {
			res = r
		}
	}
	reader := stream.NewReader(stream.Config{
		Launcher:       &transcoder.ExecLauncher{Path: cfg.FFmpegPath, KillGrace: cfg.KillGrace},
		Options:        transcoder.Options{RTSPTransport: cfg.RTSPTransport, ExtraInputArgs: cfg.InputArgs},
		Resolution:     res,
		StartupTimeout: cfg.StartupTimeout,
		QueueSize:      cfg.QueueSize,
	})

	hub := rtc.NewHub()
	mjpeg := server.NewMJPEG()
	pres := presenter.New(reader, cfg.TickInterval, hub, mjpeg)
	go pres.Run(ctx)

	rtcConfig := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		rtcConfig.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	newPeer := func() (*rtc.Peer, error) {
		return rtc.NewPeer(hub, newVP8Encoder, rtcConfig, pres.Interval())
	}

	handler := server.New(server.Deps{
		Reader:         reader,
		Presenter:      pres,
		Store:          settings,
		MJPEG:          mjpeg,
		Signal:         signaling.NewHandler(newPeer, cfg.AllowedOrigins),
		Viewers:        hub,
		Gatherer:       preg,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	url := cfg.URL
	if url == "" && cfg.Resume {
		url = saved.URL
	}
	if url != "" {
		if _, err := reader.Start(ctx, url); err != nil {
			logx.Log.Warn().Err(err).Str("url", url).Msg("initial stream did not start")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigCh
		logx.Log.Info().Msg("shutting down")
		if err := reader.Stop(); err != nil {
			logx.Log.Warn().Err(err).Msg("stop stream")
		}
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
	}()

	logx.Log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("viewer listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = reader.Stop()
		logx.Log.Fatal().Err(err).Msg("server error")
	}
	<-shutdownDone
	logx.Log.Info().Msg("stopped")
}

func openStore(ctx context.Context, redisAddr string) store.Store {
	if redisAddr == "" {
		return store.NewMemoryStore()
	}
	rs, err := store.NewRedisStore(ctx, redisAddr)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("connect redis")
	}
	logx.Log.Info().Str("addr", redisAddr).Msg("using redis settings store")
	return rs
}

func newVP8Encoder(size image.Point, frameRate int) (rtc.Encoder, error) {
	enc, err := vp8.NewEncoder(size, frameRate)
	if err != nil {
		return nil, err
	}
	return enc, nil
}
