// Prepzo - voice-based career coaching agent
// Joins a room as an AI participant and coaches users through
// conversation, resume analysis, and knowledge base search.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/prepzo/go-prepzo/internal/log"
	"github.com/prepzo/go-prepzo/pkg/agent"
	"github.com/prepzo/go-prepzo/pkg/web"
)

func main() {
	cfg := parseFlags()

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	app, err := agent.New(cfg)
	if err != nil {
		stdlog.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		stdlog.Fatalf("initialization failed: %v", err)
	}
	defer app.Shutdown()

	server := web.NewServer(web.ServerConfig{
		Addr:        cfg.HTTPAddr,
		TokenSecret: cfg.TokenSecret,
		Resumes:     app.Resumes(),
		Logger:      log.L(),
	})
	server.StartAsync()
	defer server.Shutdown()

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		stdlog.Fatalf("runtime error: %v", err)
	}
}

// parseFlags loads .env, reads environment configuration, and applies
// command line overrides.
func parseFlags() agent.Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "error", err)
	}

	cfg := agent.DefaultConfig()
	cfg.LoadEnvConfig()

	debug := flag.Bool("debug", cfg.Debug, "Enable verbose debug logging")
	roomURL := flag.String("room-url", "", "Room server URL (overrides ROOM_URL env var)")
	roomName := flag.String("room", "", "Room name to join (overrides ROOM_NAME env var)")
	httpAddr := flag.String("http", cfg.HTTPAddr, "HTTP API listen address")
	ttsVoice := flag.String("tts-voice", "", "Voice for speech synthesis")
	flag.Parse()

	cfg.Debug = *debug
	cfg.HTTPAddr = *httpAddr
	if *roomURL != "" {
		cfg.RoomURL = *roomURL
	}
	if *roomName != "" {
		cfg.RoomName = *roomName
	}
	if *ttsVoice != "" {
		cfg.TTSVoice = *ttsVoice
	}
	return cfg
}
