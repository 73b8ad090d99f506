package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flysight-ng/internal/config"
	"flysight-ng/internal/replay"
)

func main() {
	var (
		configPath    string
		summarizePath string
		replayPath    string
		simulate      bool
	)
	flag.StringVar(&configPath, "config", "./flysight.yaml", "Path to YAML config")
	flag.StringVar(&summarizePath, "summarize", "", "Print a summary of a UBX capture and exit")
	flag.StringVar(&replayPath, "replay", "", "Replay a UBX capture instead of opening the receiver")
	flag.BoolVar(&simulate, "simulate", false, "Feed a simulated jump instead of opening the receiver")
	flag.Parse()

	if summarizePath != "" {
		if err := summarize(summarizePath, os.Stdout); err != nil {
			log.Fatalf("summarize failed: %v", err)
		}
		return
	}

	cfg, err := loadConfig(configPath, replayPath, simulate)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("flysight-ng starting")
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer rt.Close()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("flysight-ng stopped: %v", err)
		return
	}
	log.Printf("flysight-ng stopping")
}

// loadConfig reads the config file and applies command-line overrides. A
// missing file is not an error when a capture is replayed or a jump
// simulated.
func loadConfig(path, replayPath string, simulate bool) (config.Config, error) {
	if replayPath != "" && simulate {
		return config.Config{}, errors.New("-replay and -simulate are mutually exclusive")
	}
	cfg, err := config.Load(path)
	if err != nil {
		if (replayPath == "" && !simulate) || !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, err
		}
		cfg = config.Default()
	}
	if simulate {
		cfg.Replay.Enable = false
		cfg.Sim.Enable = true
		if cfg.Sim.Speed <= 0 {
			cfg.Sim.Speed = 1
		}
	}
	if replayPath != "" {
		cfg.Sim.Enable = false
		cfg.Record.Enable = false
		cfg.Replay.Enable = true
		cfg.Replay.Path = replayPath
		if cfg.Replay.Speed <= 0 {
			cfg.Replay.Speed = 1
		}
	}
	return cfg, nil
}

func summarize(path string, w io.Writer) error {
	recs, err := replay.Load(path)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%s: no records", path)
	}
	fmt.Fprintf(w, "%s\n", path)
	replay.Summarize(recs).Print(w)
	return nil
}
