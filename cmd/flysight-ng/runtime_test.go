package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"flysight-ng/internal/config"
	"flysight-ng/internal/csvlog"
	"flysight-ng/internal/gps"
	"flysight-ng/internal/nav"
	"flysight-ng/internal/replay"
	"flysight-ng/internal/telemetry"
	"flysight-ng/internal/tone"
)

func writeCapture(t *testing.T, epochs int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jump.ubx.log")
	w, err := replay.CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	var es epochStream
	now := time.Now()
	if err := w.WriteChunk(now, es.next(1600000, 0, 0)); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	for i := 0; i < epochs; i++ {
		if err := w.WriteChunk(now, es.next(int32(1500000-5000*i), 5000, nav.Fix3D)); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func replayConfig(t *testing.T, capture string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Replay = config.ReplayConfig{Enable: true, Path: capture, Speed: 1000}
	cfg.Audio.Output = "null"
	cfg.Audio.ClipsDir = t.TempDir()
	cfg.Log.Dir = t.TempDir()
	return cfg
}

func TestRuntimeReplayLogsEveryFix(t *testing.T) {
	cfg := replayConfig(t, writeCapture(t, 3))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	path := rt.fg.csv.Path()
	rt.Close()

	if rt.fg.fixes != 3 {
		t.Fatalf("fixes=%d want 3", rt.fg.fixes)
	}
	b, err := os.ReadFile(filepath.Join(cfg.Log.Dir, filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if rows := strings.Count(string(b)[len(csvlog.Header):], "\r\n"); rows != 3 {
		t.Fatalf("rows=%d want 3\n%s", rows, b)
	}
}

func TestRuntimeReplayMissingCapture(t *testing.T) {
	cfg := replayConfig(t, filepath.Join(t.TempDir(), "missing.log"))
	if _, err := newRuntime(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing capture")
	}
}

type failingOutput struct{ closed bool }

func (o *failingOutput) Start(tone.Handler) error { return errors.New("no playback device") }
func (o *failingOutput) Close() error             { o.closed = true; return nil }

func TestRuntimeAudioStartFailureFallsBack(t *testing.T) {
	old := newOutputFn
	t.Cleanup(func() { newOutputFn = old })
	failing := &failingOutput{}
	newOutputFn = func(string, int) (tone.Output, error) { return failing, nil }

	cfg := replayConfig(t, writeCapture(t, 2))
	cfg.Audio.Output = "audio"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	if !failing.closed {
		rt.Close()
		t.Fatalf("failed output not closed")
	}
	if _, ok := rt.out.(*tone.Pacer); !ok {
		rt.Close()
		t.Fatalf("out=%T want *tone.Pacer", rt.out)
	}
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rt.Close()
	if rt.fg.fixes != 2 {
		t.Fatalf("fixes=%d want 2", rt.fg.fixes)
	}
}

func TestRuntimeOpenPortFailure(t *testing.T) {
	old := openPortFn
	t.Cleanup(func() { openPortFn = old })
	openPortFn = func(gps.Config) (gps.Port, error) { return nil, errors.New("no receiver") }

	cfg := config.Default()
	cfg.Audio.Output = "null"
	cfg.Log.Dir = t.TempDir()
	_, err := newRuntime(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "no receiver") {
		t.Fatalf("err=%v", err)
	}
}

func TestRuntimeRecordsAndPublishes(t *testing.T) {
	capture := writeCapture(t, 2)
	cfg := replayConfig(t, capture)
	cfg.MQTT = config.MQTTConfig{Enable: true, Broker: "tcp://127.0.0.1:1883", Topic: "t"}
	recorded := filepath.Join(t.TempDir(), "again.log")
	cfg.Record = config.RecordConfig{Enable: true, Path: recorded}

	oldDial := dialMQTTFn
	t.Cleanup(func() { dialMQTTFn = oldDial })
	client := &recordingClient{}
	dialMQTTFn = func(c telemetry.Config) (*telemetry.Publisher, error) {
		return telemetry.NewPublisher(client, c), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pub := rt.pub
	if pub == nil {
		rt.Close()
		t.Fatalf("publisher not wired")
	}
	deadline := time.Now().Add(5 * time.Second)
	for pub.Snapshot().Sent < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rt.Close()
	if snap := pub.Snapshot(); snap.Sent != 2 {
		t.Fatalf("snapshot=%+v want 2 sent", snap)
	}
	if !client.isClosed() {
		t.Fatalf("client not closed")
	}

	orig, err := replay.Load(capture)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	again, err := replay.Load(recorded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := replay.Summarize(again).Bytes, replay.Summarize(orig).Bytes; got != want {
		t.Fatalf("recorded %d bytes want %d", got, want)
	}
}

type recordingClient struct {
	mu     sync.Mutex
	closed bool
}

func (c *recordingClient) Publish(string, byte, bool, []byte) error { return nil }

func (c *recordingClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *recordingClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestSummarize(t *testing.T) {
	var out bytes.Buffer
	if err := summarize(writeCapture(t, 2), &out); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out.String(), "fixes=2") || !strings.Contains(out.String(), "NAV-SOL") {
		t.Fatalf("report=%q", out.String())
	}

	empty := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := summarize(empty, &out); err == nil {
		t.Fatalf("expected error for empty capture")
	}
}

func TestLoadConfigReplayOverride(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	if _, err := loadConfig(missing, "", false); err == nil {
		t.Fatalf("missing config accepted without -replay")
	}
	cfg, err := loadConfig(missing, "jump.log", false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Replay.Enable || cfg.Replay.Path != "jump.log" || cfg.Replay.Speed != 1 {
		t.Fatalf("replay=%+v", cfg.Replay)
	}

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("record:\n  enable: true\n  path: out.log\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err = loadConfig(path, "jump.log", false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Record.Enable {
		t.Fatalf("record left enabled during replay")
	}

	cfg, err = loadConfig(missing, "", true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Sim.Enable || cfg.Sim.Speed != 1 || cfg.Replay.Enable {
		t.Fatalf("sim=%+v replay=%+v", cfg.Sim, cfg.Replay)
	}
	if _, err := loadConfig(missing, "jump.log", true); err == nil {
		t.Fatalf("-replay with -simulate accepted")
	}
}

func TestRuntimeSimulatedJump(t *testing.T) {
	cfg := config.Default()
	cfg.Sim = config.SimConfig{
		Enable:     true,
		CenterLat:  47.3977,
		CenterLon:  8.5456,
		ExitAltM:   1300,
		DeployAltM: 1200,
		GroundAltM: 1150,
		AcquireS:   1,
		Speed:      1000,
	}
	cfg.Audio.Output = "null"
	cfg.Audio.ClipsDir = t.TempDir()
	cfg.Log.Dir = t.TempDir()

	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer ln.Close()
	cfg.UDP = config.UDPConfig{Enable: true, Dest: ln.LocalAddr().String()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	if rt.udp == nil {
		rt.Close()
		t.Fatalf("udp publisher not wired")
	}
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	initialized := rt.fg.csv.Initialized()

	_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, rerr := ln.ReadFrom(buf)
	rt.Close()
	if rerr != nil || !bytes.Contains(buf[:n], []byte(`"fix"`)) {
		t.Fatalf("datagram=%q err=%v", buf[:n], rerr)
	}

	want := simJump(cfg.Sim).Records(time.Now(), cfg.GPS.RateMS)
	if got, fixes := rt.fg.fixes, uint64(replay.Summarize(want).Fixes); got != fixes {
		t.Fatalf("fixes=%d want %d", got, fixes)
	}
	if !initialized {
		t.Fatalf("log not opened")
	}
}
