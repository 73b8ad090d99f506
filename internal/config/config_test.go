package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"flysight-ng/internal/alarm"
	"flysight-ng/internal/feedback"
	"flysight-ng/internal/tone"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_EmptyFileGivesDefaults(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.RateMS != 200 || cfg.GPS.Model != 6 || cfg.GPS.Baud != 115200 {
		t.Fatalf("gps defaults=%+v", cfg.GPS)
	}
	if cfg.Tone.Mode != 2 || cfg.Tone.Max != 300 || cfg.Tone.Limits != 1 || cfg.Tone.Volume != 6 {
		t.Fatalf("tone defaults=%+v", cfg.Tone)
	}
	if cfg.Rate.Mode != 9 || cfg.Rate.Min != 300 || cfg.Rate.Max != 1500 {
		t.Fatalf("rate defaults=%+v", cfg.Rate)
	}
	if !cfg.UseSAS || cfg.Thresholds.VThresh != 1000 {
		t.Fatalf("misc defaults: use_sas=%v v_thresh=%d", cfg.UseSAS, cfg.Thresholds.VThresh)
	}
	if len(cfg.Alarms.List) != 0 {
		t.Fatalf("alarms=%v want none", cfg.Alarms.List)
	}
}

func TestLoad_ZeroOverridesDefault(t *testing.T) {
	path := writeTempConfig(t, "tone:\n  mode: 0\n  volume: 0\nuse_sas: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Tone.Mode != 0 || cfg.Tone.Volume != 0 || cfg.UseSAS {
		t.Fatalf("cfg=%+v use_sas=%v", cfg.Tone, cfg.UseSAS)
	}
	// Unspecified siblings keep defaults.
	if cfg.Tone.Max != 300 {
		t.Fatalf("tone.max=%d want 300", cfg.Tone.Max)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "tone:\n  pitch: 3\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"model", "gps:\n  model: 9\n", "gps.model must be 0..8"},
		{"rate", "gps:\n  rate_ms: 50\n", "gps.rate_ms must be >= 100"},
		{"backend", "gps:\n  backend: usb\n", "gps.backend must be termios or serial"},
		{"tone mode", "tone:\n  mode: 5\n", "tone.mode must be 0..4"},
		{"limits", "tone:\n  limits: 4\n", "tone.limits must be 0..3"},
		{"volume", "tone:\n  volume: 9\n", "tone.volume must be 0..8"},
		{"rate mode", "rate:\n  mode: 10\n", "rate.mode must be 0..4, 8, 9 or 11"},
		{"speech rate", "speech:\n  rate_s: 33\n", "speech.rate_s must be 0..32"},
		{"speech entries", "speech:\n  entries: [{mode: 0}, {mode: 1}, {mode: 2}, {mode: 5}]\n", "speech.entries allows at most 3 entries"},
		{"speech mode", "speech:\n  entries: [{mode: 6}]\n", "speech.entries[0].mode must be 0..5 or 11"},
		{"speech decimals", "speech:\n  entries: [{mode: 0, decimals: 3}]\n", "speech.entries[0].decimals must be 0..2"},
		{"alarm type", "alarms:\n  list: [{elev: 1000, type: 5}]\n", "alarms.list[0].type must be 0..4"},
		{"alarm file", "alarms:\n  list: [{elev: 1000, type: 4}]\n", "alarms.list[0].file is required for type 4"},
		{"window order", "windows: [{top: 100, bottom: 200}]\n", "windows[0].top must be >= bottom"},
		{"too many windows", "windows: [{top: 1}, {top: 2}, {top: 3}]\n", "windows allows at most 2 entries"},
		{"output", "audio:\n  output: hdmi\n", "audio.output must be audio, pwm or null"},
		{"record path", "record:\n  enable: true\n", "record.path is required when record.enable is true"},
		{"replay speed", "replay:\n  enable: true\n  path: x\n  speed: -1\n", "replay.speed must be > 0"},
		{"record and replay", "record:\n  enable: true\n  path: a\nreplay:\n  enable: true\n  path: b\n", "record and replay cannot both be enabled"},
		{"sim and replay", "replay:\n  enable: true\n  path: b\nsim:\n  enable: true\n", "sim and replay cannot both be enabled"},
		{"sim altitudes", "sim:\n  enable: true\n  exit_alt_m: 1000\n  deploy_alt_m: 1200\n", "sim.exit_alt_m must be above sim.deploy_alt_m"},
		{"sim ground", "sim:\n  enable: true\n  deploy_alt_m: 500\n  ground_alt_m: 600\n", "sim.deploy_alt_m must be above sim.ground_alt_m"},
		{"xrw build time", "xrw:\n  build_time: -1\n", "xrw.build_time must be >= 0"},
		{"xrw score time", "xrw:\n  score_time: -5\n", "xrw.score_time must be >= 0"},
		{"xrw score file", "xrw:\n  score_time: 20\n  score_file: \" \"\n", "xrw.score_file is required when score_time is set"},
		{"udp dest", "udp:\n  enable: true\n", "udp.dest is required when udp.enable is true"},
		{"mqtt broker", "mqtt:\n  enable: true\n", "mqtt.broker is required when mqtt.enable is true"},
		{"mqtt target", "mqtt:\n  enable: true\n  broker: tcp://x:1883\n  target_lat: 47.1\n", "mqtt.target_lat and mqtt.target_lon must be set together"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ReplaySpeedDefault(t *testing.T) {
	cfg, err := Parse([]byte("replay:\n  enable: true\n  path: jump.log\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Replay.Speed)
	}
}

func TestParams_Units(t *testing.T) {
	cfg, err := Parse([]byte(`
gps:
  rate_ms: 250
rate:
  min_rate: 100
  max_rate: 500
speech:
  rate_s: 5
  volume: 2
  entries:
    - {mode: 1, units: 0, decimals: 1}
    - {mode: 5, units: 1}
tz_offset: -14400
alarms:
  window_above: 100
  window_below: 50
  dz_elev: 400
  list:
    - {elev: 1500, type: 0}
    - {elev: 1200, type: 2}
    - {elev: 1000, type: 4, file: pull}
windows:
  - {top: 3000, bottom: 2500}
altitude:
  step: 500
  units: 1
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	p := cfg.Params()

	if p.UBX.RateMS != 250 || p.Feedback.RateMS != 250 {
		t.Fatalf("rate_ms ubx=%d feedback=%d", p.UBX.RateMS, p.Feedback.RateMS)
	}
	if p.Feedback.MinRate != tone.RateOneHz || p.Feedback.MaxRate != 5*tone.RateOneHz {
		t.Fatalf("rates=%d..%d want %d..%d", p.Feedback.MinRate, p.Feedback.MaxRate, tone.RateOneHz, 5*tone.RateOneHz)
	}
	if p.Feedback.SpeechMS != 5000 {
		t.Fatalf("speech_ms=%d want 5000", p.Feedback.SpeechMS)
	}
	if p.Tone.Volume != 2 || p.Tone.SpeechVolume != 6 {
		t.Fatalf("volume shifts=%d,%d want 2,6", p.Tone.Volume, p.Tone.SpeechVolume)
	}
	if p.TZOffset != -4*time.Hour {
		t.Fatalf("tz=%s", p.TZOffset)
	}

	if len(p.Alarm.Alarms) != 2 {
		t.Fatalf("alarms=%+v want 2 (type 0 dropped)", p.Alarm.Alarms)
	}
	if a := p.Alarm.Alarms[0]; a.Elev != 1200000 || a.Type != alarm.ChirpUp {
		t.Fatalf("alarm[0]=%+v", a)
	}
	if a := p.Alarm.Alarms[1]; a.Type != alarm.PlayFile || a.File != "pull" {
		t.Fatalf("alarm[1]=%+v", a)
	}
	if p.Alarm.WindowAbove != 100000 || p.Alarm.WindowBelow != 50000 || p.Alarm.DZElev != 400000 {
		t.Fatalf("alarm params=%+v", p.Alarm)
	}
	if len(p.Alarm.Windows) != 1 || p.Alarm.Windows[0].Top != 3000000 || p.Alarm.Windows[0].Bottom != 2500000 {
		t.Fatalf("windows=%+v", p.Alarm.Windows)
	}
	if p.Alarm.AltStep != 500 || p.Alarm.AltUnits != alarm.Feet {
		t.Fatalf("alt step=%d units=%d", p.Alarm.AltStep, p.Alarm.AltUnits)
	}

	if len(p.Speech.Entries) != 2 || p.Speech.Entries[0].Decimals != 1 || p.Speech.DZElev != 400000 {
		t.Fatalf("speech=%+v", p.Speech)
	}
}

func TestParams_SpeechDisabledDropsEntries(t *testing.T) {
	p := Default().Params()
	if p.Feedback.SpeechMS != 0 || len(p.Speech.Entries) != 0 {
		t.Fatalf("speech_ms=%d entries=%d", p.Feedback.SpeechMS, len(p.Speech.Entries))
	}
}

func TestParams_SpeechDiveAngleEntry(t *testing.T) {
	cfg, err := Parse([]byte("speech:\n  rate_s: 5\n  entries: [{mode: 11, decimals: 1}]\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	p := cfg.Params()
	if len(p.Speech.Entries) != 1 || p.Speech.Entries[0].Mode != feedback.ModeDiveAngle {
		t.Fatalf("entries=%+v", p.Speech.Entries)
	}
}

func TestParams_XRW(t *testing.T) {
	cfg, err := Parse([]byte("xrw:\n  build_time: 30\n  score_time: 20\n  score_file: judge\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	x := cfg.Params().Alarm.XRW
	if x.BuildS != 30 || x.ScoreS != 20 || x.BuildFile != "build" || x.ScoreFile != "judge" {
		t.Fatalf("xrw=%+v", x)
	}

	if x := Default().Params().Alarm.XRW; x.BuildS != 0 || x.ScoreS != 0 {
		t.Fatalf("xrw enabled by default: %+v", x)
	}
}
