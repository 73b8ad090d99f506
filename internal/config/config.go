package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"flysight-ng/internal/alarm"
	"flysight-ng/internal/feedback"
	"flysight-ng/internal/speech"
	"flysight-ng/internal/tone"
	"flysight-ng/internal/ubx"
)

type Config struct {
	GPS        GPSConfig        `yaml:"gps"`
	Tone       ToneConfig       `yaml:"tone"`
	Rate       RateConfig       `yaml:"rate"`
	Speech     SpeechConfig     `yaml:"speech"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	UseSAS     bool             `yaml:"use_sas"`
	TZOffset   int              `yaml:"tz_offset"` // seconds
	Alarms     AlarmsConfig     `yaml:"alarms"`
	Windows    []WindowConfig   `yaml:"windows"`
	XRW        XRWConfig        `yaml:"xrw"`
	Altitude   AltitudeConfig   `yaml:"altitude"`
	Audio      AudioConfig      `yaml:"audio"`
	Log        LogConfig        `yaml:"log"`
	Status     StatusConfig     `yaml:"status"`
	Record     RecordConfig     `yaml:"record"`
	Replay     ReplayConfig     `yaml:"replay"`
	Sim        SimConfig        `yaml:"sim"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	UDP        UDPConfig        `yaml:"udp"`
}

type GPSConfig struct {
	Device   string `yaml:"device"`
	Backend  string `yaml:"backend"`
	InitBaud int    `yaml:"init_baud"`
	Baud     int    `yaml:"baud"`
	Model    int    `yaml:"model"`
	RateMS   int    `yaml:"rate_ms"`
}

// ToneConfig selects the metric driving pitch. Min and Max are cm/s for
// speed modes and ratio*100 for glide modes.
type ToneConfig struct {
	Mode   int   `yaml:"mode"`
	Min    int32 `yaml:"min"`
	Max    int32 `yaml:"max"`
	Limits int   `yaml:"limits"`
	Volume int   `yaml:"volume"` // 0 (silent) to 8 (loudest)
}

// RateConfig selects the metric driving the beep rate. MinRate and
// MaxRate are Hz*100.
type RateConfig struct {
	Mode     int   `yaml:"mode"`
	Min      int32 `yaml:"min"`
	Max      int32 `yaml:"max"`
	MinRate  int   `yaml:"min_rate"`
	MaxRate  int   `yaml:"max_rate"`
	Flatline bool  `yaml:"flatline"`
}

type SpeechConfig struct {
	RateS   int           `yaml:"rate_s"` // 0 disables speech
	Volume  int           `yaml:"volume"` // 0 (silent) to 8 (loudest)
	Entries []SpeechEntry `yaml:"entries"`
}

type SpeechEntry struct {
	Mode     int `yaml:"mode"`
	Units    int `yaml:"units"`
	Decimals int `yaml:"decimals"`
}

type ThresholdsConfig struct {
	VThresh int32 `yaml:"v_thresh"` // cm/s
	HThresh int32 `yaml:"h_thresh"` // cm/s
}

// AlarmsConfig elevations are metres above sea level.
type AlarmsConfig struct {
	WindowAbove int32         `yaml:"window_above"`
	WindowBelow int32         `yaml:"window_below"`
	DZElev      int32         `yaml:"dz_elev"`
	List        []AlarmConfig `yaml:"list"`
}

type AlarmConfig struct {
	Elev int32  `yaml:"elev"`
	Type int    `yaml:"type"`
	File string `yaml:"file"`
}

type WindowConfig struct {
	Top    int32 `yaml:"top"`
	Bottom int32 `yaml:"bottom"`
}

// XRWConfig times are seconds after exit. Files are clip names in
// audio.clips_dir without the .wav extension.
type XRWConfig struct {
	BuildTime int32  `yaml:"build_time"` // 0 with score_time 0 disables
	ScoreTime int32  `yaml:"score_time"`
	BuildFile string `yaml:"build_file"`
	ScoreFile string `yaml:"score_file"`
}

type AltitudeConfig struct {
	Step  int32 `yaml:"step"` // 0 disables
	Units int   `yaml:"units"`
}

type AudioConfig struct {
	Output     string `yaml:"output"` // audio, pwm or null
	PWMChannel int    `yaml:"pwm_channel"`
	ClipsDir   string `yaml:"clips_dir"`
}

type LogConfig struct {
	Dir string `yaml:"dir"`
}

type StatusConfig struct {
	GreenPin int `yaml:"green_pin"`
	RedPin   int `yaml:"red_pin"`
	PowerPin int `yaml:"power_pin"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

// SimConfig drives the built-in jump simulator in place of the receiver.
// Altitudes are metres above sea level, speeds metres per second. Zero
// values take the simulator defaults.
type SimConfig struct {
	Enable     bool    `yaml:"enable"`
	CenterLat  float64 `yaml:"center_lat"`
	CenterLon  float64 `yaml:"center_lon"`
	RadiusM    float64 `yaml:"radius_m"`
	ExitAltM   float64 `yaml:"exit_alt_m"`
	DeployAltM float64 `yaml:"deploy_alt_m"`
	GroundAltM float64 `yaml:"ground_alt_m"`
	FreefallVS float64 `yaml:"freefall_vs"`
	CanopyVS   float64 `yaml:"canopy_vs"`
	AcquireS   float64 `yaml:"acquire_s"`
	Speed      float64 `yaml:"speed"`
}

// UDPConfig sends every fix as a JSON datagram to Dest (host:port).
type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

// MQTTConfig target coordinates are decimal degrees.
type MQTTConfig struct {
	Enable    bool     `yaml:"enable"`
	Broker    string   `yaml:"broker"`
	ClientID  string   `yaml:"client_id"`
	Topic     string   `yaml:"topic"`
	QoS       int      `yaml:"qos"`
	TargetLat *float64 `yaml:"target_lat"`
	TargetLon *float64 `yaml:"target_lon"`
}

// Default returns the device defaults. Fields omitted from a config file
// keep these values.
func Default() Config {
	return Config{
		GPS: GPSConfig{
			Backend:  "termios",
			InitBaud: 9600,
			Baud:     115200,
			Model:    6,
			RateMS:   200,
		},
		Tone:       ToneConfig{Mode: 2, Min: 0, Max: 300, Limits: 1, Volume: 6},
		Rate:       RateConfig{Mode: 9, Min: 300, Max: 1500, MinRate: 100, MaxRate: 500},
		Speech:     SpeechConfig{Volume: 8, Entries: []SpeechEntry{{Mode: 2, Units: 1}}},
		Thresholds: ThresholdsConfig{VThresh: 1000},
		UseSAS:     true,
		XRW:        XRWConfig{BuildFile: "build", ScoreFile: "score"},
		Altitude:   AltitudeConfig{Units: 1},
		Audio:      AudioConfig{Output: "audio", ClipsDir: "audio"},
		Log:        LogConfig{Dir: "logs"},
		MQTT:       MQTTConfig{Topic: "flysight/fix", ClientID: "flysight-ng"},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML document over the defaults. Unknown keys are
// rejected.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func between(v, lo, hi int) bool { return v >= lo && v <= hi }

func (c *Config) validate() error {
	if !between(c.GPS.Model, 0, 8) {
		return fmt.Errorf("gps.model must be 0..8")
	}
	if c.GPS.RateMS < 100 || c.GPS.RateMS > 0xFFFF {
		return fmt.Errorf("gps.rate_ms must be >= 100")
	}
	if c.GPS.InitBaud <= 0 || c.GPS.Baud <= 0 {
		return fmt.Errorf("gps baud rates must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.GPS.Backend)) {
	case "", "termios", "serial":
	default:
		return fmt.Errorf("gps.backend must be termios or serial")
	}

	if !between(c.Tone.Mode, 0, 4) {
		return fmt.Errorf("tone.mode must be 0..4")
	}
	if !between(c.Tone.Limits, 0, 3) {
		return fmt.Errorf("tone.limits must be 0..3")
	}
	if !between(c.Tone.Volume, 0, 8) {
		return fmt.Errorf("tone.volume must be 0..8")
	}

	switch c.Rate.Mode {
	case 0, 1, 2, 3, 4, feedback.ModeMagnitude, feedback.ModeChange, feedback.ModeDiveAngle:
	default:
		return fmt.Errorf("rate.mode must be 0..4, 8, 9 or 11")
	}
	if c.Rate.MinRate < 0 || c.Rate.MaxRate < 0 {
		return fmt.Errorf("rate.min_rate and rate.max_rate must be >= 0")
	}

	if !between(c.Speech.RateS, 0, 32) {
		return fmt.Errorf("speech.rate_s must be 0..32")
	}
	if !between(c.Speech.Volume, 0, 8) {
		return fmt.Errorf("speech.volume must be 0..8")
	}
	if len(c.Speech.Entries) > speech.MaxEntries {
		return fmt.Errorf("speech.entries allows at most %d entries", speech.MaxEntries)
	}
	for i, e := range c.Speech.Entries {
		if !between(e.Mode, 0, speech.ModeAltitude) && e.Mode != feedback.ModeDiveAngle {
			return fmt.Errorf("speech.entries[%d].mode must be 0..%d or %d", i, speech.ModeAltitude, feedback.ModeDiveAngle)
		}
		if !between(e.Units, 0, 1) {
			return fmt.Errorf("speech.entries[%d].units must be 0 or 1", i)
		}
		if !between(e.Decimals, 0, 2) {
			return fmt.Errorf("speech.entries[%d].decimals must be 0..2", i)
		}
	}

	if c.Alarms.WindowAbove < 0 || c.Alarms.WindowBelow < 0 {
		return fmt.Errorf("alarms windows must be >= 0")
	}
	// Type 0 entries are placeholders and are dropped.
	alarms := c.Alarms.List[:0:0]
	for i, a := range c.Alarms.List {
		if !between(a.Type, 0, int(alarm.PlayFile)) {
			return fmt.Errorf("alarms.list[%d].type must be 0..4", i)
		}
		if a.Type == int(alarm.PlayFile) && strings.TrimSpace(a.File) == "" {
			return fmt.Errorf("alarms.list[%d].file is required for type 4", i)
		}
		if a.Type != 0 {
			alarms = append(alarms, a)
		}
	}
	if len(alarms) > alarm.MaxAlarms {
		return fmt.Errorf("alarms.list allows at most %d alarms", alarm.MaxAlarms)
	}
	c.Alarms.List = alarms

	if len(c.Windows) > alarm.MaxWindows {
		return fmt.Errorf("windows allows at most %d entries", alarm.MaxWindows)
	}
	for i, w := range c.Windows {
		if w.Top < w.Bottom {
			return fmt.Errorf("windows[%d].top must be >= bottom", i)
		}
	}

	if c.XRW.BuildTime < 0 {
		return fmt.Errorf("xrw.build_time must be >= 0")
	}
	if c.XRW.ScoreTime < 0 {
		return fmt.Errorf("xrw.score_time must be >= 0")
	}
	if c.XRW.BuildTime > 0 && strings.TrimSpace(c.XRW.BuildFile) == "" {
		return fmt.Errorf("xrw.build_file is required when build_time is set")
	}
	if c.XRW.ScoreTime > 0 && strings.TrimSpace(c.XRW.ScoreFile) == "" {
		return fmt.Errorf("xrw.score_file is required when score_time is set")
	}

	if c.Altitude.Step < 0 {
		return fmt.Errorf("altitude.step must be >= 0")
	}
	if !between(c.Altitude.Units, 0, 1) {
		return fmt.Errorf("altitude.units must be 0 or 1")
	}

	switch strings.ToLower(strings.TrimSpace(c.Audio.Output)) {
	case "", "audio", "pwm", "null":
	default:
		return fmt.Errorf("audio.output must be audio, pwm or null")
	}

	if c.Record.Enable && c.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if c.Replay.Enable {
		if c.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if c.Replay.Speed == 0 {
			c.Replay.Speed = 1
		}
		if c.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}
	if c.Record.Enable && c.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}
	if c.Sim.Enable {
		if c.Replay.Enable {
			return fmt.Errorf("sim and replay cannot both be enabled")
		}
		if c.Sim.ExitAltM != 0 && c.Sim.DeployAltM != 0 && c.Sim.ExitAltM <= c.Sim.DeployAltM {
			return fmt.Errorf("sim.exit_alt_m must be above sim.deploy_alt_m")
		}
		if c.Sim.DeployAltM != 0 && c.Sim.DeployAltM <= c.Sim.GroundAltM {
			return fmt.Errorf("sim.deploy_alt_m must be above sim.ground_alt_m")
		}
		if c.Sim.FreefallVS < 0 || c.Sim.CanopyVS < 0 || c.Sim.AcquireS < 0 {
			return fmt.Errorf("sim speeds and acquire_s must be >= 0")
		}
		if c.Sim.Speed == 0 {
			c.Sim.Speed = 1
		}
		if c.Sim.Speed < 0 {
			return fmt.Errorf("sim.speed must be > 0")
		}
	}

	if c.MQTT.Enable {
		if strings.TrimSpace(c.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if !between(c.MQTT.QoS, 0, 2) {
			return fmt.Errorf("mqtt.qos must be 0..2")
		}
		if (c.MQTT.TargetLat == nil) != (c.MQTT.TargetLon == nil) {
			return fmt.Errorf("mqtt.target_lat and mqtt.target_lon must be set together")
		}
	}
	if c.UDP.Enable && strings.TrimSpace(c.UDP.Dest) == "" {
		return fmt.Errorf("udp.dest is required when udp.enable is true")
	}
	return nil
}

// Params are the runtime parameters derived from a Config, in the units
// the domain packages work in.
type Params struct {
	UBX      ubx.Options
	Feedback feedback.Params
	Alarm    alarm.Params
	Speech   speech.Params
	Tone     tone.Options // Clips is left for the caller
	TZOffset time.Duration
}

// volumeShift converts a 0..8 loudness into the synthesizer's attenuation
// shift.
func volumeShift(v int) uint8 { return uint8(8 - v) }

func rateUnits(hz100 int) int32 { return int32(hz100 * tone.RateOneHz / 100) }

func (c Config) Params() Params {
	var p Params

	p.UBX = ubx.Options{
		InitBaud: c.GPS.InitBaud,
		Baud:     c.GPS.Baud,
		RateMS:   uint16(c.GPS.RateMS),
		Model:    uint8(c.GPS.Model),
	}

	p.Feedback = feedback.Params{
		Mode:     uint8(c.Tone.Mode),
		Min:      c.Tone.Min,
		Max:      c.Tone.Max,
		Mode2:    uint8(c.Rate.Mode),
		Min2:     c.Rate.Min,
		Max2:     c.Rate.Max,
		MinRate:  rateUnits(c.Rate.MinRate),
		MaxRate:  rateUnits(c.Rate.MaxRate),
		Flatline: c.Rate.Flatline,
		Limits:   uint8(c.Tone.Limits),
		UseSAS:   c.UseSAS,
		RateMS:   uint16(c.GPS.RateMS),
		VThresh:  c.Thresholds.VThresh,
		HThresh:  c.Thresholds.HThresh,
		SpeechMS: uint16(c.Speech.RateS * 1000),
	}

	dz := c.Alarms.DZElev * 1000
	p.Alarm = alarm.Params{
		WindowAbove: c.Alarms.WindowAbove * 1000,
		WindowBelow: c.Alarms.WindowBelow * 1000,
		DZElev:      dz,
		AltStep:     c.Altitude.Step,
		AltUnits:    uint8(c.Altitude.Units),
		XRW: alarm.XRW{
			BuildS:    c.XRW.BuildTime,
			ScoreS:    c.XRW.ScoreTime,
			BuildFile: c.XRW.BuildFile,
			ScoreFile: c.XRW.ScoreFile,
		},
	}
	for _, a := range c.Alarms.List {
		p.Alarm.Alarms = append(p.Alarm.Alarms, alarm.Alarm{
			Elev: a.Elev * 1000,
			Type: alarm.Type(a.Type),
			File: a.File,
		})
	}
	for _, w := range c.Windows {
		p.Alarm.Windows = append(p.Alarm.Windows, alarm.Window{Top: w.Top * 1000, Bottom: w.Bottom * 1000})
	}

	p.Speech = speech.Params{UseSAS: c.UseSAS, DZElev: dz}
	if c.Speech.RateS > 0 {
		for _, e := range c.Speech.Entries {
			p.Speech.Entries = append(p.Speech.Entries, speech.Entry{
				Mode:     uint8(e.Mode),
				Units:    uint8(e.Units),
				Decimals: uint8(e.Decimals),
			})
		}
	}

	p.Tone = tone.Options{
		Volume:       volumeShift(c.Tone.Volume),
		SpeechVolume: volumeShift(c.Speech.Volume),
	}
	p.TZOffset = time.Duration(c.TZOffset) * time.Second
	return p
}
