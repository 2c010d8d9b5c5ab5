package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	appdefaults "github.com/saker-ai/robodog-server/config"

	"github.com/saker-ai/robodog-server/internal/logger"
	"github.com/spf13/viper"
)

const envPrefix = "robodog"

// SystemConfig represents a systemConfig.
type SystemConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CameraConfig selects and tunes the frame source.
type CameraConfig struct {
	Source  string `mapstructure:"source"`
	Device  int    `mapstructure:"device"`
	URL     string `mapstructure:"url"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	FPS     int    `mapstructure:"fps"`
	Quality int    `mapstructure:"quality"`
}

// ActuatorConfig selects the hardware driver.
type ActuatorConfig struct {
	Driver         string        `mapstructure:"driver"`
	BridgeURL      string        `mapstructure:"bridge_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReconnectMax   time.Duration `mapstructure:"reconnect_max"`
}

// MotionConfig holds walker timing and default speeds.
type MotionConfig struct {
	WalkInterval time.Duration `mapstructure:"walk_interval"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	WalkSpeed    int           `mapstructure:"walk_speed"`
	HeadSpeed    int           `mapstructure:"head_speed"`
}

// SpeechConfig selects the speech engine and its audio input.
type SpeechConfig struct {
	Engine         string        `mapstructure:"engine"`
	PhrasesFile    string        `mapstructure:"phrases_file"`
	LanguageCode   string        `mapstructure:"language_code"`
	SampleRate     int           `mapstructure:"sample_rate"`
	RecognizerRate int           `mapstructure:"recognizer_rate"`
	Boost          float32       `mapstructure:"boost"`
	ProjectID      string        `mapstructure:"project_id"`
	AudioCommand   []string      `mapstructure:"audio_command"`
	VoskModelPath  string        `mapstructure:"vosk_model_path"`
	StreamLimit    time.Duration `mapstructure:"stream_limit"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	MaxInterval    time.Duration `mapstructure:"max_interval"`
}

// Config represents a config.
type Config struct {
	RootDir      string         `mapstructure:"-"`
	HTTPAddr     string         `mapstructure:"http_addr"`
	Mock         bool           `mapstructure:"mock"`
	TLSCertPath  string         `mapstructure:"tls_cert_path"`
	TLSKeyPath   string         `mapstructure:"tls_key_path"`
	TLSRequired  bool           `mapstructure:"tls_required"`
	TLSDisable   bool           `mapstructure:"tls_disable"`
	SystemConfig SystemConfig   `mapstructure:"system_config"`
	Camera       CameraConfig   `mapstructure:"camera"`
	Actuator     ActuatorConfig `mapstructure:"actuator"`
	Motion       MotionConfig   `mapstructure:"motion"`
	Speech       SpeechConfig   `mapstructure:"speech"`
	Log          logger.Config  `mapstructure:"log"`
}

// Load reads the embedded defaults, then conf.yaml from the resolved root dir.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.AddConfigPath(rootDir)

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finish(v, rootDir)
}

// LoadConfig reads configPath over the embedded defaults. An empty path falls back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("ROBODOG_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finish(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("http_addr", "")
	v.SetDefault("mock", true)
	v.SetDefault("tls_required", false)
	v.SetDefault("tls_disable", true)
	v.SetDefault("tls_cert_path", "")
	v.SetDefault("tls_key_path", "")
	v.SetDefault("camera.source", "synthetic")
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.fps", 30)
	v.SetDefault("camera.quality", 85)
	v.SetDefault("actuator.driver", "simulator")
	v.SetDefault("actuator.request_timeout", 10*time.Second)
	v.SetDefault("actuator.reconnect_max", 30*time.Second)
	v.SetDefault("motion.walk_interval", time.Second)
	v.SetDefault("motion.settle_delay", time.Second)
	v.SetDefault("motion.walk_speed", 98)
	v.SetDefault("motion.head_speed", 80)
	v.SetDefault("speech.engine", "simulated")
	v.SetDefault("speech.phrases_file", "phrases.txt")
	v.SetDefault("speech.language_code", "en-US")
	v.SetDefault("speech.sample_rate", 44100)
	v.SetDefault("speech.recognizer_rate", 16000)
	v.SetDefault("speech.boost", 10)
	v.SetDefault("speech.stream_limit", 4*time.Minute)
	v.SetDefault("speech.min_interval", 10*time.Second)
	v.SetDefault("speech.max_interval", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "robodog-server.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyMock forces simulated collaborators for every hardware-facing component.
func (c *Config) ApplyMock() {
	if !c.Mock {
		return
	}
	c.Camera.Source = "synthetic"
	c.Actuator.Driver = "simulator"
	if c.Speech.Engine != "none" {
		c.Speech.Engine = "simulated"
	}
}

// Validate rejects values the runtime cannot start with.
func (c Config) Validate() error {
	switch c.Camera.Source {
	case "synthetic", "device", "mjpeg":
	default:
		return fmt.Errorf("unknown camera source %q", c.Camera.Source)
	}
	if c.Camera.Source == "mjpeg" && strings.TrimSpace(c.Camera.URL) == "" {
		return fmt.Errorf("camera source mjpeg requires camera.url")
	}
	switch c.Actuator.Driver {
	case "simulator", "bridge":
	default:
		return fmt.Errorf("unknown actuator driver %q", c.Actuator.Driver)
	}
	switch c.Speech.Engine {
	case "none", "simulated", "google", "vosk":
	default:
		return fmt.Errorf("unknown speech engine %q", c.Speech.Engine)
	}
	if c.Motion.WalkInterval <= 0 {
		return fmt.Errorf("motion.walk_interval must be positive, got %s", c.Motion.WalkInterval)
	}
	if c.Speech.MaxInterval < c.Speech.MinInterval {
		return fmt.Errorf("speech.max_interval %s is below speech.min_interval %s", c.Speech.MaxInterval, c.Speech.MinInterval)
	}
	return nil
}

func deriveHTTPAddr(cfg *Config) {
	if cfg.HTTPAddr != "" {
		return
	}
	host := cfg.SystemConfig.Host
	port := cfg.SystemConfig.Port
	if port == 0 {
		port = 8000
	}
	if host == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(port))
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("ROBODOG_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, filepath.Join("certs", "server.crt"))
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, filepath.Join("certs", "server.key"))
	cfg.Speech.PhrasesFile = resolvePath(cfg.RootDir, cfg.Speech.PhrasesFile, "phrases.txt")
	cfg.Speech.VoskModelPath = resolvePath(cfg.RootDir, cfg.Speech.VoskModelPath, filepath.Join("models", "vosk"))
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
