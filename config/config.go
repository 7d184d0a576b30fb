package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/b0bbywan/go-odio-portal/logger"
)

const (
	AppName     = "odio-portal"
	AppVersion  = "0.1.0"
	envPrefix   = "ODIO_PORTAL"
	serviceType = "_http._tcp"
	domain      = "local."
)

// wallpaper targets accepted for wallpaper.set_on
var setOnValues = []string{"lockscreen", "background", "both"}

type Config struct {
	Api       *ApiConfig
	Portal    *PortalConfig
	Zeroconf  *ZeroConfig
	LogLevel  logger.Level
	LogLevels map[string]logger.Level
}

type ApiConfig struct {
	Enabled bool
	Port    int
	Listen  string
}

type PortalConfig struct {
	CallTimeout     time.Duration
	ResponseTimeout time.Duration
	OutcomeTTL      time.Duration
	WindowTimeout   time.Duration
	ParentWindow    string

	Camera     *CameraConfig
	Screenshot *ScreenshotConfig
	Wallpaper  *WallpaperConfig
}

type CameraConfig struct {
	Enabled bool
}

// ScreenshotConfig defaults; nil means the broker decides.
type ScreenshotConfig struct {
	Enabled     bool
	Interactive *bool
	Modal       *bool
}

// WallpaperConfig defaults; nil / empty means the broker decides.
type WallpaperConfig struct {
	Enabled     bool
	ShowPreview *bool
	SetOn       string
	WatchDir    string
}

type ZeroConfig struct {
	Enabled      bool
	InstanceName string
	ServiceType  string
	Domain       string
	Port         int
	TxtRecords   []string
	Listen       []net.Interface
}

func interfaceForIP(ip string) (*net.Interface, error) {
	if ip == "127.0.0.1" {
		return nil, nil
	}
	listenIP := net.ParseIP(ip)
	if listenIP == nil {
		return nil, fmt.Errorf("invalid bind: %s", ip)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			var ifaceIP net.IP

			switch v := addr.(type) {
			case *net.IPNet:
				ifaceIP = v.IP
			case *net.IPAddr:
				ifaceIP = v.IP
			}

			if ifaceIP != nil && ifaceIP.Equal(listenIP) {
				return &iface, nil
			}
		}
	}

	return nil, fmt.Errorf("no interface found for IP %s", ip)
}

// optionalBool keeps unset keys nil instead of collapsing them to false.
func optionalBool(v *viper.Viper, key string) *bool {
	if !v.IsSet(key) {
		return nil
	}
	b := v.GetBool(key)
	return &b
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8090)
	v.SetDefault("bind", "127.0.0.1")

	v.SetDefault("portal.call_timeout", "5s")
	v.SetDefault("portal.response_timeout", "0s")
	v.SetDefault("portal.outcome_ttl", "10m")
	v.SetDefault("portal.window_timeout", "1s")
	v.SetDefault("portal.parent_window", "")

	v.SetDefault("camera.enabled", true)
	v.SetDefault("screenshot.enabled", true)
	v.SetDefault("wallpaper.enabled", true)
	v.SetDefault("wallpaper.watch_dir", "")

	v.SetDefault("zeroconf.enabled", false)
	v.SetDefault("LogLevel", "WARN")
}

// New loads the configuration from defaults, config files and ODIO_PORTAL_* env.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join("/etc", AppName))
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with defaults if not found
		if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
			logger.Warn("[config] failed to read config: %v", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	port := v.GetInt("api.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", port)
	}
	bind := v.GetString("bind")

	var interfaces []net.Interface
	inet, err := interfaceForIP(bind)
	if err == nil && inet != nil {
		interfaces = append(interfaces, *inet)
	}

	setOn := strings.ToLower(strings.TrimSpace(v.GetString("wallpaper.set_on")))
	if setOn != "" && !contains(setOnValues, setOn) {
		return nil, fmt.Errorf("invalid wallpaper.set_on %q (want one of %v)", setOn, setOnValues)
	}

	callTimeout := v.GetDuration("portal.call_timeout")
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	responseTimeout := v.GetDuration("portal.response_timeout")
	if responseTimeout < 0 {
		return nil, fmt.Errorf("invalid portal.response_timeout: %s", responseTimeout)
	}

	portalCfg := PortalConfig{
		CallTimeout:     callTimeout,
		ResponseTimeout: responseTimeout,
		OutcomeTTL:      v.GetDuration("portal.outcome_ttl"),
		WindowTimeout:   v.GetDuration("portal.window_timeout"),
		ParentWindow:    v.GetString("portal.parent_window"),
		Camera: &CameraConfig{
			Enabled: v.GetBool("camera.enabled"),
		},
		Screenshot: &ScreenshotConfig{
			Enabled:     v.GetBool("screenshot.enabled"),
			Interactive: optionalBool(v, "screenshot.interactive"),
			Modal:       optionalBool(v, "screenshot.modal"),
		},
		Wallpaper: &WallpaperConfig{
			Enabled:     v.GetBool("wallpaper.enabled"),
			ShowPreview: optionalBool(v, "wallpaper.show_preview"),
			SetOn:       setOn,
			WatchDir:    v.GetString("wallpaper.watch_dir"),
		},
	}

	zerocfg := ZeroConfig{
		Enabled:      v.GetBool("zeroconf.enabled"),
		InstanceName: AppName,
		ServiceType:  serviceType,
		Domain:       domain,
		Port:         port,
		TxtRecords:   []string{"version=" + AppVersion},
		Listen:       interfaces,
	}

	levels := map[string]logger.Level{}
	for component, level := range v.GetStringMapString("log.levels") {
		levels[component] = logger.ParseLevel(level)
	}

	cfg := Config{
		Api: &ApiConfig{
			Enabled: v.GetBool("api.enabled"),
			Port:    port,
			Listen:  net.JoinHostPort(bind, fmt.Sprint(port)),
		},
		Portal:    &portalCfg,
		Zeroconf:  &zerocfg,
		LogLevel:  logger.ParseLevel(v.GetString("LogLevel")),
		LogLevels: levels,
	}

	return &cfg, nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
