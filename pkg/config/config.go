package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
)

type (
	// Duration is a time.Duration written as a string ("15s") in every
	// configuration source.
	Duration time.Duration

	// Config represents the session daemon configuration.
	Config struct {
		// LocalUserName is the display name of the local user.
		LocalUserName string `json:"localUserName" toml:"localUserName" env:"LOCAL_USER_NAME"`

		// LocalUserAccount is the account number of the local user.
		LocalUserAccount uint32 `json:"localUserAccount" toml:"localUserAccount" env:"LOCAL_USER_ACCOUNT"`

		// AppID identifies the game in the server directory.
		AppID int16 `json:"appID" toml:"appID" env:"APP_ID"`

		// BuildUniqueID rejects sessions hosted by incompatible builds.
		BuildUniqueID int32 `json:"buildUniqueID" toml:"buildUniqueID" env:"BUILD_UNIQUE_ID"`

		// TaskInterval is the idle cadence of the async task worker.
		TaskInterval Duration `json:"taskInterval" toml:"taskInterval" env:"TASK_INTERVAL"`

		// TickInterval is the cadence of the game thread.
		TickInterval Duration `json:"tickInterval" toml:"tickInterval" env:"TICK_INTERVAL"`

		// AsyncTimeout is the inactivity timeout of long running searches.
		AsyncTimeout Duration `json:"asyncTimeout" toml:"asyncTimeout" env:"ASYNC_TIMEOUT"`

		// LANPort is the UDP port LAN beacons listen on.
		LANPort int `json:"lanPort" toml:"lanPort" env:"LAN_PORT"`

		// LANBroadcastAddr is the address LAN queries are sent to.
		LANBroadcastAddr string `json:"lanBroadcastAddr" toml:"lanBroadcastAddr" env:"LAN_BROADCAST_ADDR"`

		// LANSearchTimeout is how long a LAN search waits for responses.
		LANSearchTimeout Duration `json:"lanSearchTimeout" toml:"lanSearchTimeout" env:"LAN_SEARCH_TIMEOUT"`

		// P2PPort is the port advertised in peer addresses.
		P2PPort uint16 `json:"p2pPort" toml:"p2pPort" env:"P2P_PORT"`

		// GamePort is the port game clients connect to.
		GamePort uint16 `json:"gamePort" toml:"gamePort" env:"GAME_PORT"`

		// PublicIP is the address advertised hosts announce. Empty lets the
		// backend pick it.
		PublicIP string `json:"publicIP" toml:"publicIP" env:"PUBLIC_IP"`

		// QueryPort is the port the query endpoint listens on.
		QueryPort uint16 `json:"queryPort" toml:"queryPort" env:"QUERY_PORT"`

		// QueryProtocol determines the protocol used for query responses
		QueryProtocol string `json:"queryProtocol" toml:"queryProtocol" env:"QUERY_PROTOCOL"`

		// Backend selects the matchmaking backend, memory or redis.
		Backend string `json:"backend" toml:"backend" env:"BACKEND"`

		// RedisAddr is the address of the redis directory.
		RedisAddr string `json:"redisAddr" toml:"redisAddr" env:"REDIS_ADDR"`

		// RedisKeyPrefix namespaces every key in the redis directory.
		RedisKeyPrefix string `json:"redisKeyPrefix" toml:"redisKeyPrefix" env:"REDIS_KEY_PREFIX"`

		// NotifyURL is the websocket URL of the notification feed. Empty
		// disables it.
		NotifyURL string `json:"notifyURL" toml:"notifyURL" env:"NOTIFY_URL"`

		// MetricsAddr is the address of the HTTP endpoint. Empty disables it.
		MetricsAddr string `json:"metricsAddr" toml:"metricsAddr" env:"METRICS_ADDR"`

		// MaxSearchResults caps the results of a search.
		MaxSearchResults int `json:"maxSearchResults" toml:"maxSearchResults" env:"MAX_SEARCH_RESULTS"`

		// Host describes a session to host at startup.
		Host HostConfig `json:"host" toml:"host" envPrefix:"HOST_"`
	}

	// HostConfig describes a session hosted at startup.
	HostConfig struct {
		// SessionName is the name of the session. Empty hosts nothing.
		SessionName string `json:"sessionName" toml:"sessionName" env:"SESSION_NAME"`

		ServerName            string `json:"serverName" toml:"serverName" env:"SERVER_NAME"`
		MapName               string `json:"mapName" toml:"mapName" env:"MAP_NAME"`
		GameMode              string `json:"gameMode" toml:"gameMode" env:"GAME_MODE"`
		NumPublicConnections  int32  `json:"numPublicConnections" toml:"numPublicConnections" env:"NUM_PUBLIC_CONNECTIONS"`
		NumPrivateConnections int32  `json:"numPrivateConnections" toml:"numPrivateConnections" env:"NUM_PRIVATE_CONNECTIONS"`
		LAN                   bool   `json:"lan" toml:"lan" env:"LAN"`
		UsesPresence          bool   `json:"usesPresence" toml:"usesPresence" env:"USES_PRESENCE"`
		Dedicated             bool   `json:"dedicated" toml:"dedicated" env:"DEDICATED"`
		AllowJoinInProgress   bool   `json:"allowJoinInProgress" toml:"allowJoinInProgress" env:"ALLOW_JOIN_IN_PROGRESS"`
		AllowInvites          bool   `json:"allowInvites" toml:"allowInvites" env:"ALLOW_INVITES"`
	}
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SESSIOND_"

var (
	ErrUnknownQueryProtocol = errors.New("field QueryProtocol must be a2s or sqp")
	ErrUnknownBackend       = errors.New("field Backend must be memory or redis")
	ErrInvalidAsyncTimeout  = errors.New("field AsyncTimeout must be positive")
	ErrInvalidLANPort       = errors.New("field LANPort must be between 1 and 65535")
	ErrInvalidMaxResults    = errors.New("field MaxSearchResults must not be negative")
	ErrInvalidHostSlots     = errors.New("field Host.NumPublicConnections must be positive")
	ErrRedisAddrRequired    = errors.New("field RedisAddr must be provided for the redis backend")
	ErrInvalidPublicIP      = errors.New("field PublicIP must be an IP address")
)

// Default returns the configuration used for every field no source sets.
func Default() *Config {
	return &Config{
		LocalUserName:    "player",
		LocalUserAccount: 1,
		AppID:            480,
		BuildUniqueID:    1,
		TaskInterval:     Duration(10 * time.Millisecond),
		TickInterval:     Duration(16 * time.Millisecond),
		AsyncTimeout:     Duration(15 * time.Second),
		LANPort:          14001,
		LANBroadcastAddr: "255.255.255.255",
		LANSearchTimeout: Duration(time.Second),
		P2PPort:          7777,
		GamePort:         7777,
		QueryPort:        27015,
		QueryProtocol:    "a2s",
		Backend:          "memory",
		RedisAddr:        "localhost:6379",
		RedisKeyPrefix:   "sessiond",
		MaxSearchResults: 50,
	}
}

// Load loads configuration from the specified file, if any, applies
// SESSIOND_ environment overrides and validates the result. Files ending in
// .toml are decoded as TOML, anything else as JSON.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := decodeFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(configFile string, cfg *Config) error {
	f, err := os.Open(configFile)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	if strings.EqualFold(filepath.Ext(configFile), ".toml") {
		if _, err = toml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("error decoding toml: %w", err)
		}

		return nil
	}

	if err = json.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("error decoding json: %w", err)
	}

	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.QueryProtocol {
	case "a2s", "sqp":
	default:
		result = multierror.Append(result, ErrUnknownQueryProtocol)
	}

	switch c.Backend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			result = multierror.Append(result, ErrRedisAddrRequired)
		}
	default:
		result = multierror.Append(result, ErrUnknownBackend)
	}

	if c.AsyncTimeout <= 0 {
		result = multierror.Append(result, ErrInvalidAsyncTimeout)
	}

	if c.LANPort <= 0 || c.LANPort > 0xFFFF {
		result = multierror.Append(result, ErrInvalidLANPort)
	}

	if c.MaxSearchResults < 0 {
		result = multierror.Append(result, ErrInvalidMaxResults)
	}

	if c.PublicIP != "" {
		if _, err := netip.ParseAddr(c.PublicIP); err != nil {
			result = multierror.Append(result, ErrInvalidPublicIP)
		}
	}

	if c.Host.SessionName != "" && c.Host.NumPublicConnections <= 0 {
		result = multierror.Append(result, ErrInvalidHostSlots)
	}

	return result.ErrorOrNil()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
