// Package config holds the runtime configuration of the server and client roles.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/acmcarther/funandgames/internal/reliable"
	"github.com/acmcarther/funandgames/internal/relay"
	"github.com/acmcarther/funandgames/internal/transport"
)

// Role represents the chosen role (server or client).
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Default ports.
const (
	DefaultServerPort = 5555
	DefaultClientPort = 4444
)

// ParseRole parses a role name, ignoring case and surrounding space.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleServer:
		return RoleServer, nil
	case RoleClient:
		return RoleClient, nil
	default:
		return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleServer, RoleClient)
	}
}

// Config stores every parameter of one run, from defaults,
// a config file, flags, or the interactive prompts.
type Config struct {
	Role    Role
	Bind    string // "host:port"; an empty host binds every interface
	Remote  string // Client: server address
	Monitor string // Server: monitor HTTP address, empty to disable
	History string // Server: SQLite path, empty to disable

	DropTimeout       time.Duration
	LivenessTimeout   time.Duration
	CullInterval      time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration

	Debug bool
}

// Default returns the configuration used when nothing is specified.
func Default(role Role) Config {
	cfg := Config{
		Role:              role,
		DropTimeout:       reliable.DefaultDropTimeout,
		LivenessTimeout:   reliable.DefaultLivenessTimeout,
		CullInterval:      reliable.DefaultCullInterval,
		SweepInterval:     transport.DefaultSweepInterval,
		HeartbeatInterval: relay.DefaultHeartbeatInterval,
	}

	switch role {
	case RoleServer:
		cfg.Bind = ":" + strconv.Itoa(DefaultServerPort)
	default:
		cfg.Bind = ":" + strconv.Itoa(DefaultClientPort)
		cfg.Remote = "localhost:" + strconv.Itoa(DefaultServerPort)
	}
	return cfg
}

type fileConfig struct {
	Bind              string `toml:"bind"`
	Remote            string `toml:"remote"`
	Monitor           string `toml:"monitor"`
	History           string `toml:"history"`
	DropTimeout       string `toml:"drop_timeout"`
	LivenessTimeout   string `toml:"liveness_timeout"`
	CullInterval      string `toml:"cull_interval"`
	SweepInterval     string `toml:"sweep_interval"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	Debug             bool   `toml:"debug"`
}

// Load returns the defaults for role overridden by the keys set in
// the TOML file at path. Durations are Go duration strings ("750ms").
func Load(path string, role Role) (Config, error) {
	cfg := Default(role)

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("bind") {
		cfg.Bind = strings.TrimSpace(raw.Bind)
	}
	if meta.IsDefined("remote") {
		cfg.Remote = strings.TrimSpace(raw.Remote)
	}
	if meta.IsDefined("monitor") {
		cfg.Monitor = strings.TrimSpace(raw.Monitor)
	}
	if meta.IsDefined("history") {
		cfg.History = strings.TrimSpace(raw.History)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"drop_timeout", raw.DropTimeout, &cfg.DropTimeout},
		{"liveness_timeout", raw.LivenessTimeout, &cfg.LivenessTimeout},
		{"cull_interval", raw.CullInterval, &cfg.CullInterval},
		{"sweep_interval", raw.SweepInterval, &cfg.SweepInterval},
		{"heartbeat_interval", raw.HeartbeatInterval, &cfg.HeartbeatInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Validate checks the configuration without resolving any host names.
func (c Config) Validate() error {
	var errs []error

	if _, err := ParseRole(string(c.Role)); err != nil {
		errs = append(errs, err)
	}
	if err := checkHostPort("bind", c.Bind, true); err != nil {
		errs = append(errs, err)
	}
	if c.Role == RoleClient {
		if err := checkHostPort("remote", c.Remote, false); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Monitor != "" {
		if err := checkHostPort("monitor", c.Monitor, true); err != nil {
			errs = append(errs, err)
		}
	}

	for name, d := range map[string]time.Duration{
		"drop_timeout":       c.DropTimeout,
		"liveness_timeout":   c.LivenessTimeout,
		"cull_interval":      c.CullInterval,
		"sweep_interval":     c.SweepInterval,
		"heartbeat_interval": c.HeartbeatInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.HeartbeatInterval > 0 && c.HeartbeatInterval >= c.LivenessTimeout {
		errs = append(errs, fmt.Errorf("heartbeat_interval %s must be shorter than liveness_timeout %s",
			c.HeartbeatInterval, c.LivenessTimeout))
	}

	return errors.Join(errs...)
}

// TransportConfig returns the transport settings, resolving the bind address.
func (c Config) TransportConfig() (transport.Config, error) {
	bind, err := ParseBindAddress(c.Bind)
	if err != nil {
		return transport.Config{}, err
	}
	return transport.Config{
		Bind:            bind,
		DropTimeout:     c.DropTimeout,
		LivenessTimeout: c.LivenessTimeout,
		CullInterval:    c.CullInterval,
		SweepInterval:   c.SweepInterval,
	}, nil
}

// ParsePeerAddress resolves "host:port" to a UDP peer address.
// IPv4 results are never IPv4-mapped.
func ParsePeerAddress(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}

	if err := checkHostPort("address", s, false); err != nil {
		return netip.AddrPort{}, err
	}

	ua, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve %q: %w", s, err)
	}
	ap := ua.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// ParseBindAddress is ParsePeerAddress, except that an empty host
// means every interface.
func ParseBindAddress(s string) (netip.AddrPort, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid bind address %q: %w", s, err)
	}
	if host != "" {
		return ParsePeerAddress(s)
	}

	p, err := parsePort(port)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid bind address %q: %w", s, err)
	}
	return netip.AddrPortFrom(netip.IPv6Unspecified(), p), nil
}

func checkHostPort(name, s string, allowEmptyHost bool) error {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if host == "" && !allowEmptyHost {
		return fmt.Errorf("invalid %s %q: missing host", name, s)
	}
	if _, err := parsePort(port); err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(p), nil
}
