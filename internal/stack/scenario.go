package stack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"rtnet-go/internal/wire"
)

// ScenarioConfig is the YAML description of a single node's bring-up:
// its address, static routes, and any service announcements it should
// make.
type ScenarioConfig struct {
	Node   NodeScenario    `yaml:"node"`
	Routes []RouteScenario `yaml:"routes"`
	MDNS   []MDNSScenario  `yaml:"mdns_announce"`
}

type NodeScenario struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	MAC     string `yaml:"mac"`
}

type RouteScenario struct {
	Destination string `yaml:"destination"`
	PrefixLen   uint8  `yaml:"prefix_len"`
	NextHop     string `yaml:"next_hop"` // empty means directly connected
	Metric      uint16 `yaml:"metric"`
}

type MDNSScenario struct {
	Name   string `yaml:"name"`
	Port   uint16 `yaml:"port"`
	TTLSec uint32 `yaml:"ttl_sec"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stack: failed to read scenario file %s: %w", path, err)
	}

	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("stack: failed to parse scenario YAML: %w", err)
	}
	if err := validateScenario(&cfg); err != nil {
		return nil, fmt.Errorf("stack: scenario validation failed: %w", err)
	}
	return &cfg, nil
}

func validateScenario(cfg *ScenarioConfig) error {
	if cfg.Node.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if cfg.Node.Address == "" {
		return fmt.Errorf("node address is required")
	}
	if cfg.Node.MAC == "" {
		return fmt.Errorf("node mac is required")
	}
	if _, err := wire.ParseIPv6(cfg.Node.Address); err != nil {
		return err
	}
	if _, err := wire.ParseMAC(cfg.Node.MAC); err != nil {
		return err
	}
	for i, r := range cfg.Routes {
		if r.PrefixLen > 128 {
			return fmt.Errorf("route %d: prefix_len %d > 128", i, r.PrefixLen)
		}
		if _, err := wire.ParseIPv6(r.Destination); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		if r.NextHop != "" {
			if _, err := wire.ParseIPv6(r.NextHop); err != nil {
				return fmt.Errorf("route %d: next_hop: %w", i, err)
			}
		}
	}
	return nil
}

// Apply initializes ctx from the scenario and installs its static
// routes and announcements. The caller still owns construction of the
// Context (its platform hooks are a deployment decision this config
// format has no opinion on).
func (cfg *ScenarioConfig) Apply(ctx *Context) error {
	addr, err := wire.ParseIPv6(cfg.Node.Address)
	if err != nil {
		return err
	}
	mac, err := wire.ParseMAC(cfg.Node.MAC)
	if err != nil {
		return err
	}
	if err := ctx.Initialize(addr, mac); err != nil {
		return err
	}

	for _, r := range cfg.Routes {
		dest, _ := wire.ParseIPv6(r.Destination)
		var nextHop *wire.IPv6Addr
		if r.NextHop != "" {
			nh, _ := wire.ParseIPv6(r.NextHop)
			nextHop = &nh
		}
		if err := ctx.AddRoute(dest, r.PrefixLen, nextHop, r.Metric); err != nil {
			return fmt.Errorf("stack: applying route %s/%d: %w", r.Destination, r.PrefixLen, err)
		}
	}

	for _, m := range cfg.MDNS {
		if err := ctx.MDNSAnnounce(m.Name, m.Port, m.TTLSec); err != nil {
			return fmt.Errorf("stack: applying mdns announcement %s: %w", m.Name, err)
		}
	}

	return nil
}
