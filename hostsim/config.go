package hostsim

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/wire"
)

// Config describes the simulated host.
type Config struct {
	// Origin is the origin the host posts from.
	Origin string `yaml:"origin"`

	// FrameContext is reported in the handshake reply.
	FrameContext wire.FrameContext `yaml:"frameContext"`

	// HostClientType is reported in the handshake reply.
	HostClientType wire.HostClientType `yaml:"hostClientType"`

	// ClientSupportedSDKVersion is reported in the handshake reply.
	ClientSupportedSDKVersion string `yaml:"clientSupportedSDKVersion"`

	// LegacyReply makes handshake reply carry frame context only, the way old mobile hosts do.
	LegacyReply bool `yaml:"legacyReply"`

	// Runtime is the capability descriptor. If nil, the app falls back to the back-compat one.
	Runtime *capability.Runtime `yaml:"runtime"`

	// Results are canned reply arguments, keyed by function name.
	Results map[string][]any `yaml:"results"`
}

// DefaultConfig returns configuration of a desktop host supporting nothing.
func DefaultConfig() Config {
	return Config{
		Origin:                    "https://host.example.com",
		FrameContext:              wire.FrameContextContent,
		HostClientType:            wire.HostClientDesktop,
		ClientSupportedSDKVersion: capability.DefaultClientSDKVersion,
		Runtime: &capability.Runtime{
			APIVersion: capability.LatestAPIVersion,
		},
	}
}

// ParseConfig decodes YAML configuration. Missing fields take the defaults.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(err, "decoding host config failed")
	}
	if !config.FrameContext.Valid() {
		return Config{}, errors.Errorf("invalid frame context %q", config.FrameContext)
	}
	if config.Runtime != nil && config.Runtime.APIVersion == 0 {
		return Config{}, errors.New("runtime has no api version")
	}
	return config, nil
}

// LoadConfig reads YAML configuration from file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading host config %q failed", path)
	}
	return ParseConfig(data)
}
