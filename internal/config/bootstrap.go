package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultInternalPriority is the priority assigned to a service that does
// not request one explicitly (§3: "priority ... default = internal").
const DefaultInternalPriority uint32 = 1000

// DefaultQueueCapacity is the initial capacity reserved for the dispatcher's
// priority heap. The heap still grows past this; it only avoids repeated
// small reallocations during startup.
const DefaultQueueCapacity = 256

// Bootstrap holds the handful of values a container needs before its first
// event is posted.
type Bootstrap struct {
	// QueueCapacity is the initial capacity of the dispatcher's priority heap.
	QueueCapacity int `yaml:"queueCapacity"`

	// DefaultPriority is used for events posted by the system itself
	// (originating_service == 0) when no explicit priority is given.
	DefaultPriority uint32 `yaml:"defaultPriority"`

	// ContainerID, if it parses as a UUID, fixes the container's
	// disambiguating id instead of generating one — used by multi-container
	// deployments that need stable ids across restarts. A value that is not
	// a valid UUID is ignored and a random id is generated.
	ContainerID string `yaml:"containerId"`
}

// Default returns the bootstrap configuration used when no file is loaded.
func Default() Bootstrap {
	return Bootstrap{
		QueueCapacity:   DefaultQueueCapacity,
		DefaultPriority: DefaultInternalPriority,
	}
}

// Load reads a Bootstrap from a YAML file, filling unset fields with
// Default(). A missing file is not an error; it just yields the defaults.
func Load(path string) (Bootstrap, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read bootstrap config %s: %w", path, err)
	}

	// Unmarshal into a copy that starts from the defaults so an omitted
	// field in the file keeps its default rather than zeroing out.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Bootstrap{}, fmt.Errorf("parse bootstrap config %s: %w", path, err)
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.DefaultPriority == 0 {
		cfg.DefaultPriority = DefaultInternalPriority
	}
	return cfg, nil
}
