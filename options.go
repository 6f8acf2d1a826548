package llmstream

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var providerOptionsYAML []byte

// Options Philosophy:
//
// Options carry converter-local static configuration: the default model
// to report when the wire never names one, and provider quirks such as
// whether the text channel inlines <think> markers.
//
// Options deliberately do NOT include the usage policy. Whether a
// provider's usage updates are cumulative or snapshot is fixed in each
// converter from that provider's documented semantics; making it
// configurable invites getting it backwards.
//
// The embedded defaults can be overridden by:
//  1. Calling LoadOptionsFromFile() with custom YAML
//  2. Passing an Options literal to the converter constructor

// Options is the static configuration for one provider's converter.
type Options struct {
	// DefaultModel is reported in stream metadata when the wire format
	// never names the serving model.
	DefaultModel string `yaml:"default_model"`

	// StripThinkTags routes <think>...</think> spans in the text channel
	// into the thinking channel. Only meaningful for providers whose
	// models inline reasoning in the content body.
	StripThinkTags bool `yaml:"strip_think_tags"`
}

type optionsFile struct {
	Version   string             `yaml:"version"`
	Providers map[string]Options `yaml:"providers"`
}

var (
	optionsMu       sync.RWMutex
	providerOptions map[ProviderID]Options
)

func init() {
	opts, err := parseOptionsYAML(providerOptionsYAML)
	if err != nil {
		// Embedded defaults are validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("llmstream: embedded provider options invalid: %v", err))
	}
	providerOptions = opts
}

func parseOptionsYAML(data []byte) (map[ProviderID]Options, error) {
	var file optionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	opts := make(map[ProviderID]Options, len(file.Providers))
	for name, o := range file.Providers {
		opts[ProviderID(name)] = o
	}
	return opts, nil
}

// OptionsFor returns the configured options for a provider, falling back
// to the zero value for unknown providers.
func OptionsFor(provider ProviderID) Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return providerOptions[provider]
}

// RegisterOptions overrides the options for one provider programmatically.
func RegisterOptions(provider ProviderID, opts Options) {
	optionsMu.Lock()
	defer optionsMu.Unlock()
	providerOptions[provider] = opts
}

// LoadOptionsFromFile replaces provider options from a YAML file with the
// same shape as the embedded defaults. Providers absent from the file
// keep their current options.
func LoadOptionsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read provider options: %w", err)
	}
	opts, err := parseOptionsYAML(data)
	if err != nil {
		return fmt.Errorf("parse provider options %s: %w", path, err)
	}

	optionsMu.Lock()
	defer optionsMu.Unlock()
	for provider, o := range opts {
		providerOptions[provider] = o
	}
	return nil
}
