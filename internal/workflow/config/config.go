package config

// Config holds workflow engine configuration.
type Config struct {
	// MaxChainDepth caps how many times listeners may re-emit along a single
	// causation chain before further emits are dropped.
	MaxChainDepth int `yaml:"max_chain_depth"`
}

func DefaultConfig() Config {
	return Config{
		MaxChainDepth: 8,
	}
}
