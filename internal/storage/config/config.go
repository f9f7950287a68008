package config

import "os"

// Config holds storage configuration.
type Config struct {
	Mongo MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	DatabaseName string `yaml:"database_name"`
}

func DefaultConfig() Config {
	return Config{
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			DatabaseName: "clientflow",
		},
	}
}

// ApplyEnvOverrides applies environment variable overrides so deployments
// can inject connection strings without editing config files.
func (c *Config) ApplyEnvOverrides() {
	if uri := os.Getenv("CLIENTFLOW_MONGO_URI"); uri != "" {
		c.Mongo.URI = uri
	}
	if db := os.Getenv("CLIENTFLOW_MONGO_DB"); db != "" {
		c.Mongo.DatabaseName = db
	}
}
