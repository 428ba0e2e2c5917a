package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath     string `envconfig:"DATA_PATH" default:"/app/data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/app/data/panel.db"`
	LogPath      string `envconfig:"LOG_PATH" default:"/app/data/panel.log"`

	// Node agent API
	NodeAPIURL     string `envconfig:"NODE_API_URL" default:"http://127.0.0.1:9090"`
	NodeAPITimeout string `envconfig:"NODE_API_TIMEOUT" default:"10s"`

	// Optional per-core binary overrides (YAML)
	CoresConfigPath string `envconfig:"CORES_CONFIG_PATH" default:""`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("PANEL", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
