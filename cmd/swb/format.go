package main

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"gorm.io/gorm"
)

// defaultConfigPath is the config file looked up when --config is not given.
const defaultConfigPath = "switchboard.yaml"

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Database, err)
	}

	return cfg, gormDB, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// dash renders an optional reference as "-" when absent.
func dash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// joinTags renders a tag set for table output.
func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}
