package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tunnelgate/panel/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init() error {
	dbPath := config.Cfg.DatabasePath
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if err := DB.AutoMigrate(&Tunnel{}, &Node{}, &CoreResetConfig{}, &Setting{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Settings helpers

func GetSetting(key string) (string, error) {
	var s Setting
	if err := DB.Where("key = ?", key).First(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

func SetSetting(key, value string) error {
	return DB.Where("key = ?", key).Assign(Setting{Value: value}).FirstOrCreate(&Setting{Key: key}).Error
}

// Tunnel helpers

func GetTunnel(id string) (*Tunnel, error) {
	var t Tunnel
	if err := DB.First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveTunnels returns all tunnels of the given core marked active.
func ActiveTunnels(core string) ([]Tunnel, error) {
	var tunnels []Tunnel
	if err := DB.Where("core = ? AND status = ?", core, "active").Find(&tunnels).Error; err != nil {
		return nil, err
	}
	return tunnels, nil
}

func ListTunnels() ([]Tunnel, error) {
	var tunnels []Tunnel
	if err := DB.Order("created_at").Find(&tunnels).Error; err != nil {
		return nil, err
	}
	return tunnels, nil
}

func SetTunnelStatus(id, status string) error {
	return DB.Model(&Tunnel{}).Where("id = ?", id).Update("status", status).Error
}

// Node helpers

func GetNode(id string) (*Node, error) {
	var n Node
	if err := DB.First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func ListNodes() ([]Node, error) {
	var nodes []Node
	if err := DB.Order("created_at").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// Reset config helpers

// GetOrCreateResetConfig returns the reset schedule row for a core, creating
// it with defaults (disabled, 10 minute interval) on first read.
func GetOrCreateResetConfig(core string) (*CoreResetConfig, error) {
	var cfg CoreResetConfig
	err := DB.First(&cfg, "core = ?", core).Error
	if err == nil {
		return &cfg, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	cfg = CoreResetConfig{Core: core, Enabled: false, IntervalMinutes: 10}
	if err := DB.Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveResetConfig(cfg *CoreResetConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	return DB.Save(cfg).Error
}
