package config

import (
	"github.com/glassview-analytics/glassview/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode     bool // enable dev mode for development
	DB          DB
	Log         logger.Log
	Title       string
	Webserver   Webserver
	Permissions Permissions
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain       string `validate:"omitempty,hostname"` // domain name for the webserver
	Port         int    `validate:"required,gt=0,lte=65535"`
	ShutDownTime int    // wait time in seconds before shutdown
}

// Permissions holds the defaults applied by the permissions engine.
type Permissions struct {
	// DefaultGroup is the name of the built-in group every user belongs to.
	DefaultGroup string `validate:"required"`
	// NewTableDataAccess is the data-access default granted when a new table
	// appears and its schema carries no uniform value.
	NewTableDataAccess string `mapstructure:"newTableDataAccess"`
	// NewTableDownload is the download-results default for new tables.
	NewTableDownload string `mapstructure:"newTableDownload"`
}
