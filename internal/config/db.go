package config

// DB holds the database configuration settings.
type DB struct {
	Engine   string `validate:"required,oneof=mysql postgres sqlite"` // gorm driver to use
	Extras   string // extra DSN parameters
	Host     string
	Port     int
	User     string
	Password string
	Name     string // database name, or file path for sqlite
}
