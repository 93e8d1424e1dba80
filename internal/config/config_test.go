package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	content := `title = "Glassview Test"

[db]
engine = "sqlite"
name = "glassview-test.db"

[webserver]
port = 9090
shutdowntime = 1

[permissions]
defaultgroup = "Everyone"
newtabledataaccess = "unrestricted"
`

	path := filepath.Join(t.TempDir(), "glassview.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	return path
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "Glassview Test" {
		t.Errorf("Title = %v, want %v", cfg.Title, "Glassview Test")
	}

	if cfg.Webserver.Port != 9090 {
		t.Errorf("Webserver.Port = %v, want %v", cfg.Webserver.Port, 9090)
	}

	if cfg.DB.Engine != "sqlite" {
		t.Errorf("DB.Engine = %v, want %v", cfg.DB.Engine, "sqlite")
	}

	if cfg.Permissions.DefaultGroup != "Everyone" {
		t.Errorf("Permissions.DefaultGroup = %v, want %v", cfg.Permissions.DefaultGroup, "Everyone")
	}

	if cfg.Permissions.NewTableDataAccess != "unrestricted" {
		t.Errorf("Permissions.NewTableDataAccess = %v, want %v", cfg.Permissions.NewTableDataAccess, "unrestricted")
	}

	// defaults fill anything the file leaves out
	if cfg.Log.LogLevel != "info" {
		t.Errorf("Log.LogLevel = %v, want %v", cfg.Log.LogLevel, "info")
	}

	if cfg.Permissions.NewTableDownload != "no" {
		t.Errorf("Permissions.NewTableDownload = %v, want %v", cfg.Permissions.NewTableDownload, "no")
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("ReadConfig() should fail for a missing file")
	}
}

func TestReadConfigEnvOverride(t *testing.T) {
	t.Setenv("GLASSVIEW_TITLE", "From Env")

	cfg, err := ReadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "From Env" {
		t.Errorf("Title = %v, want %v", cfg.Title, "From Env")
	}
}

func TestConfigValidation(t *testing.T) {
	valid := Config{
		DB:        DB{Engine: "sqlite", Name: "glassview.db"},
		Webserver: Webserver{Port: 8080},
		Permissions: Permissions{
			DefaultGroup: "All Users",
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.DB.Name = "" },
			wantErr: true,
		},
		{
			name:    "unsupported engine",
			mutate:  func(c *Config) { c.DB.Engine = "oracle" },
			wantErr: true,
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Webserver.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Webserver.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing default group",
			mutate:  func(c *Config) { c.Permissions.DefaultGroup = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
