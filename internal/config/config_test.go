package config

import "testing"

func validConfig() Config {
	return Config{
		Run:     RunConfig{BatchSize: 16, ThreadCount: 4},
		Storage: StorageConfig{Type: "local", LocalPath: "./data"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid local", func(c *Config) {}, false},
		{"zero batch size", func(c *Config) { c.Run.BatchSize = 0 }, true},
		{"zero threads", func(c *Config) { c.Run.ThreadCount = 0 }, true},
		{"local without path", func(c *Config) { c.Storage.LocalPath = "" }, true},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "ftp" }, true},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Region = "us-east-1"
		}, true},
		{"s3 complete", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Bucket = "data"
			c.Storage.S3.Region = "us-east-1"
		}, false},
		{"azure without credentials", func(c *Config) {
			c.Storage.Type = "azure"
			c.Storage.Azure.Container = "data"
		}, true},
		{"http without base url", func(c *Config) { c.Storage.Type = "http" }, true},
		{"bad logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
