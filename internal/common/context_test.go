package common

import (
	"context"
	"reflect"
	"testing"
)

func TestLogAttrs(t *testing.T) {
	ctx := context.Background()
	if got := LogAttrs(ctx); len(got) != 0 {
		t.Fatalf("empty context attrs = %v", got)
	}
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithAnalysisID(ctx, "an-1")
	want := []any{"request_id", "req-1", "analysis_id", "an-1"}
	if got := LogAttrs(ctx); !reflect.DeepEqual(got, want) {
		t.Errorf("LogAttrs = %v, want %v", got, want)
	}
	ctx = WithSellerID(ctx, "s-1")
	if got := SellerIDFromContext(ctx); got != "s-1" {
		t.Errorf("seller id = %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"sqlite defaults to memory", func(c *Config) { c.Database.Driver = StoreSQLite }, false},
		{"postgres needs dsn", func(c *Config) { c.Database.Driver = StorePostgres }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"google needs processor", func(c *Config) {
			c.Database.Driver = StoreSQLite
			c.Google.ProjectID = "p"
		}, true},
		{"watch needs seller", func(c *Config) {
			c.Database.Driver = StoreSQLite
			c.Watch.Dirs = []string{"/tmp/in"}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Server: ServerConfig{GRPCAddr: ":8080"}}
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && c.Database.DSN != ":memory:" {
				t.Errorf("dsn = %q", c.Database.DSN)
			}
		})
	}
}
