package factory

import (
	"path/filepath"
	"testing"

	"github.com/loykin/chronicle/internal/history/opensearch"
)

func TestFactoryDSNTypes(t *testing.T) {
	tests := []struct {
		name        string
		dsn         string
		expectError bool
	}{
		{"Empty DSN", "", true},
		{"Invalid scheme", "invalid://test", true},
		{"OpenSearch without host", "opensearch:///idx", true},
		{"SQLite file DSN", "sqlite://" + filepath.Join(t.TempDir(), "h.db"), false},
		{"SQLite memory DSN", "sqlite://:memory:", false},
		{"Bare path", ":memory:", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSinkFromDSN(tt.dsn)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for DSN %q, got nil", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for DSN %q: %v", tt.dsn, err)
			}
			if sink == nil {
				t.Fatalf("expected non-nil sink for DSN %q", tt.dsn)
			}
			if closer, ok := sink.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}

func TestFactoryOpenSearchNeedsNoConnection(t *testing.T) {
	sink, err := NewSinkFromDSN("opensearch://localhost:9200/audit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sink.(*opensearch.Sink); !ok {
		t.Fatalf("expected opensearch sink, got %T", sink)
	}
}

func TestClickHouseTarget(t *testing.T) {
	tests := []struct {
		dsn, addr, table string
	}{
		{"clickhouse://ch:9001?table=events", "ch:9001", "events"},
		{"clickhouse://ch", "ch:9000", defaultTable},
		{"clickhouse://", "localhost:9000", defaultTable},
	}
	for _, tt := range tests {
		addr, table, err := clickHouseTarget(tt.dsn)
		if err != nil {
			t.Fatalf("%s: %v", tt.dsn, err)
		}
		if addr != tt.addr || table != tt.table {
			t.Fatalf("%s: got %s/%s want %s/%s", tt.dsn, addr, table, tt.addr, tt.table)
		}
	}
}

func TestOpenSearchTarget(t *testing.T) {
	tests := []struct {
		dsn, base, index string
	}{
		{"opensearch://search:9200/audit", "http://search:9200", "audit"},
		{"opensearch://search:9200", "http://search:9200", defaultIndex},
		{"elasticsearch://es:9200/events?tls=true", "https://es:9200", "events"},
	}
	for _, tt := range tests {
		base, index, err := openSearchTarget(tt.dsn)
		if err != nil {
			t.Fatalf("%s: %v", tt.dsn, err)
		}
		if base != tt.base || index != tt.index {
			t.Fatalf("%s: got %s/%s want %s/%s", tt.dsn, base, index, tt.base, tt.index)
		}
	}
}
