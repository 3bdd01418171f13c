package factory

import (
	"context"
	"testing"
)

func TestFactoryDSNSelection(t *testing.T) {
	if _, err := NewFromDSN("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	// sql.Open does not connect, so a postgres DSN yields a store without a server
	pg, err := NewFromDSN("postgres://user@localhost/db")
	if err != nil || pg == nil {
		t.Fatalf("postgres dsn: err=%v obj=%T", err, pg)
	}
	_ = pg.Close()

	s1, err := NewFromDSN("sqlite://:memory:")
	if err != nil || s1 == nil {
		t.Fatalf("sqlite scheme: err=%v obj=%T", err, s1)
	}
	if err := s1.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("sqlite schema: %v", err)
	}
	_ = s1.Close()

	s2, err := NewFromDSN(":memory:")
	if err != nil || s2 == nil {
		t.Fatalf("bare sqlite: err=%v obj=%T", err, s2)
	}
	_ = s2.Close()
}
