package db

import (
	"testing"

	"rag-chatbot/internal/config"
)

func TestVectorValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   Vector
		want string
	}{
		{in: nil, want: "[]"},
		{in: Vector{1}, want: "[1]"},
		{in: Vector{0.5, -0.25, 3}, want: "[0.5,-0.25,3]"},
	}
	for _, tc := range tests {
		got, err := tc.in.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		if got != tc.want {
			t.Errorf("Value(%v) = %v, want %s", []float32(tc.in), got, tc.want)
		}
	}
}

func TestConnectDBDrivers(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "pgdriver", "postgres"} {
		sqldb, err := ConnectDB(&config.DatabaseConfig{Driver: driver, DSN: "postgres://user@localhost:5432/rag?sslmode=disable"})
		if err != nil {
			t.Fatalf("%q: %v", driver, err)
		}
		sqldb.Close()
	}
	if _, err := ConnectDB(&config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}
