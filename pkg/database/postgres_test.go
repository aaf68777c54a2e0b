package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/study-planner/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "planner", Password: "secret", Name: "study_planner", SSLMode: "require"})
	assert.Equal(t, "host=db port=5433 user=planner password=secret dbname=study_planner sslmode=require", dsn)
}
