package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	color.NoColor = true

	assert.True(t, report([]Check{{Name: "PostgreSQL"}, {Name: "Redis"}}))
	assert.False(t, report([]Check{{Name: "PostgreSQL"}, {Name: "Redis", Error: errors.New("connection refused")}}))
}

func TestCheckHTTPHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	assert.NoError(t, checkHTTPHealth(context.Background(), healthy.URL, logger))
	assert.ErrorContains(t, checkHTTPHealth(context.Background(), broken.URL, logger), "503")
}

func TestCheckKafka_NoBrokers(t *testing.T) {
	assert.Error(t, checkKafka(context.Background(), nil))
}
