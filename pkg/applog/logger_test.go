package applog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesValidLevel(t *testing.T) {
	logger := New("debug", "text")
	assert.Equal(t, logrus.DebugLevel, logger.Level)
	_, ok := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestNewFallsBackToInfoOnInvalidLevel(t *testing.T) {
	logger := New("not-a-level", "text")
	assert.Equal(t, logrus.InfoLevel, logger.Level)
}

func TestNewUsesJSONFormatterWhenRequested(t *testing.T) {
	logger := New("info", "json")
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNoopDiscardsOutput(t *testing.T) {
	logger := Noop()
	n, err := logger.Out.Write([]byte("anything"))
	assert.NoError(t, err)
	assert.Equal(t, len("anything"), n)
}
