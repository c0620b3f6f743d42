package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	LogError(l, "store", "Create", map[string]string{"id": "a1"}, errors.New("boom"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "boom", rec["msg"])
	assert.Equal(t, "store", rec["component"])
}

func TestNew_UnknownLevel(t *testing.T) {
	l := New(&bytes.Buffer{}, "chatty", "text")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
