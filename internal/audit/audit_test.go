package audit

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:4431"
	assert.Equal(t, "10.0.0.5", ClientIP(r))

	r.Header.Set("X-Real-IP", " 192.168.1.2 ")
	assert.Equal(t, "192.168.1.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	assert.Equal(t, "", ClientIP(nil))
}

func TestDigestAndMetadata(t *testing.T) {
	assert.Equal(t, "", DigestJSON(nil))
	meta := Metadata(map[string]any{"matters": 3})
	assert.JSONEq(t, `{"matters":3}`, string(meta))
	assert.Len(t, DigestJSON(meta), 64)
	assert.Nil(t, Metadata(nil))
	assert.True(t, strings.HasPrefix(NewID(), "audit-"))
}

func TestLogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	err := NewLogLogger(logger).Log(context.Background(), Entry{FirmID: "firm-a", Action: "report.publish"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"report.publish"`)
	assert.Contains(t, buf.String(), `"firm_id":"firm-a"`)
}
