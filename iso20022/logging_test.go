package iso20022

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNoopLogger_NeverPanics(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Debugf("x %d", 1)
	l.Infof("x")
	l.Warnf("x")
	l.Errorf("x")
}

func TestNewLogrusLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := NewLogrusLogger("not-a-level", "text")
	require := assert.New(t)
	require.NotNil(l)
	require.Equal(logrus.InfoLevel, l.(*logrusLogger).entry.Logger.GetLevel())
	// Exercise every level; the underlying logrus logger must not panic
	// even when called below its configured threshold.
	l.Debugf("debug")
	l.Infof("info")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestWithCorrelationID_TagsLogrusEntries(t *testing.T) {
	base := NewLogrusLogger("debug", "json")
	tagged := WithCorrelationID(base, "corr-123")
	assert.NotNil(t, tagged)
	assert.Equal(t, "corr-123", tagged.(*logrusLogger).entry.Data["correlation_id"])
	tagged.Infof("hello")
}
