package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("AS_TEST_STR", "value")
	assert.Equal(t, "value", getEnv("AS_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("AS_TEST_UNSET", "fallback"))
}

func TestGetEnvBool(t *testing.T) {
	for v, want := range map[string]bool{"true": true, "1": true, "YES": true, "false": false, "0": false, "no": false} {
		t.Setenv("AS_TEST_BOOL", v)
		assert.Equal(t, want, getEnvBool("AS_TEST_BOOL", !want), "value %q", v)
	}
	t.Setenv("AS_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("AS_TEST_BOOL", true))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("AS_TEST_INT", "4096")
	assert.Equal(t, 4096, getEnvInt("AS_TEST_INT", 8192))
	t.Setenv("AS_TEST_INT", "lots")
	assert.Equal(t, 8192, getEnvInt("AS_TEST_INT", 8192))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("AS_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("AS_TEST_DUR", time.Minute))
	t.Setenv("AS_TEST_DUR", "-5s")
	assert.Equal(t, time.Minute, getEnvDuration("AS_TEST_DUR", time.Minute))
	t.Setenv("AS_TEST_DUR", "")
	assert.Equal(t, time.Minute, getEnvDuration("AS_TEST_DUR", time.Minute))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
