package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheService_SetGetDelete(t *testing.T) {
	c := NewCacheService(time.Minute, time.Minute)

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheService_Expiry(t *testing.T) {
	c := NewCacheService(time.Minute, time.Minute)

	c.Set("short", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestCacheService_DeletePrefix(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	cs.Set("upstream:GET:job.json?$skip=0:", "a", time.Minute)
	cs.Set("upstream:GET:job.json?$skip=2:", "b", time.Minute)
	cs.Set("upstream:GET:jobactivity.json:", "c", time.Minute)

	cs.DeletePrefix("upstream:GET:job.json")

	_, ok := cs.Get("upstream:GET:job.json?$skip=0:")
	assert.False(t, ok)
	_, ok = cs.Get("upstream:GET:job.json?$skip=2:")
	assert.False(t, ok)
	_, ok = cs.Get("upstream:GET:jobactivity.json:")
	assert.True(t, ok)
}
