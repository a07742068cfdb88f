package cachecontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublic(t *testing.T) {
	assert.Equal(t, "public, max-age=30", Public(30*time.Second).String())
	assert.Equal(t, "public, max-age=0", Public(0).String())
	assert.Equal(t, "public, max-age=1", Public(1500*time.Millisecond).String())
}

func TestNoStore(t *testing.T) {
	assert.Equal(t, "no-store", NoStore().String())
}

func TestSet(t *testing.T) {
	cc := Public(time.Minute)
	cc.Set("Max-Age", "10")
	cc.Set("s-maxage", "600")
	assert.Equal(t, "public, max-age=10, s-maxage=600", cc.String())
}
