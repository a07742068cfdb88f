// Package cachecontrol builds Cache-Control header values.
//
//	Cache-Control   = #cache-directive
//	cache-directive = token [ "=" ( token / quoted-string ) ]
package cachecontrol

import (
	"strconv"
	"strings"
	"time"
)

type CacheControl struct {
	directives map[string]string
	order      []string
}

// Public returns the directives for a response any cache may keep for maxAge.
func Public(maxAge time.Duration) CacheControl {
	cc := CacheControl{}
	cc.Set("public", "")
	cc.Set("max-age", strconv.FormatInt(int64(maxAge/time.Second), 10))
	return cc
}

// NoStore returns the directive forbidding any cache to keep the message.
func NoStore() CacheControl {
	cc := CacheControl{}
	cc.Set("no-store", "")
	return cc
}

// Set adds or replaces a directive. Names are compared case-insensitively.
func (c *CacheControl) Set(directive, arg string) {
	if c.directives == nil {
		c.directives = make(map[string]string)
	}
	name := strings.ToLower(strings.TrimSpace(directive))
	if _, ok := c.directives[name]; !ok {
		c.order = append(c.order, name)
	}
	c.directives[name] = arg
}

// String renders the directives in the order they were first set.
func (c CacheControl) String() string {
	parts := make([]string, 0, len(c.order))
	for _, name := range c.order {
		if arg := c.directives[name]; arg != "" {
			parts = append(parts, name+"="+arg)
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}
