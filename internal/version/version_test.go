package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if !regexp.MustCompile(`^\d+\.\d+\.\d+`).MatchString(v) {
		t.Errorf("Get() = %q, want semantic version", v)
	}
	if strings.TrimSpace(v) != v {
		t.Errorf("Get() = %q has surrounding whitespace", v)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "taskbatch "+Get()) {
		t.Errorf("String() = %q", s)
	}
}
