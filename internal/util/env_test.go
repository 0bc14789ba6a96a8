package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{" true ", false, true},
	}
	for _, c := range cases {
		t.Setenv("TEST_BOOL", c.value)
		if got := ParseBoolEnv("TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	cases := []struct {
		value string
		def   int
		want  int
	}{
		{"42", 0, 42},
		{"-7", 0, -7},
		{" 10 ", 0, 10},
		{"", 5, 5},
		{"abc", 5, 5},
	}
	for _, c := range cases {
		t.Setenv("TEST_INT", c.value)
		if got := ParseIntEnv("TEST_INT", c.def); got != c.want {
			t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", c.value, c.def, got, c.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	cases := []struct {
		value string
		def   time.Duration
		want  time.Duration
	}{
		{"90s", time.Minute, 90 * time.Second},
		{"1h30m", 0, 90 * time.Minute},
		{"", time.Hour, time.Hour},
		{"soon", time.Hour, time.Hour},
	}
	for _, c := range cases {
		t.Setenv("TEST_DUR", c.value)
		if got := ParseDurationEnv("TEST_DUR", c.def); got != c.want {
			t.Errorf("ParseDurationEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseListEnv(t *testing.T) {
	cases := []struct {
		value string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" 100 , 200 ", []string{"100", "200"}},
		{"a,,b", []string{"a", "b"}},
		{"", nil},
		{"  ", nil},
	}
	for _, c := range cases {
		t.Setenv("TEST_LIST", c.value)
		got := ParseListEnv("TEST_LIST")
		if len(got) != len(c.want) {
			t.Errorf("ParseListEnv(%q) = %v, want %v", c.value, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("ParseListEnv(%q)[%d] = %q, want %q", c.value, i, got[i], c.want[i])
			}
		}
	}
}
