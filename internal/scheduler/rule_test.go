package scheduler

import (
	"reflect"
	"testing"
	"time"
)

func TestParseRepeatRule(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		interval time.Duration
		triggers []string
	}{
		{"empty", "", 0, []string{}},
		{"whitespace only", "  ,  , ", 0, []string{}},
		{"minutes", "10 minutes", 10 * time.Minute, []string{}},
		{"singular unit", "1 day", 24 * time.Hour, []string{}},
		{"no space", "30seconds", 30 * time.Second, []string{}},
		{"case insensitive", "2 HOURS", 2 * time.Hour, []string{}},
		{"interval and trigger", "1 day,on_server_start", 24 * time.Hour, []string{"on_server_start"}},
		{"trigger only", "on_new_order", 0, []string{"on_new_order"}},
		{"last interval wins", "5 minutes, 1 hour", time.Hour, []string{}},
		{"duplicate triggers collapse", "a, b ,a", 0, []string{"a", "b"}},
		{"unknown unit is trigger", "3 weeks", 0, []string{"3 weeks"}},
		{"trimmed tokens", " 10 minutes , on_server_start ", 10 * time.Minute, []string{"on_server_start"}},
		{"large interval is clamped", "110000 days", MaxInterval, []string{}},
		{"out of int64 range is clamped", "99999999999999999999 seconds", MaxInterval, []string{}},
		{"largest exact seconds", "9223372036 seconds", 9223372036 * time.Second, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := ParseRepeatRule(tt.rule)
			if rule.Interval != tt.interval {
				t.Errorf("interval = %v, want %v", rule.Interval, tt.interval)
			}
			if got := rule.TriggerList(); !reflect.DeepEqual(got, tt.triggers) {
				t.Errorf("triggers = %v, want %v", got, tt.triggers)
			}
			if rule.HasInterval() != (tt.interval > 0) {
				t.Errorf("HasInterval = %v", rule.HasInterval())
			}
		})
	}
}

func TestParseRepeatRule_Deterministic(t *testing.T) {
	a := ParseRepeatRule("1 hour,x,y")
	b := ParseRepeatRule("1 hour,x,y")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected identical results, got %+v and %+v", a, b)
	}
}

func TestRepeatRule_HasTrigger(t *testing.T) {
	rule := ParseRepeatRule("10 minutes,on_server_start")
	if !rule.HasTrigger("on_server_start") {
		t.Error("expected on_server_start trigger")
	}
	if rule.HasTrigger("on_server") {
		t.Error("HasTrigger must match the whole token")
	}
}
