package env_test

import (
	"fmt"
	"image-set-comparator/internal/env"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		check func(t *testing.T)
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"json",
			true,
			func(t *testing.T) {
				if diff := cmp.Diff("json", env.OrDefault("ENV_TEST_VALUE", "text")); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"",
			false,
			func(t *testing.T) {
				if diff := cmp.Diff("text", env.OrDefault("ENV_TEST_VALUE", "text")); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"4",
			true,
			func(t *testing.T) {
				if diff := cmp.Diff(4, env.OrDefault("ENV_TEST_VALUE", 1)); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"four",
			true,
			func(t *testing.T) {
				if diff := cmp.Diff(1, env.OrDefault("ENV_TEST_VALUE", 1)); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"true",
			true,
			func(t *testing.T) {
				if diff := cmp.Diff(true, env.OrDefault("ENV_TEST_VALUE", false)); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			"3s",
			true,
			func(t *testing.T) {
				if diff := cmp.Diff(3*time.Second, env.OrDefault("ENV_TEST_VALUE", time.Second)); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("ENV_TEST_VALUE", tt.value)
			}
			tt.check(t)
		})
	}
}
