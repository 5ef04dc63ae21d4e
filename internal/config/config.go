// Package config is the project-wide settings singleton. It follows
// the teacher's internal/config idiom exactly: a package-level *viper.Viper
// (v), Key* string constants naming each setting's dotted path,
// RegisterXDefaults() functions that seed v.SetDefault calls, and typed
// GetX() wrappers (see decision.go's RegisterDecisionDefaults/
// GetDecisionSettings for the shape this generalizes).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// v is the package singleton, created by Initialize. Every GetX/SetX
// wrapper is nil-safe (returns the zero value) so packages that never
// call Initialize — unit tests, mostly — don't panic.
var v *viper.Viper

// Key* name every setting this module reads, dotted the way the
// teacher's own Key* constants are, e.g. "executor.runtime-path".
const (
	KeyRuntimePath        = "executor.runtime-path"
	KeyErsatzRoot         = "executor.ersatz-root"
	KeyDefaultNetwork     = "executor.default-network"
	KeyEventQueueCapacity = "executor.event-queue-capacity"
	KeyUnpackMaxElapsed   = "executor.unpack-max-elapsed"
)

// Initialize creates the package singleton, registers defaults, and
// reads warpforge.yaml from the current directory and WARPFORGE_* env
// vars, mirroring the teacher's own Initialize entrypoint.
func Initialize() error {
	v = viper.New()
	v.SetConfigName("warpforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("WARPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	RegisterDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
	}
	return nil
}

// RegisterDefaults seeds every setting's default value.
func RegisterDefaults() {
	if v == nil {
		return
	}
	v.SetDefault(KeyRuntimePath, "runc")
	v.SetDefault(KeyErsatzRoot, "/tmp/warpforge")
	v.SetDefault(KeyDefaultNetwork, false)
	v.SetDefault(KeyEventQueueCapacity, 32)
	v.SetDefault(KeyUnpackMaxElapsed, 5*time.Second)
}

// GetRuntimePath returns the configured container runtime binary path.
func GetRuntimePath() string { return GetString(KeyRuntimePath) }

// GetErsatzRoot returns the directory under which per-invocation ersatz
// workspaces are created.
func GetErsatzRoot() string { return GetString(KeyErsatzRoot) }

// GetDefaultNetwork returns whether containers get network access when
// a formula's action doesn't say either way.
func GetDefaultNetwork() bool { return GetBool(KeyDefaultNetwork) }

// GetEventQueueCapacity returns the bounded event channel capacity
// between the container executor and its consumer (spec.md §5).
func GetEventQueueCapacity() int { return GetInt(KeyEventQueueCapacity) }

// GetUnpackMaxElapsed returns the bound on total retry time an
// ociref.RetryingUnpacker should give a flaky registry before giving up.
func GetUnpackMaxElapsed() time.Duration { return GetDuration(KeyUnpackMaxElapsed) }

// GetString, GetBool, GetInt, GetDuration are thin, nil-safe wrappers
// over the viper singleton, the same shape as the teacher's own helpers
// in internal/config.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a setting directly, mirroring the teacher's own
// escape hatch for flags that should win over file/env config.
func Set(key string, value any) {
	if v == nil {
		v = viper.New()
	}
	v.Set(key, value)
}
