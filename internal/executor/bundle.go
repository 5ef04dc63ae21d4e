package executor

import (
	"encoding/json"
	"os"
	"path/filepath"

	rspec "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/warpsys/warpforge/internal/werr"
)

// defaultPath is the PATH the container process sees when no $PATH input
// overrides it; runc supplies no environment of its own.
const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// StageBundleConfig writes the OCI runtime config.json into the bundle
// at params.RootPath, injecting the lowered command, environment, and
// mount table the way spec.md §6.2 leaves implementation-defined. The
// rootfs itself must already be populated (by the unpack collaborator);
// rootfsReadonly carries the formula image's readonly flag through to
// the runtime.
func StageBundleConfig(params ContainerParams, rootfsReadonly bool) error {
	env := make([]string, 0, len(params.Environment)+1)
	env = append(env, defaultPath)
	env = append(env, envSlice(params.Environment)...)

	spec := rspec.Spec{
		Version: rspec.Version,
		Process: &rspec.Process{
			User: rspec.User{UID: 0, GID: 0},
			Args: params.Command,
			Env:  env,
			Cwd:  "/",
		},
		Root:     &rspec.Root{Path: "rootfs", Readonly: rootfsReadonly},
		Hostname: params.Ident,
		Mounts:   baseMounts(),
		Linux: &rspec.Linux{
			Namespaces: namespaces(params.Network),
		},
	}

	for _, m := range params.Mounts {
		options := []string{"rbind"}
		if m.Readonly {
			options = append(options, "ro")
		}
		spec.Mounts = append(spec.Mounts, rspec.Mount{
			Destination: m.SandboxTarget,
			Type:        "none",
			Source:      m.HostSource,
			Options:     options,
		})
	}

	data, err := json.MarshalIndent(&spec, "", "\t")
	if err != nil {
		return werr.RuntimeError(err, "encode bundle config for %s", params.Ident)
	}
	configPath := filepath.Join(params.RootPath, "config.json")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		if os.IsPermission(err) {
			return werr.SetupError(err, "write bundle config %s", configPath)
		}
		return werr.RuntimeError(err, "write bundle config %s", configPath)
	}
	return nil
}

// baseMounts is the minimal mount set every sandbox gets before the
// formula's own mounts are appended. Formula mounts come later in the
// table, so a formula mount at the same destination is mounted over the
// base one.
func baseMounts() []rspec.Mount {
	return []rspec.Mount{
		{Destination: "/proc", Type: "proc", Source: "proc"},
		{Destination: "/dev", Type: "tmpfs", Source: "tmpfs", Options: []string{"nosuid", "strictatime", "mode=755", "size=65536k"}},
		{Destination: "/dev/pts", Type: "devpts", Source: "devpts", Options: []string{"nosuid", "noexec", "newinstance", "ptmxmode=0666", "mode=0620"}},
		{Destination: "/dev/shm", Type: "tmpfs", Source: "shm", Options: []string{"nosuid", "noexec", "nodev", "mode=1777", "size=65536k"}},
	}
}

// namespaces isolates mount/pid/ipc/uts unconditionally; the network
// namespace entry is present only when the action did not request
// network access, since a fresh empty netns is what "no network" means
// to an OCI runtime and omitting the entry shares the host's.
func namespaces(network bool) []rspec.LinuxNamespace {
	ns := []rspec.LinuxNamespace{
		{Type: rspec.MountNamespace},
		{Type: rspec.PIDNamespace},
		{Type: rspec.IPCNamespace},
		{Type: rspec.UTSNamespace},
	}
	if !network {
		ns = append(ns, rspec.LinuxNamespace{Type: rspec.NetworkNamespace})
	}
	return ns
}
