// Package scrape recognizes which toolchain produced a build trace and drives
// the task model reconstruction for it.
package scrape

import (
	"github.com/hpungsan/stump/internal/binlog"
)

// Flavor is the detected category of AOT toolchain in a trace.
type Flavor int

const (
	FlavorUnknown Flavor = iota
	FlavorAotCompilerTask
	FlavorAndroid
	FlavorAppleLocal
	FlavorAppleRemote
)

func (f Flavor) String() string {
	switch f {
	case FlavorAotCompilerTask:
		return "AotCompilerTask"
	case FlavorAndroid:
		return "Android"
	case FlavorAppleLocal:
		return "AppleLocal"
	case FlavorAppleRemote:
		return "AppleRemote"
	default:
		return "Unknown"
	}
}

// MarshalText renders flavors by name in JSON.
func (f Flavor) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Task names that identify each flavor.
const (
	TaskMonoAOTCompiler = "MonoAOTCompiler"
	TaskAndroidAot      = "Aot"
	TaskAppleAOTCompile = "AOTCompile"

	propertySessionID = "SessionId"
)

// DetectFlavor inspects the trace for a marker task. A trace containing a
// MonoAOTCompiler task is always AotCompilerTask, even if other markers are present.
func DetectFlavor(root *binlog.Node) Flavor {
	if root == nil {
		return FlavorUnknown
	}
	if root.FindFirstDescendant(binlog.IsTask(TaskMonoAOTCompiler)) != nil {
		return FlavorAotCompilerTask
	}
	if root.FindFirstDescendant(binlog.IsTask(TaskAndroidAot)) != nil {
		return FlavorAndroid
	}
	if task := root.FindFirstDescendant(binlog.IsTask(TaskAppleAOTCompile)); task != nil {
		if remoteSession(task) {
			return FlavorAppleRemote
		}
		return FlavorAppleLocal
	}
	return FlavorUnknown
}

// remoteSession reports whether an Apple AOT task ran through a build host.
func remoteSession(task *binlog.Node) bool {
	params := task.FindChild(binlog.KindFolder, binlog.FolderParameters)
	if params == nil {
		return false
	}
	p := params.FindChild(binlog.KindProperty, propertySessionID)
	return p != nil && p.Value != ""
}
