// Package version reports the build version of the relay binaries.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/NicolasHaas/chatrelay/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/chatrelay/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/chatrelay/pkg/version.date=2026-01-01"
//
// Without ldflags the VCS stamp embedded by the go tool is used when present.
package version

import (
	"runtime/debug"
	"sync"
)

var (
	tag    = ""
	commit = ""
	date   = ""
)

// Info is the resolved version of the running binary.
type Info struct {
	Tag    string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Commit string `json:"commit" yaml:"commit"`
	Date   string `json:"date" yaml:"date"`
}

var resolve = sync.OnceValue(func() Info {
	info := Info{Tag: tag, Commit: commit, Date: date}
	if info.Commit == "" || info.Date == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if info.Commit == "" && len(s.Value) >= 7 {
						info.Commit = s.Value[:7]
					}
				case "vcs.time":
					if info.Date == "" {
						info.Date = s.Value
					}
				}
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
})

// Get returns the resolved version info.
func Get() Info { return resolve() }

// String returns the tag, the short commit, or "dev".
func String() string {
	info := Get()
	switch {
	case info.Tag != "":
		return info.Tag
	case info.Commit != "unknown":
		return info.Commit
	default:
		return "dev"
	}
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	info := Get()
	switch {
	case info.Tag != "":
		return info.Tag + " (" + info.Commit + ") built " + info.Date
	case info.Commit != "unknown":
		return info.Commit + " built " + info.Date
	default:
		return "dev"
	}
}
