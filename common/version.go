// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

const programName = "riskparity"

// set with -ldflags by the mage build
var (
	commitHash string
	buildDate  string
)

// Version is a SemVer 2.0.0 build version; Suffix is empty for releases
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// CurrentVersion of the riskparity binary
var CurrentVersion = Version{
	Major:  0,
	Minor:  1,
	Patch:  0,
	Suffix: "dev",
}

func (v Version) String() string {
	res := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix == "" {
		return res
	}

	res += "-" + v.Suffix
	if commitHash != "" {
		res += "+" + strings.ToLower(commitHash)
	}
	return res
}

// BuildInfo describes the running binary
type BuildInfo struct {
	Program      string   `json:"program"`
	Version      string   `json:"version"`
	Platform     string   `json:"platform"`
	GoVersion    string   `json:"goVersion"`
	BuildDate    string   `json:"buildDate"`
	Commit       string   `json:"commit"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// CurrentBuild collects the build information of the running binary; module
// dependencies are only listed when withDeps is set
func CurrentBuild(withDeps bool) BuildInfo {
	info := BuildInfo{
		Program:   programName,
		Version:   "v" + CurrentVersion.String(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
		Commit:    commitHash,
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	if withDeps {
		info.Dependencies = Dependencies()
	}
	return info
}

// Dependencies lists the modules compiled into the binary as path="version", sorted
func Dependencies() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		version := dep.Version
		if dep.Replace != nil {
			version = dep.Replace.Version
		}
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, version))
	}
	sort.Strings(deps)

	return deps
}

func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s\n\n", b.Program, b.Version, b.Platform)
	fmt.Fprintf(&sb, "Build Date: %s\nCommit: %s\nBuilt with: %s", b.BuildDate, b.Commit, b.GoVersion)

	if len(b.Dependencies) > 0 {
		sb.WriteString("\n\nDependencies:\n\n")
		sb.WriteString(strings.Join(b.Dependencies, "\n"))
	}
	return sb.String()
}
