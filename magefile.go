//go:build mage

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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "riskparity"
	modulePath = "github.com/penny-vault/pv-riskparity"
	coverFile  = "coverage.out"
)

// allow user to override go executable by running as GOEXE=xxx mage ... on unix-like systems
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Build the riskparity binary with version information
func Build() error {
	fmt.Println("Building...")
	args := append([]string{"build", "-o", binaryName, "-ldflags", ldflags()}, buildFlags()...)
	return sh.RunWith(buildEnv(), goexe, append(args, ".")...)
}

// Install the riskparity binary into GOBIN
func Install() error {
	args := append([]string{"install", "-ldflags", ldflags()}, buildFlags()...)
	return sh.RunWith(buildEnv(), goexe, append(args, ".")...)
}

// Clean removes build and coverage artifacts
func Clean() {
	fmt.Println("Cleaning...")
	for _, fn := range []string{binaryName, coverFile} {
		os.Remove(fn)
	}
}

// Check runs the formatters, vet and the race enabled tests
func Check() {
	mg.SerialDeps(Fmt, Vet, TestRace)
}

// Test runs every ginkgo suite
func Test() error {
	fmt.Println("Go Test")
	return quiet(goexe, "test", "./...")
}

// TestRace runs every ginkgo suite with the race detector
func TestRace() error {
	fmt.Println("Go Test Race")
	return quiet(goexe, "test", "-race", "./...")
}

// Fmt fails if any go file is not gofmt'ed
func Fmt() error {
	fmt.Println("Go Format")

	dirs, err := packageDirs()
	if err != nil {
		return err
	}

	unformatted := make([]string, 0)
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			continue
		}

		// gofmt -l exits 0 even when files need formatting
		out, err := sh.Output("gofmt", append([]string{"-l"}, files...)...)
		if err != nil {
			return fmt.Errorf("running gofmt in %s: %w", dir, err)
		}
		unformatted = append(unformatted, strings.Fields(out)...)
	}

	if len(unformatted) > 0 {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(strings.Join(unformatted, "\n"))
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Vet runs go vet on every package
func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

// Cover writes a coverage profile for all packages and opens the HTML report
func Cover() error {
	fmt.Println("Generate Test Coverage HTML")
	if err := sh.Run(goexe, "test", "-coverprofile="+coverFile, "-covermode=count", "./..."); err != nil {
		return err
	}
	return sh.Run(goexe, "tool", "cover", "-html="+coverFile)
}

// Backtest runs the built-in experiment against data/returns.csv
func Backtest() error {
	mg.Deps(Build)
	return sh.RunV("./"+binaryName, "backtest", "--no-cache")
}

// Helpers

func ldflags() string {
	return fmt.Sprintf("-X %[1]s/common.commitHash=$COMMIT_HASH -X %[1]s/common.buildDate=$BUILD_DATE", modulePath)
}

func buildFlags() []string {
	if runtime.GOOS == "windows" {
		return []string{"-buildmode", "exe"}
	}
	return nil
}

func buildEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

// quiet only prints the command output when it fails or mage runs verbose
func quiet(cmd string, args ...string) error {
	if mg.Verbose() {
		return sh.RunV(cmd, args...)
	}
	out, err := sh.Output(cmd, args...)
	if err != nil {
		fmt.Fprint(os.Stderr, out)
	}
	return err
}

// packageDirs lists the directory of every package in the module
func packageDirs() ([]string, error) {
	out, err := sh.Output(goexe, "list", "-f", "{{.Dir}}", "./...")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}
