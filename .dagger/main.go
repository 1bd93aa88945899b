// Chatrelay CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/chatrelay/internal/dagger"
)

// Chatrelay is the main module for the chatrelay CI/CD pipeline
type Chatrelay struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Chatrelay CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".chatrelay"]
	source *dagger.Directory,
) *Chatrelay {
	return &Chatrelay{
		Source: source,
	}
}

// goContainer returns a Go container with the module cache mounted and the
// project source at /src. chatrelay is pure Go, so CGO stays off.
func (c *Chatrelay) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the chatrelay unit tests via "go test"
//
// +check
func (c *Chatrelay) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}
