//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
)

// InitializeContainer builds the container from the process environment.
func InitializeContainer() (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
