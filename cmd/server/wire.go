//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/livekit/livekit-server-sdk/pkg/config"
)

func InitializeServer(conf *config.Config) (*SDKServer, error) {
	wire.Build(ServerSet)
	return &SDKServer{}, nil
}
