//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"github.com/sadopc/flowbank/internal/config"
)

func InitApp(flags *config.CliFlags) (*App, func(), error) {

	wire.Build(ProviderSet)

	return nil, nil, nil
}
