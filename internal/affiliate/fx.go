package affiliate

import (
	"go.uber.org/fx"

	"github.com/kadkita/kadkita/internal/affiliate/repository"
	affiliateservice "github.com/kadkita/kadkita/internal/affiliate/service"
)

var Module = fx.Module("affiliate.service",
	fx.Provide(repository.Provide),
	fx.Provide(affiliateservice.NewService),
)
