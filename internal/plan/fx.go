package plan

import (
	"go.uber.org/fx"

	planservice "github.com/kadkita/kadkita/internal/plan/service"
)

var Module = fx.Module("plan.catalog",
	fx.Provide(planservice.NewCatalog),
)
