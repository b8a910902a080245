package books

import (
	"go.uber.org/fx"

	"github.com/rustyeddy/tradebook/internal/app"
)

func Module() fx.Option {
	return fx.Module("books",
		fx.Provide(app.NewBooks),
	)
}
