package cmdutil

import (
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/config"
	"sync"
)

// Factory builds the API service on first use, so commands that do not talk to the
// server (config init) work without a config file.
type Factory struct {
	once sync.Once
	svc  api.Service
	err  error

	load func() (config.Config, error)
}

func NewFactory() *Factory {
	return &Factory{load: config.Parse}
}

func (f *Factory) Service() (api.Service, error) {
	f.once.Do(func() {
		cfg, err := f.load()
		if err != nil {
			f.err = err
			return
		}
		f.svc = api.NewService(api.NewClient(cfg))
	})
	return f.svc, f.err
}
