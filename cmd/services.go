package cmd

import (
	"context"
	"time"

	"corium/internal/container"
	"corium/internal/dependency"
	"corium/internal/ids"
	"corium/internal/services"
)

// clockInterface is the interface hash the clock service advertises and the
// greeter service declares as a required dependency — a stand-in for the
// kind of cross-service contract real collaborators would define.
var clockInterface = dependency.HashInterface("demo.IClock")

type clockService struct {
	services.BaseService
}

func (s *clockService) Start(context.Context) services.Result { return services.Succeeded }
func (s *clockService) Stop(context.Context) services.Result  { return services.Succeeded }

func newClockFactory() container.Factory {
	return func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *container.Container) (services.Service, error) {
		return &clockService{BaseService: services.NewBaseService(id, props)}, nil
	}
}

type greeterService struct {
	services.BaseService
	startDelay time.Duration
}

func (g *greeterService) Start(ctx context.Context) services.Result {
	select {
	case <-time.After(g.startDelay):
	case <-ctx.Done():
		return services.FailedRetry
	}
	return services.Succeeded
}

func (g *greeterService) Stop(context.Context) services.Result { return services.Succeeded }

func newGreeterFactory() container.Factory {
	return func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *container.Container) (services.Service, error) {
		if err := deps.Declare(dependency.Declaration{Hash: clockInterface, Required: true}); err != nil {
			return nil, err
		}
		return &greeterService{BaseService: services.NewBaseService(id, props), startDelay: 10 * time.Millisecond}, nil
	}
}

func installDemoServices(c *container.Container) ([]ids.ServiceID, error) {
	greeterID, err := c.Install(newGreeterFactory(), services.Properties{}, nil)
	if err != nil {
		return nil, err
	}

	clockID, err := c.Install(newClockFactory(), services.Properties{}, []dependency.InterfaceHash{clockInterface})
	if err != nil {
		return nil, err
	}

	return []ids.ServiceID{clockID, greeterID}, nil
}
