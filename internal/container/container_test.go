package container

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corium/internal/dependency"
	"corium/internal/ids"
	"corium/internal/lifecycle"
	"corium/internal/services"
)

type fixedService struct {
	services.BaseService
	startResult services.Result
	stopResult  services.Result
}

func (s *fixedService) Start(ctx context.Context) services.Result { return s.startResult }
func (s *fixedService) Stop(ctx context.Context) services.Result   { return s.stopResult }

func producerFactory(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *Container) (services.Service, error) {
	return &fixedService{
		BaseService: services.NewBaseService(id, props),
		startResult: services.Succeeded,
		stopResult:  services.Succeeded,
	}, nil
}

func consumerFactoryRequiring(hash dependency.InterfaceHash) Factory {
	return func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *Container) (services.Service, error) {
		if err := deps.Declare(dependency.Declaration{Hash: hash, Required: true}); err != nil {
			return nil, err
		}
		return &fixedService{
			BaseService: services.NewBaseService(id, props),
			startResult: services.Succeeded,
			stopResult:  services.Succeeded,
		}, nil
	}
}

type awareConsumer struct {
	services.BaseService
	added   []dependency.InterfaceHash
	removed []dependency.InterfaceHash
}

func (s *awareConsumer) Start(ctx context.Context) services.Result { return services.Succeeded }
func (s *awareConsumer) Stop(ctx context.Context) services.Result  { return services.Succeeded }

func (s *awareConsumer) AddDependency(hash dependency.InterfaceHash, provider dependency.Provider) {
	s.added = append(s.added, hash)
}

func (s *awareConsumer) RemoveDependency(hash dependency.InterfaceHash, provider ids.ServiceID) {
	s.removed = append(s.removed, hash)
}

func drain(c *Container) {
	for c.Dispatcher().Step() {
	}
}

func TestInstallWithNoDependenciesStartsImmediately(t *testing.T) {
	c := New(nil)
	id, err := c.Install(producerFactory, services.Properties{}, nil)
	require.NoError(t, err)

	drain(c)

	assert.Equal(t, lifecycle.Active, c.State(id))
}

func TestConsumerStartsAfterProviderBecomesActive(t *testing.T) {
	c := New(nil)
	hash := dependency.HashInterface("example.IThing")

	consumerID, err := c.Install(consumerFactoryRequiring(hash), services.Properties{}, nil)
	require.NoError(t, err)
	drain(c)
	assert.Equal(t, lifecycle.Installed, c.State(consumerID))

	producerID, err := c.Install(producerFactory, services.Properties{}, []dependency.InterfaceHash{hash})
	require.NoError(t, err)
	drain(c)

	assert.Equal(t, lifecycle.Active, c.State(producerID))
	assert.Equal(t, lifecycle.Active, c.State(consumerID))
}

func TestInstallSynchronouslyOffersAlreadyActiveProvider(t *testing.T) {
	c := New(nil)
	hash := dependency.HashInterface("example.IThing")

	producerID, err := c.Install(producerFactory, services.Properties{}, []dependency.InterfaceHash{hash})
	require.NoError(t, err)
	drain(c)
	require.Equal(t, lifecycle.Active, c.State(producerID))

	consumerID, err := c.Install(consumerFactoryRequiring(hash), services.Properties{}, nil)
	require.NoError(t, err)
	drain(c)

	assert.Equal(t, lifecycle.Active, c.State(consumerID))
}

func TestShutdownStopsActiveServices(t *testing.T) {
	c := New(nil)
	id, err := c.Install(producerFactory, services.Properties{}, nil)
	require.NoError(t, err)
	drain(c)
	require.Equal(t, lifecycle.Active, c.State(id))

	done := make(chan error, 1)
	go func() {
		done <- c.Shutdown(context.Background())
	}()

	for c.State(id) == lifecycle.Active {
		c.Dispatcher().Step()
	}
	drain(c)

	require.NoError(t, <-done)
	assert.Equal(t, lifecycle.Installed, c.State(id))
}

func TestInstallNamedDedupesConcurrentFactoryCalls(t *testing.T) {
	c := New(nil)
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	factory := func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *Container) (services.Service, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
		}
		<-release
		return &fixedService{BaseService: services.NewBaseService(id, props), startResult: services.Succeeded, stopResult: services.Succeeded}, nil
	}

	type installResult struct {
		id  ids.ServiceID
		err error
	}
	results := make(chan installResult, 2)
	install := func() {
		id, err := c.InstallNamed("shared", factory, services.Properties{}, nil)
		results <- installResult{id: id, err: err}
	}

	// The first call blocks inside the factory; the second arrives while it
	// is still in flight and must join it rather than run the factory again.
	go install()
	<-entered
	go install()
	time.Sleep(50 * time.Millisecond)
	close(release)

	r1 := <-results
	require.NoError(t, r1.err)
	r2 := <-results
	require.NoError(t, r2.err)

	assert.Equal(t, r1.id, r2.id)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDependencyAwareConsumerIsNotifiedOfInjectAndWithdraw(t *testing.T) {
	c := New(nil)
	hash := dependency.HashInterface("example.IThing")

	var consumer *awareConsumer
	factory := func(id ids.ServiceID, deps *dependency.Registry, props services.Properties, c *Container) (services.Service, error) {
		if err := deps.Declare(dependency.Declaration{Hash: hash, Required: true}); err != nil {
			return nil, err
		}
		consumer = &awareConsumer{BaseService: services.NewBaseService(id, props)}
		return consumer, nil
	}

	_, err := c.Install(factory, services.Properties{}, nil)
	require.NoError(t, err)
	drain(c)

	producerID, err := c.Install(producerFactory, services.Properties{}, []dependency.InterfaceHash{hash})
	require.NoError(t, err)
	drain(c)

	require.NotNil(t, consumer)
	assert.Equal(t, []dependency.InterfaceHash{hash}, consumer.added)

	c.RequestStop(producerID)
	drain(c)

	assert.Equal(t, []dependency.InterfaceHash{hash}, consumer.removed)
}

func TestRemoveRequiresInstalledState(t *testing.T) {
	c := New(nil)
	id, err := c.Install(producerFactory, services.Properties{}, nil)
	require.NoError(t, err)
	drain(c)
	require.Equal(t, lifecycle.Active, c.State(id))

	c.RequestRemove(id)
	drain(c)
	assert.Equal(t, lifecycle.Active, c.State(id), "removal is a no-op while still Active")
}
