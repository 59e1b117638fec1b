package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corium/internal/dependency"
	"corium/internal/event"
	"corium/internal/ids"
	"corium/internal/services"
)

type scriptedService struct {
	services.BaseService
	startResults []services.Result
	stopResults  []services.Result
}

func (s *scriptedService) Start(ctx context.Context) services.Result {
	r := s.startResults[0]
	s.startResults = s.startResults[1:]
	return r
}

func (s *scriptedService) Stop(ctx context.Context) services.Result {
	r := s.stopResults[0]
	s.stopResults = s.stopResults[1:]
	return r
}

func newScriptedService(id uint64, startResults, stopResults []services.Result) *scriptedService {
	return &scriptedService{
		BaseService:  services.NewBaseService(ids.ServiceID(id), nil),
		startResults: startResults,
		stopResults:  stopResults,
	}
}

func TestManagerStartSucceedsFromResolved(t *testing.T) {
	svc := newScriptedService(1, []services.Result{services.Succeeded}, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.state = Resolved
	m.HandleStart(context.Background())

	assert.Equal(t, Active, m.State())
}

func TestManagerStartRetriesAndReschedules(t *testing.T) {
	svc := newScriptedService(1, []services.Result{services.FailedRetry}, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.state = Resolved
	m.HandleStart(context.Background())

	assert.Equal(t, Resolved, m.State())
	require.True(t, d.Step())
}

func TestManagerStartPermanentFailureReturnsToInstalled(t *testing.T) {
	svc := newScriptedService(1, []services.Result{services.FailedPermanent}, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.state = Resolved
	m.HandleStart(context.Background())

	assert.Equal(t, Installed, m.State())
	require.True(t, d.Step())
}

func TestManagerIgnoresStartWhenNotResolved(t *testing.T) {
	svc := newScriptedService(1, []services.Result{services.Succeeded}, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.HandleStart(context.Background())
	assert.Equal(t, Installed, m.State())
}

func TestManagerStopSucceedsFromActive(t *testing.T) {
	svc := newScriptedService(1, nil, []services.Result{services.Succeeded})
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.state = Active
	m.HandleStop(context.Background())

	assert.Equal(t, Installed, m.State())
}

func TestNotifyProviderAvailableTransitionsToResolvedWhenSatisfied(t *testing.T) {
	svc := newScriptedService(1, []services.Result{services.Succeeded}, nil)
	deps := dependency.New()
	hash := dependency.HashInterface("example.IThing")
	require.NoError(t, deps.Declare(dependency.Declaration{Hash: hash, Required: true}))
	require.True(t, deps.Offer(hash, dependency.Provider{Service: 99}))

	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.NotifyProviderAvailable(hash, true)
	assert.Equal(t, Resolved, m.State())
	require.True(t, d.Step())
}

func TestNotifyProviderWithdrawnStopsActiveService(t *testing.T) {
	svc := newScriptedService(1, nil, []services.Result{services.Succeeded})
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)
	m.state = Active

	m.NotifyProviderWithdrawn(true)
	assert.Equal(t, Stopping, m.State())
}

func TestHandleRemoveFromInstalled(t *testing.T) {
	svc := newScriptedService(1, nil, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)

	m.HandleRemove()
	assert.Equal(t, Uninstalled, m.State())
}

func TestHandleRemoveNoopFromActive(t *testing.T) {
	svc := newScriptedService(1, nil, nil)
	deps := dependency.New()
	d := event.New(nil)
	m := NewManager(svc, deps, d, nil)
	m.state = Active

	m.HandleRemove()
	assert.Equal(t, Active, m.State())
}
