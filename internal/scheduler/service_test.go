package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/pipeline"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, req pipeline.Request) (*models.RunReport, error) {
	args := m.Called(ctx, req)
	report, _ := args.Get(0).(*models.RunReport)
	return report, args.Error(1)
}

func TestStart_InvalidSchedule(t *testing.T) {
	svc := NewService("every tuesday", time.Minute, nil, &MockRunner{})
	assert.Error(t, svc.Start())
}

func TestRunOnce_PassesSourcesAndDeadline(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), pipeline.Request{Sources: []string{"news", "music"}}).Return(&models.RunReport{}, nil).Once()

	NewService("0 */30 * * * *", time.Minute, []string{"news", "music"}, runner).runOnce()

	runner.AssertExpectations(t)
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("store down")).Once()

	assert.NotPanics(t, func() {
		NewService("0 */30 * * * *", 0, nil, runner).runOnce()
	})
	runner.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	svc := NewService("0 0 */6 * * *", time.Minute, nil, &MockRunner{})
	require.NoError(t, svc.Start())
	assert.Len(t, svc.cron.Entries(), 1)
	svc.Stop()
}
