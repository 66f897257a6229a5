package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakeSource hands out queued tasks in order, then reports an empty queue.
type fakeSource struct {
	mu    sync.Mutex
	tasks []domain.ProcessingTask
	err   error
	polls int
}

func (f *fakeSource) Dequeue(ctx context.Context, wait time.Duration) (*domain.ProcessingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.tasks) == 0 {
		return nil, nil
	}
	t := f.tasks[0]
	f.tasks = f.tasks[1:]
	return &t, nil
}

// recordingRunner blocks each Run on release and records the resource ids.
type recordingRunner struct {
	mu      sync.Mutex
	ran     []string
	release chan struct{}
	wg      sync.WaitGroup
}

func (r *recordingRunner) Run(ctx context.Context, task domain.ProcessingTask) (service.Outcome, error) {
	defer r.wg.Done()
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.ran = append(r.ran, task.ResourceID)
	r.mu.Unlock()
	if task.ResourceID == "bad" {
		return service.Outcome{ResourceID: task.ResourceID, Status: domain.ResourceStatusFailed}, errors.New("boom")
	}
	return service.Outcome{ResourceID: task.ResourceID, Status: domain.ResourceStatusComplete}, nil
}

func task(id string) domain.ProcessingTask {
	return domain.ProcessingTask{
		ResourceID: id,
		Locator:    "/data/" + id + ".txt",
		Type:       domain.ResourceTypeTXT,
		AttemptID:  "attempt-" + id,
	}
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_FirstPollIsImmediate(t *testing.T) {
	polled := make(chan struct{}, 1)
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(mock.Arguments) {
		select {
		case polled <- struct{}{}:
		default:
		}
	}).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour, nil)
	go worker.Start(context.Background())
	defer worker.Stop()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate poll")
	}
}

func TestWorker_NextDelayBacksOff(t *testing.T) {
	w := NewWorker(new(MockJobProcessor), 100*time.Millisecond, nil)

	assert.Equal(t, 100*time.Millisecond, w.nextDelay(0))
	assert.Equal(t, 200*time.Millisecond, w.nextDelay(1))
	assert.Equal(t, 400*time.Millisecond, w.nextDelay(2))
	assert.Equal(t, 800*time.Millisecond, w.nextDelay(3))
	assert.Equal(t, 800*time.Millisecond, w.nextDelay(10))
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("transient"))

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestPipelineWorker_RunsAllQueuedTasks(t *testing.T) {
	source := &fakeSource{tasks: []domain.ProcessingTask{task("a"), task("bad"), task("c")}}
	runner := &recordingRunner{}
	runner.wg.Add(3)

	w, err := NewPipelineWorker(source, runner, 4, nil)
	require.NoError(t, err)

	require.NoError(t, w.ProcessJobs(context.Background()))
	runner.wg.Wait()
	require.NoError(t, w.Shutdown(time.Second))

	assert.ElementsMatch(t, []string{"a", "bad", "c"}, runner.ran)
}

func TestPipelineWorker_StopsAtPoolCapacity(t *testing.T) {
	source := &fakeSource{tasks: []domain.ProcessingTask{task("a"), task("b"), task("c")}}
	runner := &recordingRunner{release: make(chan struct{})}
	runner.wg.Add(2)

	w, err := NewPipelineWorker(source, runner, 2, nil)
	require.NoError(t, err)

	require.NoError(t, w.ProcessJobs(context.Background()))

	source.mu.Lock()
	remaining := len(source.tasks)
	source.mu.Unlock()
	assert.Equal(t, 1, remaining)

	close(runner.release)
	runner.wg.Wait()

	runner.wg.Add(1)
	require.Eventually(t, func() bool { return w.Running() == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, w.ProcessJobs(context.Background()))
	runner.wg.Wait()
	require.NoError(t, w.Shutdown(time.Second))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, runner.ran)
}

func TestPipelineWorker_DequeueError(t *testing.T) {
	source := &fakeSource{err: errors.New("connection reset")}
	w, err := NewPipelineWorker(source, &recordingRunner{}, 1, nil)
	require.NoError(t, err)
	defer w.Shutdown(time.Second)

	err = w.ProcessJobs(context.Background())
	assert.ErrorContains(t, err, "failed to dequeue task")
}

func TestPipelineWorker_CancelledContext(t *testing.T) {
	source := &fakeSource{tasks: []domain.ProcessingTask{task("a")}}
	w, err := NewPipelineWorker(source, &recordingRunner{}, 1, nil)
	require.NoError(t, err)
	defer w.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, w.ProcessJobs(ctx))
	assert.Zero(t, source.polls)
}
