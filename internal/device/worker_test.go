package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const eventually = 2 * time.Second

func newTestWorker(t *testing.T, d *fakeDriver, settle time.Duration) *Worker[int] {
	t.Helper()
	w := NewWorker[int](Spec{Name: "lamp"}, d, WorkerConfig{
		IdlePoll:    10 * time.Millisecond,
		SettleDelay: settle,
		Logger:      zap.NewNop().Sugar(),
	})
	t.Cleanup(func() {
		w.Shutdown()
		w.Wait()
	})
	return w
}

func TestWorkerReadinessOrder(t *testing.T) {
	d := newFakeDriver(7)
	d.connectGate = make(chan struct{})
	d.statusGate = make(chan struct{})
	w := newTestWorker(t, d, -1)
	w.Start()

	r := w.Readiness()
	assert.Never(t, r.IsConnected, 30*time.Millisecond, 5*time.Millisecond)
	assert.False(t, r.IsStatusKnown())

	close(d.connectGate)
	require.Eventually(t, r.IsConnected, eventually, time.Millisecond)
	assert.False(t, r.IsStatusKnown())
	require.Eventually(t, func() bool { return w.Status() == AwaitingInitialStatus }, eventually, time.Millisecond)

	close(d.statusGate)
	require.Eventually(t, r.IsStatusKnown, eventually, time.Millisecond)
	assert.Equal(t, 7, w.State())
	require.Eventually(t, func() bool { return w.Status() == Serving }, eventually, time.Millisecond)
}

func TestWorkerCoalescesWhileDeviceBusy(t *testing.T) {
	d := newFakeDriver(0)
	d.applyGate = make(chan struct{})
	w := newTestWorker(t, d, -1)
	w.Start()
	<-w.Readiness().StatusKnown()

	w.RequestChange(1)
	assert.Equal(t, 1, <-d.applyStarted)

	w.RequestChange(2)
	w.RequestChange(3)
	w.RequestChange(4)
	assert.Equal(t, 4, w.State())

	d.applyGate <- struct{}{}
	assert.Equal(t, 4, <-d.applyStarted)
	d.applyGate <- struct{}{}

	require.Eventually(t, func() bool { return len(d.Applied()) == 2 }, eventually, time.Millisecond)
	assert.Never(t, func() bool { return len(d.applyStarted) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []int{1, 4}, d.Applied())
}

func TestWorkerSettleDelaySpacesWrites(t *testing.T) {
	d := newFakeDriver(0)
	w := newTestWorker(t, d, 60*time.Millisecond)
	w.Start()
	<-w.Readiness().StatusKnown()

	w.RequestChange(1)
	<-d.applyStarted
	first := time.Now()

	w.RequestChange(2)
	<-d.applyStarted
	assert.GreaterOrEqual(t, time.Since(first), 40*time.Millisecond)
}

func TestWorkerLastWriterWinsDuringSettle(t *testing.T) {
	d := newFakeDriver(0)
	w := newTestWorker(t, d, 80*time.Millisecond)
	w.Start()
	<-w.Readiness().StatusKnown()

	w.RequestChange(1)
	<-d.applyStarted
	for i := 2; i <= 10; i++ {
		w.RequestChange(i)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		applied := d.Applied()
		return len(applied) > 0 && applied[len(applied)-1] == 10
	}, eventually, 5*time.Millisecond)
	assert.Less(t, len(d.Applied()), 10)
}

func TestWorkerApplyFailureIsLoggedNotRetried(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := newFakeDriver(0)
	d.applyErr = errBoom
	w := NewWorker[int](Spec{Name: "lamp"}, d, WorkerConfig{
		IdlePoll:    10 * time.Millisecond,
		SettleDelay: -1,
		Logger:      zap.New(core).Sugar(),
	})
	w.Start()
	defer func() { w.Shutdown(); w.Wait() }()
	<-w.Readiness().StatusKnown()

	w.RequestChange(5)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to apply device state").Len() == 1
	}, eventually, time.Millisecond)

	entry := logs.FilterMessage("Failed to apply device state").All()[0]
	assert.Equal(t, "lamp", entry.ContextMap()["device"])
	assert.Never(t, func() bool { return len(d.Applied()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 5, w.State())
}

func TestWorkerConnectFailureNeverSignalsAndStillJoins(t *testing.T) {
	d := newFakeDriver(0)
	d.connectErr = errBoom
	w := newTestWorker(t, d, -1)
	w.Start()

	assert.Never(t, w.Readiness().IsConnected, 30*time.Millisecond, 5*time.Millisecond)

	w.Shutdown()
	select {
	case <-w.Done():
	case <-time.After(eventually):
		t.Fatal("worker did not terminate")
	}
	assert.Equal(t, Terminated, w.Status())
	assert.EqualValues(t, 1, d.closed.Load())
}

func TestWorkerStatusFailureConnectsButNeverKnown(t *testing.T) {
	d := newFakeDriver(0)
	d.statusErr = errBoom
	w := newTestWorker(t, d, -1)
	w.Start()

	require.Eventually(t, w.Readiness().IsConnected, eventually, time.Millisecond)
	assert.Never(t, w.Readiness().IsStatusKnown, 30*time.Millisecond, 5*time.Millisecond)
}

func TestWorkerShutdownIsIdempotent(t *testing.T) {
	d := newFakeDriver(0)
	w := newTestWorker(t, d, -1)
	w.Start()
	<-w.Readiness().StatusKnown()

	w.Shutdown()
	w.Shutdown()
	w.Wait()
	w.Shutdown()

	assert.Equal(t, Terminated, w.Status())
	assert.EqualValues(t, 1, d.closed.Load())
}

func TestWorkerShutdownUnblocksPendingConnect(t *testing.T) {
	d := newFakeDriver(0)
	d.connectGate = make(chan struct{})
	w := newTestWorker(t, d, -1)
	w.Start()

	w.Shutdown()
	select {
	case <-w.Done():
	case <-time.After(eventually):
		t.Fatal("worker did not terminate")
	}
	assert.False(t, w.Readiness().IsConnected())
}

func TestWorkerRequestBeforeStatusKeepsRequestedValue(t *testing.T) {
	d := newFakeDriver(9)
	d.statusGate = make(chan struct{})
	w := newTestWorker(t, d, -1)
	w.Start()

	w.RequestChange(3)
	close(d.statusGate)
	<-w.Readiness().StatusKnown()

	assert.Equal(t, 3, w.State())
	assert.Equal(t, 3, <-d.applyStarted)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "serving", Serving.String())
	assert.Equal(t, "awaiting_initial_status", AwaitingInitialStatus.String())
	assert.Equal(t, "unknown", Status(99).String())
}
