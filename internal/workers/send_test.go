package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohost/internal/config"
	"cohost/internal/faults"
	"cohost/internal/models"
)

type fakeQueue struct {
	pending   []models.OutboxItem
	retryable []models.OutboxItem
	claimable map[int64]bool

	sentIDs     []int64
	failedIDs   []int64
	failedMsgs  []string
	requeuedIDs []int64
	purgeCalls  int
}

func (q *fakeQueue) DequeuePending(_ context.Context, limit int) ([]models.OutboxItem, error) {
	if len(q.pending) > limit {
		return q.pending[:limit], nil
	}
	return q.pending, nil
}

func (q *fakeQueue) Claim(_ context.Context, id int64) (bool, error) {
	if q.claimable == nil {
		return true, nil
	}
	return q.claimable[id], nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id int64) error {
	q.sentIDs = append(q.sentIDs, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id int64, msg string) error {
	q.failedIDs = append(q.failedIDs, id)
	q.failedMsgs = append(q.failedMsgs, msg)
	return nil
}

func (q *fakeQueue) RetryableFailed(_ context.Context, _ int) ([]models.OutboxItem, error) {
	return q.retryable, nil
}

func (q *fakeQueue) Requeue(_ context.Context, id int64, _ int) (bool, error) {
	q.requeuedIDs = append(q.requeuedIDs, id)
	return true, nil
}

func (q *fakeQueue) PurgeTerminal(_ context.Context, _ time.Time, _ int) (int64, error) {
	q.purgeCalls++
	return 0, nil
}

func (q *fakeQueue) PurgeArchivedThreads(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeSender struct {
	errs  map[string]error
	calls []string
}

func (s *fakeSender) Send(_ context.Context, threadExternalID, _ string) error {
	s.calls = append(s.calls, threadExternalID)
	if s.errs == nil {
		return nil
	}
	return s.errs[threadExternalID]
}

type fakeHeartbeats struct {
	mu       sync.Mutex
	statuses []string
}

func (h *fakeHeartbeats) UpdateHeartbeat(_ context.Context, _, status string, _ map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
	return nil
}

type fakeNotifier struct {
	captcha  int
	session  int
	workErrs int
	admin    []string
}

func (n *fakeNotifier) CaptchaDetected(_ context.Context, _, _ string) { n.captcha++ }
func (n *fakeNotifier) SessionExpired(_ context.Context, _ string)    { n.session++ }
func (n *fakeNotifier) WorkerError(_ context.Context, _ string, _ int, _ error) {
	n.workErrs++
}
func (n *fakeNotifier) Admin(_ context.Context, title, _ string) {
	n.admin = append(n.admin, title)
}

func workerConfig() *config.Config {
	return &config.Config{
		SendInterval:   time.Millisecond,
		ScrapeInterval: time.Millisecond,
		RetryDelay:     time.Millisecond,
		MaxRetrySend:   5,
	}
}

func pendingItem(id int64, thread string) models.OutboxItem {
	return models.OutboxItem{
		ID:               id,
		ThreadID:         7,
		ThreadExternalID: thread,
		PayloadJSON:      `{"message":"hello"}`,
		Status:           models.OutboxStatusPending,
	}
}

func TestSendWorker_DeliversPendingItems(t *testing.T) {
	queue := &fakeQueue{pending: []models.OutboxItem{pendingItem(1, "T1"), pendingItem(2, "T2")}}
	sender := &fakeSender{}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, []string{"T1", "T2"}, sender.calls)
	assert.Equal(t, []int64{1, 2}, queue.sentIDs)
	assert.Empty(t, queue.failedIDs)
}

func TestSendWorker_SkipsUnclaimedItems(t *testing.T) {
	queue := &fakeQueue{
		pending:   []models.OutboxItem{pendingItem(1, "T1"), pendingItem(2, "T2")},
		claimable: map[int64]bool{1: false, 2: true},
	}
	sender := &fakeSender{}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, []string{"T2"}, sender.calls, "an item claimed elsewhere must not be sent")
	assert.Equal(t, []int64{2}, queue.sentIDs)
}

func TestSendWorker_TransientFailureMarksAndContinues(t *testing.T) {
	queue := &fakeQueue{pending: []models.OutboxItem{pendingItem(1, "T1"), pendingItem(2, "T2")}}
	sender := &fakeSender{errs: map[string]error{"T1": faults.Transient("composer missing", nil)}}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, []int64{1}, queue.failedIDs)
	assert.Equal(t, []int64{2}, queue.sentIDs, "later items still delivered after a transient failure")
}

func TestSendWorker_UnreadablePayload(t *testing.T) {
	item := pendingItem(1, "T1")
	item.PayloadJSON = "{not json"
	queue := &fakeQueue{pending: []models.OutboxItem{item}}
	sender := &fakeSender{}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Empty(t, sender.calls)
	require.Len(t, queue.failedMsgs, 1)
	assert.Contains(t, queue.failedMsgs[0], "unreadable payload")
}

func TestSendWorker_SleepsBetweenItems(t *testing.T) {
	cfg := workerConfig()
	cfg.SendInterval = 30 * time.Millisecond
	queue := &fakeQueue{pending: []models.OutboxItem{pendingItem(1, "T1"), pendingItem(2, "T2")}}
	w := NewSendWorker(queue, &fakeSender{}, &fakeHeartbeats{}, &fakeNotifier{}, cfg)

	start := time.Now()
	require.NoError(t, w.runCycle(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), cfg.SendInterval,
		"the configured pause must separate consecutive deliveries")
	assert.Equal(t, []int64{1, 2}, queue.sentIDs)
}

func TestSendWorker_HeartbeatPrecedesDelivery(t *testing.T) {
	queue := &fakeQueue{pending: []models.OutboxItem{pendingItem(1, "T1")}}
	sender := &fakeSender{errs: map[string]error{"T1": faults.Captcha("challenge shown")}}
	heartbeats := &fakeHeartbeats{}
	w := NewSendWorker(queue, sender, heartbeats, &fakeNotifier{}, workerConfig())

	require.Error(t, w.Run(context.Background()))
	require.NotEmpty(t, heartbeats.statuses)
	assert.Equal(t, models.WorkerStatusRunning, heartbeats.statuses[0],
		"liveness is recorded before the cycle starts")
	assert.Equal(t, models.WorkerStatusStopped, heartbeats.statuses[len(heartbeats.statuses)-1])
}

func TestSendWorker_CaptchaStopsTheRun(t *testing.T) {
	queue := &fakeQueue{pending: []models.OutboxItem{pendingItem(1, "T1"), pendingItem(2, "T2")}}
	sender := &fakeSender{errs: map[string]error{"T1": faults.Captcha("challenge shown")}}
	notifier := &fakeNotifier{}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, notifier, workerConfig())

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsCaptcha(err))
	assert.Equal(t, 1, notifier.captcha)
	assert.Equal(t, []string{"T1"}, sender.calls, "no further sends after a captcha")
	assert.Equal(t, []int64{1}, queue.failedIDs, "the attempt still counts against the item")
}

func TestSendWorker_AlertsWhenRetryBudgetExhausted(t *testing.T) {
	exhausted := pendingItem(1, "T1")
	exhausted.RetryCount = 4
	fresh := pendingItem(2, "T2")
	queue := &fakeQueue{pending: []models.OutboxItem{exhausted, fresh}}
	sender := &fakeSender{errs: map[string]error{
		"T1": faults.Transient("composer missing", nil),
		"T2": faults.Transient("composer missing", nil),
	}}
	notifier := &fakeNotifier{}
	w := NewSendWorker(queue, sender, &fakeHeartbeats{}, notifier, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, []int64{1, 2}, queue.failedIDs)
	require.Len(t, notifier.admin, 1, "only the item out of retries raises an alert")
	assert.Contains(t, notifier.admin[0], "gave up")
}

func TestSendWorker_RequeuesFailedWhenIdle(t *testing.T) {
	failed := pendingItem(3, "T3")
	failed.Status = models.OutboxStatusFailed
	failed.RetryCount = 2
	queue := &fakeQueue{retryable: []models.OutboxItem{failed}}
	w := NewSendWorker(queue, &fakeSender{}, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, []int64{3}, queue.requeuedIDs)
}

func TestSendWorker_RetentionSweepAtMostDaily(t *testing.T) {
	cfg := workerConfig()
	cfg.RetentionDays = 30
	queue := &fakeQueue{}
	w := NewSendWorker(queue, &fakeSender{}, &fakeHeartbeats{}, &fakeNotifier{}, cfg)

	require.NoError(t, w.runCycle(context.Background()))
	require.NoError(t, w.runCycle(context.Background()))
	assert.Equal(t, 1, queue.purgeCalls, "second idle cycle inside the window must not sweep again")
}

func TestSendWorker_RetentionDisabledByDefault(t *testing.T) {
	queue := &fakeQueue{}
	w := NewSendWorker(queue, &fakeSender{}, &fakeHeartbeats{}, &fakeNotifier{}, workerConfig())

	require.NoError(t, w.runCycle(context.Background()))
	assert.Zero(t, queue.purgeCalls)
}

func TestErrorBackoff(t *testing.T) {
	retryDelay := time.Minute
	assert.Equal(t, time.Minute, errorBackoff(retryDelay, 1))
	assert.Equal(t, 3*time.Minute, errorBackoff(retryDelay, 3))
	assert.Equal(t, maxBackoff, errorBackoff(retryDelay, 100), "backoff is capped")
}
