package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/internal/jobs"
	"github.com/hugh/bizops/internal/testutil"
	"github.com/hugh/bizops/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []jobs.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg jobs.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *recordingClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: queue.QueueMail}, nil
}

func newHandler(t *testing.T) (*jobs.Handler, *recordingMailer, *testutil.TestSetup) {
	t.Helper()
	ts := testutil.NewTestContext(t)
	mailer := &recordingMailer{}
	verifier := auth.NewVerifier("verify-secret", "https://app.test", time.Hour)
	return jobs.NewHandler(ts.DB, verifier, mailer, "noreply@app.test", testutil.Logger()), mailer, ts
}

func task(t *testing.T, typ string, payload interface{}) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestHandleVerificationMail(t *testing.T) {
	h, mailer, ts := newHandler(t)
	ctx := testutil.TestContext(t)

	user := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	require.NoError(t, ts.DB.Model(user).Update("email_verified_at", nil).Error)

	require.NoError(t, h.HandleVerificationMail(ctx, task(t, jobs.TypeVerificationMail, jobs.VerificationMailPayload{UserID: user.ID})))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, user.Email, msg.To)
	assert.Equal(t, "noreply@app.test", msg.From)
	assert.Contains(t, msg.Body, "https://app.test/api/v1/email/verify/"+user.ID.String())
	assert.Contains(t, msg.Body, "signature=")
}

func TestHandleVerificationMailSkips(t *testing.T) {
	h, mailer, ts := newHandler(t)
	ctx := testutil.TestContext(t)

	t.Run("already verified", func(t *testing.T) {
		require.NoError(t, h.HandleVerificationMail(ctx, task(t, jobs.TypeVerificationMail, jobs.VerificationMailPayload{UserID: ts.Admin.ID})))
		assert.Empty(t, mailer.sent)
	})

	t.Run("unknown user is not retried", func(t *testing.T) {
		err := h.HandleVerificationMail(ctx, task(t, jobs.TypeVerificationMail, jobs.VerificationMailPayload{UserID: uuid.New()}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("invalid payload", func(t *testing.T) {
		err := h.HandleVerificationMail(ctx, asynq.NewTask(jobs.TypeVerificationMail, []byte("invalid json")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal payload")
	})
}

func TestHandleVerificationMailSendFailure(t *testing.T) {
	h, mailer, ts := newHandler(t)
	mailer.err = errors.New("smtp down")
	user := testutil.CreateTestMember(t, ts.DB, ts.Admin, models.RoleMember)
	require.NoError(t, ts.DB.Model(user).Update("email_verified_at", nil).Error)

	err := h.HandleVerificationMail(testutil.TestContext(t), task(t, jobs.TypeVerificationMail, jobs.VerificationMailPayload{UserID: user.ID}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleLoginAlert(t *testing.T) {
	h, mailer, ts := newHandler(t)
	ctx := testutil.TestContext(t)
	payload := jobs.LoginAlertPayload{UserID: ts.Admin.ID, IP: "203.0.113.7", UserAgent: "curl", At: time.Now().Unix()}

	require.NoError(t, h.HandleLoginAlert(ctx, task(t, jobs.TypeLoginAlert, payload)))
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].Body, "203.0.113.7")

	setting := &models.SecuritySetting{UserID: ts.Admin.ID}
	require.NoError(t, ts.DB.Create(setting).Error)
	require.NoError(t, ts.DB.Model(setting).Update("login_alerts", false).Error)
	require.NoError(t, h.HandleLoginAlert(ctx, task(t, jobs.TypeLoginAlert, payload)))
	assert.Len(t, mailer.sent, 1)
}

func TestEnqueuer(t *testing.T) {
	client := &recordingClient{}
	e := jobs.NewEnqueuer(client, testutil.Logger())
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, e.VerificationRequested(ctx, userID))
	require.NoError(t, e.LoggedIn(ctx, userID, "127.0.0.1", "test"))
	require.Len(t, client.tasks, 2)

	assert.Equal(t, jobs.TypeVerificationMail, client.tasks[0].Type())
	var payload jobs.VerificationMailPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, userID, payload.UserID)
	assert.Equal(t, jobs.TypeLoginAlert, client.tasks[1].Type())

	var queueName string
	for _, opt := range client.opts[0] {
		if opt.Type() == asynq.QueueOpt {
			queueName = opt.Value().(string)
		}
	}
	assert.Equal(t, queue.QueueMail, queueName)

	client.err = errors.New("redis down")
	assert.Error(t, e.VerificationRequested(ctx, userID))
}

func TestEnqueuerSatisfiesNotifier(t *testing.T) {
	var _ auth.Notifier = jobs.NewEnqueuer(&recordingClient{}, testutil.Logger())
}
