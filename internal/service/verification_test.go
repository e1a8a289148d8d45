package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/queue"
	"github.com/sppt/server/internal/repo"
)

type verificationFixture struct {
	svc    *VerificationService
	codes  *fakeCodes
	sender *captureSender
	client model.Client
	now    time.Time
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	f := &verificationFixture{
		codes:  &fakeCodes{},
		sender: &captureSender{},
		client: model.Client{ID: uuid.New(), Phone: "+573001234567", Name: "Ana", Active: true},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.codes.now = func() time.Time { return f.now }
	inactive := model.Client{ID: uuid.New(), Phone: "3009999999", Name: "Off", Active: false}
	f.svc = NewVerificationService(newFakeClients(f.client, inactive), f.codes, f.sender, VerificationOptions{
		Pepper: "pepper",
		Now:    func() time.Time { return f.now },
	}, zerolog.Nop())
	return f
}

func TestVerification_RequestAndConfirm(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	req, err := f.svc.RequestCode(ctx, f.client.Phone)
	require.NoError(t, err)
	assert.Equal(t, "+57******4567", req.MaskedPhone)
	assert.Equal(t, DefaultCodeTTL, req.ExpiresIn)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Len(t, msg.Code, 6)
	assert.Equal(t, f.now.Add(15*time.Minute), msg.ExpiresAt)
	assert.NotEqual(t, msg.Code, f.codes.codes[0].CodeHash, "code is stored hashed")

	id, err := f.svc.ConfirmCode(ctx, f.client.Phone, msg.Code)
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, id)
	assert.True(t, f.codes.verified[f.client.ID])

	_, err = f.svc.ConfirmCode(ctx, f.client.Phone, msg.Code)
	assert.ErrorIs(t, err, repo.ErrCodeInvalid, "codes are single use")
}

func TestVerification_NewRequestInvalidatesPrevious(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, f.client.Phone)
	require.NoError(t, err)
	_, err = f.svc.RequestCode(ctx, f.client.Phone)
	require.NoError(t, err)
	first, second := f.sender.sent[0].Code, f.sender.sent[1].Code

	if first != second {
		_, err = f.svc.ConfirmCode(ctx, f.client.Phone, first)
		assert.ErrorIs(t, err, repo.ErrCodeInvalid)
	}
	_, err = f.svc.ConfirmCode(ctx, f.client.Phone, second)
	assert.NoError(t, err)
}

func TestVerification_ExpiredCode(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, f.client.Phone)
	require.NoError(t, err)
	f.now = f.now.Add(16 * time.Minute)

	_, err = f.svc.ConfirmCode(ctx, f.client.Phone, f.sender.sent[0].Code)
	assert.ErrorIs(t, err, repo.ErrCodeInvalid)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestVerification_WrongCode(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, f.client.Phone)
	require.NoError(t, err)
	wrong := "000000"
	if f.sender.sent[0].Code == wrong {
		wrong = "000001"
	}
	_, err = f.svc.ConfirmCode(ctx, f.client.Phone, wrong)
	assert.ErrorIs(t, err, repo.ErrCodeInvalid)
	assert.False(t, f.codes.verified[f.client.ID])
}

func TestVerification_RequestErrors(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, "3110000000")
	assert.ErrorIs(t, err, repo.ErrClientNotFound)

	_, err = f.svc.RequestCode(ctx, "3009999999")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = f.svc.ConfirmCode(ctx, "3110000000", "123456")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerification_RateLimited(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	for i := 0; i < maxCodeRequests; i++ {
		_, err := f.svc.RequestCode(ctx, f.client.Phone)
		require.NoError(t, err)
	}
	_, err := f.svc.RequestCode(ctx, f.client.Phone)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)

	f.now = f.now.Add(requestWindow + time.Second)
	_, err = f.svc.RequestCode(ctx, f.client.Phone)
	assert.NoError(t, err)
}

func TestVerification_SendFailure(t *testing.T) {
	f := newVerificationFixture(t)
	f.sender.err = errors.New("broker down")

	_, err := f.svc.RequestCode(context.Background(), f.client.Phone)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestHashCodeBindsClient(t *testing.T) {
	f := newVerificationFixture(t)
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, f.svc.hashCode(a, "123456"), f.svc.hashCode(b, "123456"))
	assert.Equal(t, f.svc.hashCode(a, "123456"), f.svc.hashCode(a, "123456"))
}

type recordingPublisher struct {
	queue string
	event any
}

func (p *recordingPublisher) Publish(_ context.Context, q string, v any) error {
	p.queue, p.event = q, v
	return nil
}

func TestAMQPSender(t *testing.T) {
	pub := &recordingPublisher{}
	exp := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	err := NewAMQPSender(pub).SendCode(context.Background(), CodeMessage{
		ClientID: "c1", ClientName: "Ana", Phone: "+573001234567", Code: "123456", ExpiresAt: exp, TTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, queue.QueueVerificationRequested, pub.queue)
	assert.Equal(t, queue.VerificationRequestedEvent{
		ClientID:      "c1",
		ClientName:    "Ana",
		Phone:         "+573001234567",
		Code:          "123456",
		ExpiresAt:     "2026-03-01T12:15:00Z",
		ExpiryMinutes: 15,
	}, pub.event)
}

func TestHousekeeping_Run(t *testing.T) {
	now := time.Now()
	codes := &fakeCodes{codes: []model.VerificationCode{
		{ID: uuid.New(), ExpiresAt: now.Add(-time.Hour)},
		{ID: uuid.New(), ExpiresAt: now.Add(time.Hour), Used: true},
		{ID: uuid.New(), ExpiresAt: now.Add(time.Hour)},
	}}
	h := NewHousekeeping(stubTokens{n: 2}, stubTokens{n: 5}, codes, zerolog.Nop())

	r, err := h.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, CleanupReport{StaffTokens: 2, ClientTokens: 5, Codes: 2}, r)
	assert.Len(t, codes.codes, 1)
}

type stubTokens struct {
	repo.RefreshRepo
	n int64
}

func (s stubTokens) DeleteExpired(context.Context, time.Time) (int64, error) { return s.n, nil }
