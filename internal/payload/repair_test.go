package payload

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, req *models.Request) (*models.Response, error)
	calls        int
}

func (m *mockGenerator) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	m.calls++
	return m.generateFunc(ctx, req)
}

func textReply(s string) *models.Response {
	return &models.Response{Message: models.Message{Role: models.RoleAssistant, Content: s}}
}

// --- HAPPY PATH TESTS ---

func TestParseWithRepair_ValidInputSkipsModel(t *testing.T) {
	gen := &mockGenerator{}
	r := NewRepairer(gen, nil, nil)

	p, err := r.ParseWithRepair(context.Background(), StartTag+`{"files":[{"path":"a","content":"b"}]}`+EndTag)

	require.NoError(t, err)
	assert.Len(t, p.Files, 1)
	assert.Equal(t, 0, gen.calls)
}

func TestParseWithRepair_OneRepairAtTemperatureZero(t *testing.T) {
	raw := "files: a.txt = hi"
	var gotReq *models.Request
	gen := &mockGenerator{generateFunc: func(ctx context.Context, req *models.Request) (*models.Response, error) {
		gotReq = req
		return textReply(StartTag + `{"files":[{"path":"a.txt","content":"hi"}]}` + EndTag), nil
	}}

	p, err := NewRepairer(gen, nil, nil).ParseWithRepair(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, "a.txt", p.Files[0].Path)
	assert.Equal(t, 1, gen.calls)
	require.NotNil(t, gotReq.Temperature)
	assert.Equal(t, float32(0), *gotReq.Temperature)
	require.Len(t, gotReq.Messages, 1)
	assert.Contains(t, gotReq.Messages[0].Content, raw)
	assert.Contains(t, gotReq.Messages[0].Content, StartTag)
	assert.Empty(t, gotReq.Tools)
}

// --- ERROR PATH TESTS ---

func TestParseWithRepair_SecondFailureReturnsRaw(t *testing.T) {
	raw := "still prose"
	gen := &mockGenerator{generateFunc: func(ctx context.Context, req *models.Request) (*models.Response, error) {
		return textReply("sorry, more prose"), nil
	}}

	_, err := NewRepairer(gen, nil, nil).ParseWithRepair(context.Background(), raw)

	var unparsable *UnparsableError
	require.ErrorAs(t, err, &unparsable)
	assert.Equal(t, raw, unparsable.Raw)
	assert.ErrorIs(t, err, ErrNoPayload)
	assert.Equal(t, 1, gen.calls)
}

func TestParseWithRepair_ProviderFailure(t *testing.T) {
	gen := &mockGenerator{generateFunc: func(ctx context.Context, req *models.Request) (*models.Response, error) {
		return nil, &models.ProviderError{Code: models.ErrorCodeTimeout, Message: "slow"}
	}}

	_, err := NewRepairer(gen, nil, nil).ParseWithRepair(context.Background(), "raw text")

	var unparsable *UnparsableError
	require.ErrorAs(t, err, &unparsable)
	assert.Equal(t, "raw text", unparsable.Raw)
	assert.ErrorIs(t, err, models.ErrTimeout)
}

func TestParseWithRepair_Cancelled(t *testing.T) {
	gen := &mockGenerator{generateFunc: func(ctx context.Context, req *models.Request) (*models.Response, error) {
		return nil, context.Canceled
	}}

	_, err := NewRepairer(gen, nil, nil).ParseWithRepair(context.Background(), "raw")

	assert.True(t, errors.Is(err, context.Canceled))
	var unparsable *UnparsableError
	assert.False(t, errors.As(err, &unparsable))
}

func TestNewRepairer_RequiresModel(t *testing.T) {
	assert.PanicsWithValue(t, "model is required", func() { NewRepairer(nil, nil, nil) })
}
