package biz

import (
	"context"
	"strconv"
	"testing"

	"infopics/internal/biz/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockMailer 是 mail.Mailer 的模拟实现
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, bodyText string) error {
	args := m.Called(ctx, to, subject, bodyText)
	return args.Error(0)
}

func TestNewCode_Format(t *testing.T) {
	v := &codeVerifier{l: zap.NewNop()}

	for i := 0; i < 100; i++ {
		code, err := v.NewCode()
		assert.NoError(t, err)
		assert.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 1000000)
	}
}

func TestCheck_RoundTrip(t *testing.T) {
	v := &codeVerifier{l: zap.NewNop()}

	code, err := v.NewCode()
	assert.NoError(t, err)
	assert.True(t, v.Check(code, code))
	assert.True(t, v.Check(code, "  "+code+"\n"))
}

func TestCheck_Mismatch(t *testing.T) {
	v := &codeVerifier{l: zap.NewNop()}

	assert.False(t, v.Check("123456", "654321"))
	assert.False(t, v.Check("123456", ""))
	assert.False(t, v.Check("", "123456"))
	assert.False(t, v.Check("", ""))
}

func TestDispatch_SuccessAfterTransientFailure(t *testing.T) {
	mailer := new(MockMailer)
	v := &codeVerifier{mailer: mailer, l: zap.NewNop()}

	subject := "Verify your InfoPics account"
	body := "Your verification code is: 123456"
	mailer.On("Send", mock.Anything, "a@gmail.com", subject, body).Return(assert.AnError).Once()
	mailer.On("Send", mock.Anything, "a@gmail.com", subject, body).Return(nil).Once()

	err := v.Dispatch(context.Background(), "a@gmail.com", "123456")

	assert.NoError(t, err)
	mailer.AssertNumberOfCalls(t, "Send", 2)
}

func TestDispatch_ExhaustedRetriesReturnUpstream(t *testing.T) {
	mailer := new(MockMailer)
	v := &codeVerifier{mailer: mailer, l: zap.NewNop()}

	mailer.On("Send", mock.Anything, "a@gmail.com", mock.Anything, mock.Anything).Return(assert.AnError)

	err := v.Dispatch(context.Background(), "a@gmail.com", "123456")

	assert.True(t, model.IsUpstream(err))
	// 首次 + 两次重试
	mailer.AssertNumberOfCalls(t, "Send", 3)
}
