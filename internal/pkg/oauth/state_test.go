package oauth

import (
	"testing"

	"infopics/internal/conf"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestSigner(t *testing.T, secret string) *StateSigner {
	t.Helper()
	signer, err := NewStateSigner(&conf.Bootstrap{Auth: &conf.Auth{StateSecret: secret}}, zap.NewNop())
	assert.NoError(t, err)
	return signer
}

func TestStateSigner_RoundTrip(t *testing.T) {
	signer := newTestSigner(t, "test-secret")

	raw, err := signer.Sign(true, "/posts/42")
	assert.NoError(t, err)
	assert.NotEmpty(t, raw)

	claims, err := signer.Verify(raw)
	assert.NoError(t, err)
	assert.True(t, claims.Attach)
	assert.Equal(t, "/posts/42", claims.Redirect)
	assert.NotEmpty(t, claims.ID)
}

func TestStateSigner_UniquePerSign(t *testing.T) {
	signer := newTestSigner(t, "test-secret")

	a, err := signer.Sign(false, "")
	assert.NoError(t, err)
	b, err := signer.Sign(false, "")
	assert.NoError(t, err)
	// 每次签发带独立的 jti
	assert.NotEqual(t, a, b)
}

func TestStateSigner_RejectsTamperedToken(t *testing.T) {
	signer := newTestSigner(t, "test-secret")

	raw, err := signer.Sign(false, "/posts")
	assert.NoError(t, err)

	tampered := raw[:len(raw)-4] + "xxxx"
	_, err = signer.Verify(tampered)
	assert.Error(t, err)
}

func TestStateSigner_RejectsForeignSecret(t *testing.T) {
	theirs := newTestSigner(t, "their-secret")
	ours := newTestSigner(t, "our-secret")

	raw, err := theirs.Sign(false, "")
	assert.NoError(t, err)

	_, err = ours.Verify(raw)
	assert.Error(t, err)
}

func TestStateSigner_RejectsGarbage(t *testing.T) {
	signer := newTestSigner(t, "test-secret")

	_, err := signer.Verify("not-a-jwt")
	assert.Error(t, err)
	_, err = signer.Verify("")
	assert.Error(t, err)
}

func TestNewStateSigner_AutoGeneratesSecret(t *testing.T) {
	signer, err := NewStateSigner(&conf.Bootstrap{Auth: &conf.Auth{}}, zap.NewNop())
	assert.NoError(t, err)

	raw, err := signer.Sign(false, "")
	assert.NoError(t, err)
	_, err = signer.Verify(raw)
	assert.NoError(t, err)
}
