package data

import (
	"context"
	"testing"
	"time"

	"infopics/internal/biz/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// SessionRepoTestSuite 用内存 redis 测试会话存储
type SessionRepoTestSuite struct {
	suite.Suite
	mr   *miniredis.Miniredis
	repo SessionRepo
}

func (suite *SessionRepoTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	suite.Require().NoError(err)
	suite.mr = mr

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	suite.repo = &sessionRepo{rdb: rdb, l: zap.NewNop()}
}

func (suite *SessionRepoTestSuite) TearDownTest() {
	suite.mr.Close()
}

func (suite *SessionRepoTestSuite) TestSaveAndLoad() {
	ctx := context.Background()
	state := &model.SessionState{
		UserID:      "u-1",
		PendingID:   "p-1",
		RedirectURL: "/posts/7",
		TempUser:    &model.TempUser{Email: "a@gmail.com", Source: model.SourceLocal},
		Flash:       []model.Flash{{Kind: "success", Text: "Check your email"}},
	}

	err := suite.repo.Save(ctx, "sid-1", state, time.Hour)
	assert.NoError(suite.T(), err)

	loaded, err := suite.repo.Load(ctx, "sid-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), state, loaded)
}

func (suite *SessionRepoTestSuite) TestLoad_MissingSession() {
	_, err := suite.repo.Load(context.Background(), "nope")
	assert.True(suite.T(), model.IsNotFound(err))
}

func (suite *SessionRepoTestSuite) TestLoad_ExpiredSession() {
	ctx := context.Background()

	err := suite.repo.Save(ctx, "sid-1", &model.SessionState{UserID: "u-1"}, time.Minute)
	assert.NoError(suite.T(), err)

	suite.mr.FastForward(2 * time.Minute)

	_, err = suite.repo.Load(ctx, "sid-1")
	assert.True(suite.T(), model.IsNotFound(err))
}

func (suite *SessionRepoTestSuite) TestLoad_CorruptedPayload() {
	suite.mr.Set("session:sid-1", "{not json")

	_, err := suite.repo.Load(context.Background(), "sid-1")
	// 损坏的载荷按不存在处理
	assert.True(suite.T(), model.IsNotFound(err))
}

func (suite *SessionRepoTestSuite) TestDestroy() {
	ctx := context.Background()

	err := suite.repo.Save(ctx, "sid-1", &model.SessionState{UserID: "u-1"}, time.Hour)
	assert.NoError(suite.T(), err)

	err = suite.repo.Destroy(ctx, "sid-1")
	assert.NoError(suite.T(), err)

	_, err = suite.repo.Load(ctx, "sid-1")
	assert.True(suite.T(), model.IsNotFound(err))

	// 销毁不存在的会话也不报错
	assert.NoError(suite.T(), suite.repo.Destroy(ctx, "sid-1"))
}

func TestSessionRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SessionRepoTestSuite))
}
