package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"melodia-go/internal/api/dto"
	"melodia-go/internal/config"
	infraKafka "melodia-go/internal/infra/kafka"
	infraRedis "melodia-go/internal/infra/redis"
	"melodia-go/internal/model"
	"melodia-go/internal/repository"
	"melodia-go/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	userU1 int64 = 1
	userU2 int64 = 2
	songS  int64 = 100
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []infraKafka.CommentEvent
	err    error
}

func (p *recordingPublisher) PublishCommentEvent(_ context.Context, evt *infraKafka.CommentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubLocker struct {
	err   error
	calls int
}

func (l *stubLocker) Lock(_ context.Context, _ string) (func(), error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

type prefixAvatars struct{}

func (prefixAvatars) ResolveAvatar(_ context.Context, avatar string) string {
	return "https://cdn.test/" + avatar
}

type fixture struct {
	db       *gorm.DB
	svc      *CommentService
	comments *repository.CommentRepository
	likes    *repository.CommentLikeRepository
}

func newFixture(t *testing.T, mutate ...func(*config.CommentConfig)) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewDB(t), mutate...)
}

func newFixtureOn(t *testing.T, db *gorm.DB, mutate ...func(*config.CommentConfig)) *fixture {
	t.Helper()
	testutil.SeedUser(t, db, userU1, "u1", testutil.Ptr("avatars/u1.png"))
	testutil.SeedUser(t, db, userU2, "u2", nil)

	cfg := config.DefaultCommentConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	comments := repository.NewCommentRepository(db)
	likes := repository.NewCommentLikeRepository(db)
	svc := NewCommentService(comments, likes, repository.NewTransactor(db), cfg)
	return &fixture{db: db, svc: svc, comments: comments, likes: likes}
}

func (f *fixture) post(t *testing.T, author int64, content string, parentID *int64) *dto.CommentInfo {
	t.Helper()
	info, err := f.svc.Create(context.Background(), author, &dto.CommentCreateRequest{
		TargetID:   songS,
		TargetType: "song",
		Content:    content,
		ParentID:   parentID,
	})
	require.NoError(t, err)
	return info
}

func (f *fixture) list(t *testing.T, viewer int64) []dto.CommentInfo {
	t.Helper()
	data, err := f.svc.ListByTarget(context.Background(), songS, "song", viewer)
	require.NoError(t, err)
	assert.Equal(t, len(data.Comments), data.Total)
	return data.Comments
}

func (f *fixture) assertCounterMatchesLedger(t *testing.T, commentID int64) int64 {
	t.Helper()
	ctx := context.Background()
	stored, err := f.comments.GetByID(ctx, commentID)
	require.NoError(t, err)
	ledger, err := f.likes.CountByComment(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, ledger, stored.LikeCount, "like_count must equal ledger rows")
	return stored.LikeCount
}

// afterQueries 在第 n 次实际查询 comments / comment_likes 表之后执行 fn[n]，
// fn 与被测操作共用同一事务连接，用来模拟恰好在两条语句之间提交的并发写入。
func (f *fixture) afterQueries(t *testing.T, fn map[int]func(tx *gorm.DB)) {
	t.Helper()
	seen := 0
	err := f.db.Callback().Query().After("gorm:query").Register("melodia:interleave", func(db *gorm.DB) {
		if db.Error != nil || db.DryRun {
			return
		}
		if db.Statement.Table != "comments" && db.Statement.Table != "comment_likes" {
			return
		}
		seen++
		if inject, ok := fn[seen]; ok {
			inject(db.Session(&gorm.Session{NewDB: true}))
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove("melodia:interleave") })
}

// likeBehind 写入一条点赞流水并同步 +1，等价于另一个请求已完成的点赞
func likeBehind(t *testing.T, commentID, userID int64) func(tx *gorm.DB) {
	return func(tx *gorm.DB) {
		require.NoError(t, tx.Create(&model.CommentLike{CommentID: commentID, UserID: userID}).Error)
		require.NoError(t, tx.Model(&model.Comment{}).Where("id = ?", commentID).
			Update("like_count", gorm.Expr("like_count + 1")).Error)
	}
}

// unlikeBehind 删除一条点赞流水并同步 -1，等价于另一个请求已完成的取消点赞
func unlikeBehind(t *testing.T, commentID, userID int64) func(tx *gorm.DB) {
	return func(tx *gorm.DB) {
		require.NoError(t, tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
			Delete(&model.CommentLike{}).Error)
		require.NoError(t, tx.Model(&model.Comment{}).Where("id = ?", commentID).
			Update("like_count", gorm.Expr("like_count - 1")).Error)
	}
}

func TestCommentService_LikeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.post(t, userU1, "great track", nil)
	assert.Equal(t, "u1", *c.Username)
	assert.Equal(t, "avatars/u1.png", *c.UserAvatar)
	assert.False(t, c.IsLiked)

	list := f.list(t, userU1)
	require.Len(t, list, 1)
	assert.EqualValues(t, 0, list[0].LikeCount)
	assert.False(t, list[0].IsLiked)

	liked, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.True(t, liked)

	asU2 := f.list(t, userU2)
	assert.EqualValues(t, 1, asU2[0].LikeCount)
	assert.True(t, asU2[0].IsLiked)

	asU1 := f.list(t, userU1)
	assert.EqualValues(t, 1, asU1[0].LikeCount)
	assert.False(t, asU1[0].IsLiked)

	liked, err = f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 0, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_ToggleTwiceRestoresCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "hello", nil)

	_, err := f.svc.ToggleLike(ctx, c.ID, userU1)
	require.NoError(t, err)
	before := f.assertCounterMatchesLedger(t, c.ID)

	first, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	second, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, before, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_DeleteRequiresAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU2, "not yours", nil)

	err := f.svc.Delete(ctx, c.ID, userU1)
	assert.ErrorIs(t, err, ErrCommentDeleteDenied)

	// 不存在的评论返回同一个错误
	err = f.svc.Delete(ctx, c.ID+1000, userU1)
	assert.ErrorIs(t, err, ErrCommentDeleteDenied)

	list := f.list(t, userU1)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestCommentService_SoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "bye", nil)
	_, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, c.ID, userU1))

	assert.Empty(t, f.list(t, userU1))

	_, err = f.svc.GetByID(ctx, c.ID, userU1)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	raw, err := f.comments.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentStatusDeleted, raw.Status)
	assert.False(t, raw.UpdatedAt.Before(raw.CreatedAt))

	// 点赞流水保留
	exists, err := f.likes.Exists(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.svc.ToggleLike(ctx, c.ID, userU2)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentService_ContentLengthBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, userU1, &dto.CommentCreateRequest{
		TargetID: songS, TargetType: "song", Content: strings.Repeat("好", 501),
	})
	assert.ErrorIs(t, err, ErrContentTooLong)
	assert.ErrorIs(t, err, ErrValidationFailed)

	info, err := f.svc.Create(ctx, userU1, &dto.CommentCreateRequest{
		TargetID: songS, TargetType: "song", Content: strings.Repeat("好", 500),
	})
	require.NoError(t, err)
	assert.Len(t, []rune(info.Content), 500)
}

func TestCommentService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		author int64
		req    dto.CommentCreateRequest
		want   error
	}{
		{"anonymous", 0, dto.CommentCreateRequest{TargetID: songS, TargetType: "song", Content: "x"}, ErrUnauthenticated},
		{"blank content", userU1, dto.CommentCreateRequest{TargetID: songS, TargetType: "song", Content: "   "}, ErrInvalidContent},
		{"missing target", userU1, dto.CommentCreateRequest{TargetType: "song", Content: "x"}, ErrInvalidTarget},
		{"unknown target type", userU1, dto.CommentCreateRequest{TargetID: songS, TargetType: "album", Content: "x"}, ErrInvalidTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.author, &tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	info, err := f.svc.Create(ctx, userU1, &dto.CommentCreateRequest{TargetID: songS, TargetType: "song", Content: "  trimmed  "})
	require.NoError(t, err)
	assert.Equal(t, "trimmed", info.Content)
}

func TestCommentService_RepliesSurviveParentDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.post(t, userU1, "parent", nil)
	reply := f.post(t, userU1, "reply", &parent.ID)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	nested := f.post(t, userU2, "reply to reply", &reply.ID)
	assert.Equal(t, reply.ID, *nested.ParentID)

	require.NoError(t, f.svc.Delete(ctx, parent.ID, userU1))

	list := f.list(t, userU2)
	require.Len(t, list, 2)
	assert.Equal(t, reply.ID, list[0].ID)
	assert.Equal(t, parent.ID, *list[0].ParentID)
	assert.Equal(t, nested.ID, list[1].ID)
}

func TestCommentService_StrictParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, userU1, &dto.CommentCreateRequest{
		TargetID: songS, TargetType: "song", Content: "orphan", ParentID: testutil.Ptr(int64(999)),
	})
	assert.ErrorIs(t, err, ErrParentNotFound)

	parent := f.post(t, userU1, "on song", nil)
	_, err = f.svc.Create(ctx, userU1, &dto.CommentCreateRequest{
		TargetID: songS, TargetType: "playlist", Content: "wrong target", ParentID: &parent.ID,
	})
	assert.ErrorIs(t, err, ErrParentTargetMismatch)
}

func TestCommentService_PermissiveParent(t *testing.T) {
	f := newFixture(t, func(c *config.CommentConfig) { c.StrictParent = false })

	info := f.post(t, userU1, "orphan allowed", testutil.Ptr(int64(999)))
	assert.EqualValues(t, 999, *info.ParentID)
}

func TestCommentService_GetByID(t *testing.T) {
	f := newFixture(t)
	f.svc.WithAvatarResolver(prefixAvatars{})
	ctx := context.Background()

	c := f.post(t, userU1, "detail", nil)
	_, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)

	asU2, err := f.svc.GetByID(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.True(t, asU2.IsLiked)
	assert.EqualValues(t, 1, asU2.LikeCount)
	assert.Equal(t, "https://cdn.test/avatars/u1.png", *asU2.UserAvatar)

	asU1, err := f.svc.GetByID(ctx, c.ID, userU1)
	require.NoError(t, err)
	assert.False(t, asU1.IsLiked)

	_, err = f.svc.GetByID(ctx, 4242, userU1)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	_, err = f.svc.GetByID(ctx, c.ID, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCommentService_ConcurrentLikesFromDistinctUsers(t *testing.T) {
	f := newFixtureOn(t, testutil.NewFileDB(t, 8))
	ctx := context.Background()
	c := f.post(t, userU1, "popular", nil)

	const users = 25
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			liked, err := f.svc.ToggleLike(ctx, c.ID, uid)
			if err == nil && !liked {
				err = errors.New("expected liked")
			}
			errs <- err
		}(int64(1000 + i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, users, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_ConcurrentTogglesSameUserWithLock(t *testing.T) {
	f := newFixtureOn(t, testutil.NewFileDB(t, 8))
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.svc.WithLocker(infraRedis.NewLocker(client, 5*time.Second, 5*time.Second))

	ctx := context.Background()
	c := f.post(t, userU1, "spam click", nil)

	const clicks = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		likes int
	)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			liked, err := f.svc.ToggleLike(ctx, c.ID, userU2)
			assert.NoError(t, err)
			mu.Lock()
			if liked {
				likes++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 串行化后点赞与取消交替出现
	assert.Equal(t, clicks/2, likes)
	assert.EqualValues(t, 0, f.assertCounterMatchesLedger(t, c.ID))
	assert.False(t, mr.Exists(infraRedis.CommentLikeLockKey(c.ID, userU2)))
}

func TestCommentService_ConcurrentMixedToggles(t *testing.T) {
	f := newFixtureOn(t, testutil.NewFileDB(t, 8))
	ctx := context.Background()
	c := f.post(t, userU1, "contended", nil)

	// 每个用户点击奇数次，最终都处于已点赞状态
	const users = 12
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		uid := int64(2000 + i)
		clicks := 2*(i%3) + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < clicks; n++ {
				_, err := f.svc.ToggleLike(ctx, c.ID, uid)
				assert.NoError(t, err)
			}
		}()
	}

	// 对账与点赞切换并发执行
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < 5; n++ {
			_, err := f.svc.ReconcileLikeCount(ctx, c.ID)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.EqualValues(t, users, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_ToggleLikeRacesWithSameUserLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "double click", nil)

	// 本次读到"未点赞"之后，同一用户的另一次点赞先提交
	f.afterQueries(t, map[int]func(*gorm.DB){
		2: likeBehind(t, c.ID, userU2),
	})

	liked, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_ToggleLikeRacesWithSameUserUnlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "double click", nil)
	for _, uid := range []int64{userU1, userU2} {
		_, err := f.svc.ToggleLike(ctx, c.ID, uid)
		require.NoError(t, err)
	}

	// 本次读到"已点赞"之后，同一用户的另一次取消先提交
	f.afterQueries(t, map[int]func(*gorm.DB){
		2: unlikeBehind(t, c.ID, userU2),
	})

	liked, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 1, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_ReconcileKeepsConcurrentLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "hot", nil)

	// 对账读取评论之后、写回之前，各有一次点赞提交
	f.afterQueries(t, map[int]func(*gorm.DB){
		1: likeBehind(t, c.ID, 3001),
		2: likeBehind(t, c.ID, 3002),
	})

	_, err := f.svc.ReconcileLikeCount(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.assertCounterMatchesLedger(t, c.ID))
}

func TestCommentService_LockFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "locked", nil)

	busy := &stubLocker{err: infraRedis.ErrLockTimeout}
	f.svc.WithLocker(busy)
	_, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.EqualValues(t, 0, f.assertCounterMatchesLedger(t, c.ID))

	// Redis 故障时降级为仅依赖事务
	down := &stubLocker{err: errors.New("connection refused")}
	f.svc.WithLocker(down)
	liked, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, down.calls)
}

func TestCommentService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	f.svc.WithPublisher(pub)
	ctx := context.Background()

	c := f.post(t, userU1, "events", nil)
	_, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	_, err = f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, c.ID, userU1))

	assert.Equal(t, []string{
		infraKafka.EventCommentCreated,
		infraKafka.EventCommentLiked,
		infraKafka.EventCommentUnliked,
		infraKafka.EventCommentDeleted,
	}, pub.types())
	assert.Equal(t, "song", pub.events[0].TargetType)
	assert.False(t, pub.events[0].OccurredAt.IsZero())
}

func TestCommentService_ReconcileLikeCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "drifted", nil)
	_, err := f.svc.ToggleLike(ctx, c.ID, userU2)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.Comment{}).Where("id = ?", c.ID).Update("like_count", 7).Error)

	count, err := f.svc.ReconcileLikeCount(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	f.assertCounterMatchesLedger(t, c.ID)

	_, err = f.svc.ReconcileLikeCount(ctx, 9999)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentService_StorageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.post(t, userU1, "soon broken", nil)

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.ListByTarget(ctx, songS, "song", userU1)
	assert.ErrorIs(t, err, ErrOperationFailed)

	_, err = f.svc.ToggleLike(ctx, c.ID, userU2)
	assert.ErrorIs(t, err, ErrOperationFailed)
}

func TestCommentService_ListRequiresViewer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListByTarget(context.Background(), songS, "song", 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.ListByTarget(context.Background(), songS, "video", userU1)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
