package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkharvest/pkg/config"
	"vkharvest/pkg/models"
	"vkharvest/pkg/ratelimit"
	"vkharvest/pkg/resolver"
	"vkharvest/pkg/store"
	"vkharvest/pkg/vk"
)

// fakeAPI serves a canned VK API over httptest: wall pages newest-first,
// comment pages per post, and identity lookups, with per-method call
// counters so tests can assert budget behavior.
type fakeAPI struct {
	mu       sync.Mutex
	posts    map[int64][]wirePost    // feed id -> items, descending by id
	comments map[int64][]wireComment // post id -> items
	users    map[int64]wireUser
	groups   map[int64]wireGroup

	wallCalls    int
	commentCalls int
	userCalls    int
	groupCalls   int

	expireToken bool // every response becomes error_code 5
	expireUsers bool // only users.get responds with error_code 5
}

type wireCount struct {
	Count int `json:"count"`
}

type wirePost struct {
	ID       int64      `json:"id"`
	Date     int64      `json:"date"`
	PostType string     `json:"post_type"`
	Text     string     `json:"text"`
	Likes    *wireCount `json:"likes,omitempty"`
	Reposts  *wireCount `json:"reposts,omitempty"`
	Views    *wireCount `json:"views,omitempty"`
	Comments *wireCount `json:"comments,omitempty"`
}

type wireComment struct {
	ID     int64  `json:"id"`
	FromID int64  `json:"from_id"`
	PostID int64  `json:"post_id"`
	Date   int64  `json:"date"`
	Text   string `json:"text"`
}

type wireUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type wireGroup struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		posts:    make(map[int64][]wirePost),
		comments: make(map[int64][]wireComment),
		users:    make(map[int64]wireUser),
		groups:   make(map[int64]wireGroup),
	}
}

func post(id, date int64, comments int) wirePost {
	return wirePost{
		ID:       id,
		Date:     date,
		PostType: "post",
		Text:     fmt.Sprintf("post %d", id),
		Likes:    &wireCount{Count: 1},
		Reposts:  &wireCount{},
		Views:    &wireCount{Count: 10},
		Comments: &wireCount{Count: comments},
	}
}

func respond(w http.ResponseWriter, payload interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"response": payload})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expireToken {
		fmt.Fprint(w, `{"error":{"error_code":5,"error_msg":"access_token has expired"}}`)
		return
	}

	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	count, _ := strconv.Atoi(q.Get("count"))

	switch r.URL.Path {
	case "/wall.get":
		f.wallCalls++
		ownerID, _ := strconv.ParseInt(q.Get("owner_id"), 10, 64)
		items := f.posts[-ownerID]
		respond(w, map[string]interface{}{
			"count": len(items),
			"items": page(items, offset, count),
		})

	case "/wall.getComments":
		f.commentCalls++
		postID, _ := strconv.ParseInt(q.Get("post_id"), 10, 64)
		items := f.comments[postID]
		respond(w, map[string]interface{}{
			"count": len(items),
			"items": page(items, offset, count),
		})

	case "/users.get":
		f.userCalls++
		if f.expireUsers {
			fmt.Fprint(w, `{"error":{"error_code":5,"error_msg":"access_token has expired"}}`)
			return
		}
		id, _ := strconv.ParseInt(q.Get("user_ids"), 10, 64)
		if u, ok := f.users[id]; ok {
			respond(w, []wireUser{u})
		} else {
			respond(w, []wireUser{})
		}

	case "/groups.getById":
		f.groupCalls++
		id, _ := strconv.ParseInt(q.Get("group_id"), 10, 64)
		if g, ok := f.groups[id]; ok {
			respond(w, []wireGroup{g})
		} else {
			respond(w, []wireGroup{})
		}

	default:
		http.NotFound(w, r)
	}
}

func page[T any](items []T, offset, count int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + count
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type fixture struct {
	api       *fakeAPI
	store     *store.Memory
	harvester *Harvester
	budget    *ratelimit.Budget
}

func newFixture(t *testing.T, budget, pageSize int) *fixture {
	t.Helper()

	api := newFakeAPI()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.VK.Token = "test-token"
	cfg.VK.BaseURL = server.URL
	cfg.Harvest.RetryDelay = time.Millisecond

	b := ratelimit.NewBudget(budget)
	client := vk.NewClient(cfg, b, nil)
	st := store.NewMemory()
	res := resolver.New(client, st, nil)

	return &fixture{
		api:       api,
		store:     st,
		harvester: New(client, res, st, pageSize, nil),
		budget:    b,
	}
}

func postIDSet(posts []models.Post) map[int64]bool {
	set := make(map[int64]bool, len(posts))
	for _, p := range posts {
		set[p.PostID] = true
	}
	return set
}

func TestHarvestPostsPicksUpFromHighWaterMark(t *testing.T) {
	fx := newFixture(t, 5, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42, Name: "Feed", ScreenName: "feed"}
	fx.api.posts[42] = []wirePost{
		post(103, 1700000300, 0),
		post(102, 1700000200, 0),
		post(101, 1700000100, 0),
		post(100, 1700000000, 0),
		post(99, 1699999900, 0),
	}

	// post 100 is the stored high-water mark
	require.NoError(t, fx.store.InsertGroup(ctx, &models.Group{ID: 42}))
	require.NoError(t, fx.store.InsertPosts(ctx, []models.Post{{PostID: 100, OwnerID: 42}}))

	posts, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, map[int64]bool{101: true, 102: true, 103: true}, postIDSet(posts))

	max, err := fx.store.MaxPostID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(103), max, "high-water mark advances to the newest harvested post")

	// the first page's newest item (103) is above the mark, so a second,
	// empty page is fetched before paging stops
	assert.Equal(t, 2, fx.api.wallCalls)
	assert.LessOrEqual(t, fx.budget.Spent(), 5)
}

func TestHarvestPostsEmptyFeed(t *testing.T) {
	fx := newFixture(t, 5, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42, Name: "Feed"}

	posts, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, posts)

	// the group is materialized even with nothing to harvest
	_, err = fx.store.GetGroup(ctx, 42)
	assert.NoError(t, err)
}

func TestHarvestPostsIdempotent(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42}
	fx.api.posts[42] = []wirePost{
		post(3, 1700000300, 0),
		post(2, 1700000200, 0),
		post(1, 1700000100, 0),
	}

	first, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, second, "a second pass over an unchanged feed yields nothing")

	_, _, stored, _ := fx.store.Counts()
	assert.Equal(t, 3, stored)
}

func TestHarvestPostsPagination(t *testing.T) {
	fx := newFixture(t, 20, 2)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42}
	fx.api.posts[42] = []wirePost{
		post(5, 1700000500, 0),
		post(4, 1700000400, 0),
		post(3, 1700000300, 0),
		post(2, 1700000200, 0),
		post(1, 1700000100, 0),
	}

	posts, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, posts, 5)
	assert.GreaterOrEqual(t, fx.api.wallCalls, 3, "five posts at stride 2 span three pages")
}

func TestHarvestPostsBudgetBound(t *testing.T) {
	fx := newFixture(t, 3, 1) // 1 for the group fetch, 2 wall pages
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42}
	fx.api.posts[42] = []wirePost{
		post(5, 1700000500, 0),
		post(4, 1700000400, 0),
		post(3, 1700000300, 0),
		post(2, 1700000200, 0),
	}

	posts, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)

	assert.Len(t, posts, 2, "paging stops when the budget runs out")
	assert.Equal(t, 3, fx.budget.Spent())
	assert.True(t, fx.budget.Exhausted())

	// the partial harvest is persisted and resumable
	max, err := fx.store.MaxPostID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5), max)
}

func TestHarvestPostsSkipsMalformedItems(t *testing.T) {
	fx := newFixture(t, 5, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42}
	broken := post(2, 1700000200, 0)
	broken.Likes = nil
	fx.api.posts[42] = []wirePost{
		post(3, 1700000300, 0),
		broken,
		post(1, 1700000100, 0),
	}

	posts, err := fx.harvester.HarvestPosts(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, postIDSet(posts))
}

func TestHarvestPostsExpiredToken(t *testing.T) {
	fx := newFixture(t, 5, 100)
	fx.api.expireToken = true

	_, err := fx.harvester.HarvestPosts(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, vk.IsAuthError(err))
}

func TestHarvestCommentsResolvesAuthors(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	fx.api.users[33] = wireUser{ID: 33, FirstName: "Ann"}
	fx.api.comments[10] = []wireComment{
		{ID: 1, FromID: 33, PostID: 10, Date: 1700000001, Text: "first"},
		{ID: 2, FromID: 33, PostID: 10, Date: 1700000002, Text: "second"},
		{ID: 3, FromID: 0, PostID: 10, Date: 1700000003, Text: "anonymous"},
	}

	posts := []models.Post{{PostID: 10, OwnerID: 42}}
	require.NoError(t, fx.store.InsertPosts(ctx, posts))

	comments, err := fx.harvester.HarvestComments(ctx, 42, posts)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	byID := make(map[int64]models.Comment)
	for _, c := range comments {
		byID[c.ID] = c
	}

	require.NotNil(t, byID[1].FromID)
	assert.Equal(t, int64(33), *byID[1].FromID)
	assert.Nil(t, byID[3].FromID, "from_id 0 is anonymous")

	assert.Equal(t, 1, fx.api.userCalls, "one author, one lookup; anonymity costs nothing")

	_, _, _, stored := fx.store.Counts()
	assert.Equal(t, 3, stored)
}

func TestHarvestCommentsSkipsExisting(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	fx.api.comments[10] = []wireComment{
		{ID: 1, PostID: 10, Date: 1700000001, Text: "already there"},
		{ID: 2, PostID: 10, Date: 1700000002, Text: "new"},
	}

	require.NoError(t, fx.store.InsertComments(ctx, []models.Comment{{ID: 1, OwnerID: 42, PostID: 10}}))

	comments, err := fx.harvester.HarvestComments(ctx, 42, []models.Post{{PostID: 10, OwnerID: 42}})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, int64(2), comments[0].ID)
}

func TestHarvestCommentsAuthorTokenExpired(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	fx.api.comments[10] = []wireComment{
		{ID: 1, FromID: 33, PostID: 10, Date: 1700000001, Text: "authored"},
	}
	fx.api.expireUsers = true

	_, err := fx.harvester.HarvestComments(ctx, 42, []models.Post{{PostID: 10, OwnerID: 42}})
	require.Error(t, err)
	assert.True(t, vk.IsAuthError(err), "credential expiry during author resolution is fatal")

	_, _, _, stored := fx.store.Counts()
	assert.Zero(t, stored, "a comment must not be committed authorless")
}

func TestHarvestCommentsAuthorBudgetExhaustedDropsComment(t *testing.T) {
	// budget covers the comment page but not the author lookup
	fx := newFixture(t, 1, 100)
	ctx := context.Background()

	fx.api.users[33] = wireUser{ID: 33, FirstName: "Ann"}
	fx.api.comments[10] = []wireComment{
		{ID: 1, FromID: 33, PostID: 10, Date: 1700000001, Text: "authored"},
	}

	comments, err := fx.harvester.HarvestComments(ctx, 42, []models.Post{{PostID: 10, OwnerID: 42}})
	require.NoError(t, err)
	assert.Empty(t, comments)

	exists, serr := fx.store.CommentExists(ctx, 1, 42)
	require.NoError(t, serr)
	assert.False(t, exists, "the dropped comment stays harvestable for the next run")
}

func TestHarvestCommentsBudgetShared(t *testing.T) {
	fx := newFixture(t, 2, 100)
	ctx := context.Background()

	fx.api.comments[10] = []wireComment{{ID: 1, PostID: 10, Date: 1}}
	fx.api.comments[11] = []wireComment{{ID: 2, PostID: 11, Date: 2}}
	fx.api.comments[12] = []wireComment{{ID: 3, PostID: 12, Date: 3}}

	posts := []models.Post{
		{PostID: 10, OwnerID: 42},
		{PostID: 11, OwnerID: 42},
		{PostID: 12, OwnerID: 42},
	}

	comments, err := fx.harvester.HarvestComments(ctx, 42, posts)
	require.NoError(t, err)

	assert.Len(t, comments, 2, "the third post is left for the next run")
	assert.Equal(t, 2, fx.budget.Spent())

	_, _, _, stored := fx.store.Counts()
	assert.Equal(t, 2, stored, "harvested comments are flushed before the budget stop")
}

func TestRunFullCycle(t *testing.T) {
	fx := newFixture(t, 50, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42, Name: "Feed", ScreenName: "feed"}
	fx.api.users[33] = wireUser{ID: 33, FirstName: "Ann"}
	fx.api.posts[42] = []wirePost{
		post(2, 1700000200, 1),
		post(1, 1700000100, 0),
	}
	fx.api.comments[2] = []wireComment{
		{ID: 7, FromID: 33, PostID: 2, Date: 1700000201, Text: "nice"},
	}

	summary, err := fx.harvester.Run(ctx, []int64{42})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Feeds)
	assert.Equal(t, 2, summary.NewPosts)
	assert.Equal(t, 1, summary.NewComments)
	assert.Equal(t, fx.budget.Spent(), summary.SpentBudget)

	groups, users, posts, comments := fx.store.Counts()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, users)
	assert.Equal(t, 2, posts)
	assert.Equal(t, 1, comments)

	// a second run over unchanged data finds nothing new
	summary, err = fx.harvester.Run(ctx, []int64{42})
	require.NoError(t, err)
	assert.Zero(t, summary.NewPosts)
	assert.Zero(t, summary.NewComments)
}

func TestRunExpiredTokenStopsRemainingFeeds(t *testing.T) {
	fx := newFixture(t, 50, 100)
	ctx := context.Background()

	fx.api.groups[42] = wireGroup{ID: 42}
	fx.api.posts[42] = []wirePost{post(1, 1700000100, 0)}
	fx.api.groups[43] = wireGroup{ID: 43}
	fx.api.posts[43] = []wirePost{post(9, 1700000900, 0)}

	summary, err := fx.harvester.Run(ctx, []int64{42})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewPosts)

	fx.api.mu.Lock()
	fx.api.expireToken = true
	fx.api.mu.Unlock()

	summary, err = fx.harvester.Run(ctx, []int64{43})
	require.Error(t, err)
	assert.True(t, vk.IsAuthError(err))
	assert.Zero(t, summary.NewPosts)

	// feed 42's rows from the first run survive
	max, merr := fx.store.MaxPostID(ctx, 42)
	require.NoError(t, merr)
	assert.Equal(t, int64(1), max)
}

func TestRunNonFatalFeedFailureContinues(t *testing.T) {
	fx := newFixture(t, 50, 100)
	ctx := context.Background()

	// feed 41 has no group payload, so resolution fails; feed 42 is healthy
	fx.api.groups[42] = wireGroup{ID: 42}
	fx.api.posts[42] = []wirePost{post(1, 1700000100, 0)}

	summary, err := fx.harvester.Run(ctx, []int64{41, 42})
	require.NoError(t, err, "a broken feed does not abort the run")
	assert.Equal(t, 2, summary.Feeds)
	assert.Equal(t, 1, summary.NewPosts)
}

func TestBackfillComments(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	fx.api.comments[10] = []wireComment{
		{ID: 1, PostID: 10, Date: 1700000001, Text: "already stored"},
		{ID: 2, PostID: 10, Date: 1700000002, Text: "missed last run"},
	}
	fx.api.comments[11] = []wireComment{
		{ID: 3, PostID: 11, Date: 1700000003, Text: "never harvested"},
	}

	// posts from an earlier run; post 10's comments were cut off mid-page
	require.NoError(t, fx.store.InsertPosts(ctx, []models.Post{
		{PostID: 10, OwnerID: 42},
		{PostID: 11, OwnerID: 42},
	}))
	require.NoError(t, fx.store.InsertComments(ctx, []models.Comment{
		{ID: 1, OwnerID: 42, PostID: 10},
	}))

	comments, err := fx.harvester.BackfillComments(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, comments, 2, "only the missing comments are new")

	_, _, _, stored := fx.store.Counts()
	assert.Equal(t, 3, stored)
}

func TestBackfillCommentsEmptyStore(t *testing.T) {
	fx := newFixture(t, 20, 100)

	comments, err := fx.harvester.BackfillComments(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.Zero(t, fx.api.commentCalls)
}

func TestRefreshCommentCounts(t *testing.T) {
	fx := newFixture(t, 20, 2)
	ctx := context.Background()

	fx.api.posts[42] = []wirePost{
		post(4, 1700000400, 9),
		post(3, 1700000300, 5),
		post(2, 1700000200, 1),
		post(1, 1700000100, 0), // older than anything stored
	}

	require.NoError(t, fx.store.InsertPosts(ctx, []models.Post{
		{PostID: 4, OwnerID: 42, Date: time.Unix(1700000400, 0), CommentCount: 2},
		{PostID: 3, OwnerID: 42, Date: time.Unix(1700000300, 0), CommentCount: 5},
		{PostID: 2, OwnerID: 42, Date: time.Unix(1700000200, 0), CommentCount: 0},
	}))

	updated, err := fx.harvester.RefreshCommentCounts(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
}

func TestRefreshCommentCountsEmptyStore(t *testing.T) {
	fx := newFixture(t, 20, 100)

	updated, err := fx.harvester.RefreshCommentCounts(context.Background(), 42)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, fx.api.wallCalls, "nothing stored means no wall request at all")
}

func TestRefreshCommentCountsExpiredToken(t *testing.T) {
	fx := newFixture(t, 20, 100)
	ctx := context.Background()

	require.NoError(t, fx.store.InsertPosts(ctx, []models.Post{
		{PostID: 1, OwnerID: 42, Date: time.Unix(1700000100, 0)},
	}))
	fx.api.expireToken = true

	_, err := fx.harvester.RefreshCommentCounts(ctx, 42)
	require.Error(t, err)
	assert.True(t, vk.IsAuthError(err))
}
