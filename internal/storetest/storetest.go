// Package storetest is a conformance suite for store backends. Each backend
// runs it from its own tests with a factory returning fresh, empty stores.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
)

// Factory returns empty stores for one test.
type Factory func(t *testing.T) store.Stores

// Run exercises every store contract against the backend built by newStores.
func Run(t *testing.T, newStores Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Stores)
	}{
		{"CreateThenFindByID", testCreateThenFindByID},
		{"CreateWithoutTags", testCreateWithoutTags},
		{"CreateDuplicateTagNames", testCreateDuplicateTagNames},
		{"FindByIDMissing", testFindByIDMissing},
		{"CreateManyPreservesOrder", testCreateManyPreservesOrder},
		{"CreateManyEmpty", testCreateManyEmpty},
		{"CreateManyBadDateWritesNothing", testCreateManyBadDateWritesNothing},
		{"TagFindOrCreateBySlug", testTagFindOrCreateBySlug},
		{"TagConcurrentFirstUse", testTagConcurrentFirstUse},
		{"ConcurrentRecordsWithOverlappingTags", testConcurrentRecordsWithOverlappingTags},
		{"TagsSharedAcrossUsers", testTagsSharedAcrossUsers},
		{"FilterOwnedWanted", testFilterOwnedWanted},
		{"RandomByUser", testRandomByUser},
		{"Delete", testDelete},
		{"TokenLifecycle", testTokenLifecycle},
		{"TokenRevokeOwnership", testTokenRevokeOwnership},
		{"TokenDeleteAllByUser", testTokenDeleteAllByUser},
		{"UserUniqueEmail", testUserUniqueEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStores(t))
		})
	}
}

// KindOfBlue is the reference record input used across the suite.
func KindOfBlue() models.RecordInput {
	return models.RecordInput{
		Title:       "Kind of Blue",
		Artist:      "Miles Davis",
		ReleaseDate: "1959-08-17",
		CoverURL:    "https://x/y.jpg",
		Tags:        []string{"Jazz", "70's Music"},
	}
}

// MustUser creates a user with a unique email derived from name.
func MustUser(t *testing.T, s store.Stores, name string) int64 {
	t.Helper()
	u, err := s.Users.Create(context.Background(), models.User{
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return u.ID
}

func input(title string, owned, wanted bool, tags ...string) models.RecordInput {
	return models.RecordInput{
		Title:       title,
		Artist:      "Various",
		ReleaseDate: "2001-01-01",
		CoverURL:    "https://img.example/" + title + ".jpg",
		Owned:       models.Bool(owned),
		Wanted:      models.Bool(wanted),
		Tags:        tags,
	}
}

func slugs(tags []models.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Slug
	}
	return out
}

func titles(recs []models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func testCreateThenFindByID(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "miles")

	in := KindOfBlue()
	in.DiscogsURL = models.String("https://www.discogs.com/release/1")
	in.Owned = models.Bool(true)

	created, err := s.Records.Create(ctx, user, in)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := s.Records.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Kind of Blue", got.Title)
	assert.Equal(t, "Miles Davis", got.Artist)
	assert.Equal(t, "1959-08-17", got.ReleaseDate.String())
	assert.Equal(t, "https://x/y.jpg", got.CoverURL)
	require.NotNil(t, got.DiscogsURL)
	assert.Equal(t, "https://www.discogs.com/release/1", *got.DiscogsURL)
	assert.Nil(t, got.SpotifyURL)
	assert.True(t, got.Owned)
	assert.False(t, got.Wanted)
	assert.Equal(t, user, got.UserID)
	assert.ElementsMatch(t, []string{"jazz", "70s-music"}, slugs(got.Tags))
	assert.ElementsMatch(t, slugs(created.Tags), slugs(got.Tags))
}

func testCreateWithoutTags(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "plain")

	in := KindOfBlue()
	in.Tags = nil

	created, err := s.Records.Create(ctx, user, in)
	require.NoError(t, err)

	got, err := s.Records.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func testCreateDuplicateTagNames(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "dupes")

	in := KindOfBlue()
	in.Tags = []string{"Jazz", "jazz", "JAZZ", "Modal"}

	created, err := s.Records.Create(ctx, user, in)
	require.NoError(t, err)

	got, err := s.Records.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz", "modal"}, slugs(got.Tags))
}

func testFindByIDMissing(t *testing.T, s store.Stores) {
	got, err := s.Records.FindByID(context.Background(), 987654)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testCreateManyPreservesOrder(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "batch")

	inputs := []models.RecordInput{
		input("Zeta", true, false, "Ambient"),
		input("Alpha", false, true),
		input("Mu", true, true, "Ambient", "Drone"),
		input("Beta", false, false, "Drone"),
	}

	created, err := s.Records.CreateMany(ctx, user, inputs)
	require.NoError(t, err)
	require.Len(t, created, len(inputs))
	assert.Equal(t, []string{"Zeta", "Alpha", "Mu", "Beta"}, titles(created))

	for i, rec := range created {
		got, err := s.Records.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, inputs[i].Title, got.Title)
		assert.Equal(t, inputs[i].IsOwned(), got.Owned, "record %d owned", i)
		assert.Equal(t, inputs[i].IsWanted(), got.Wanted, "record %d wanted", i)

		want := make([]string, len(inputs[i].Tags))
		for j, name := range inputs[i].Tags {
			want[j] = models.Slugify(name)
		}
		assert.ElementsMatch(t, want, slugs(got.Tags), "record %d tags", i)
	}
}

func testCreateManyEmpty(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "empty")

	created, err := s.Records.CreateMany(ctx, user, nil)
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)

	all, err := s.Records.FindAllByUser(ctx, user, models.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCreateManyBadDateWritesNothing(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "atomic")

	bad := input("Broken", true, false, "Noise")
	bad.ReleaseDate = "not-a-date"

	_, err := s.Records.CreateMany(ctx, user, []models.RecordInput{input("Fine", true, false), bad})
	require.Error(t, err)

	all, err := s.Records.FindAllByUser(ctx, user, models.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testTagFindOrCreateBySlug(t *testing.T, s store.Stores) {
	ctx := context.Background()

	first, err := s.Tags.FindOrCreate(ctx, "Jazz")
	require.NoError(t, err)
	second, err := s.Tags.FindOrCreate(ctx, "jazz")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jazz", second.Name)
	assert.Equal(t, "jazz", second.Slug)

	all, err := s.Tags.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testTagConcurrentFirstUse(t *testing.T, s store.Stores) {
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag, err := s.Tags.FindOrCreate(ctx, "Shoegaze")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = tag.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "worker %d", i)
		assert.Equal(t, ids[0], ids[i], "worker %d", i)
	}

	all, err := s.Tags.List(ctx)
	require.NoError(t, err)
	count := 0
	for _, tag := range all {
		if tag.Slug == "shoegaze" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func testConcurrentRecordsWithOverlappingTags(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "overlap")

	forward := []string{"Dub", "Ska", "Rocksteady"}
	reverse := []string{"Rocksteady", "Ska", "Dub"}

	const rounds = 6
	errs := make([]error, rounds*2)
	created := make([]*models.Record, rounds*2)

	var wg sync.WaitGroup
	for i := 0; i < rounds*2; i++ {
		names := forward
		if i%2 == 1 {
			names = reverse
		}
		wg.Add(1)
		go func(i int, names []string) {
			defer wg.Done()
			if i%3 == 0 {
				recs, err := s.Records.CreateMany(ctx, user, []models.RecordInput{
					input(fmt.Sprintf("Batch %d", i), true, false, names...),
				})
				if err == nil {
					created[i] = &recs[0]
				}
				errs[i] = err
				return
			}
			created[i], errs[i] = s.Records.Create(ctx, user, input(fmt.Sprintf("Single %d", i), true, false, names...))
		}(i, names)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i], "writer %d", i)
		require.Len(t, created[i].Tags, 3, "writer %d", i)
	}
	assert.Equal(t, "dub", created[0].Tags[0].Slug)
	assert.Equal(t, "rocksteady", created[1].Tags[0].Slug)

	all, err := s.Tags.List(ctx)
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, tag := range all {
		counts[tag.Slug]++
	}
	assert.Equal(t, map[string]int{"dub": 1, "rocksteady": 1, "ska": 1}, counts)

	recs, err := s.Records.FindAllByUser(ctx, user, models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, rounds*2)
}

func testTagsSharedAcrossUsers(t *testing.T, s store.Stores) {
	ctx := context.Background()
	a := MustUser(t, s, "tag-a")
	b := MustUser(t, s, "tag-b")

	ra, err := s.Records.Create(ctx, a, input("One", true, false, "Post-Rock"))
	require.NoError(t, err)
	rb, err := s.Records.Create(ctx, b, input("Two", true, false, "post rock"))
	require.NoError(t, err)

	require.Len(t, ra.Tags, 1)
	require.Len(t, rb.Tags, 1)
	assert.Equal(t, ra.Tags[0].ID, rb.Tags[0].ID)
	assert.Equal(t, "Post-Rock", rb.Tags[0].Name)
}

func testFilterOwnedWanted(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "filter")
	other := MustUser(t, s, "other")

	_, err := s.Records.CreateMany(ctx, user, []models.RecordInput{
		input("owned-only", true, false),
		input("wanted-only", false, true),
		input("both", true, true),
		input("neither", false, false),
	})
	require.NoError(t, err)
	_, err = s.Records.Create(ctx, other, input("someone-else", true, false))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter models.RecordFilter
		want   []string
	}{
		{"no filter", models.RecordFilter{}, []string{"owned-only", "wanted-only", "both", "neither"}},
		{"owned", models.RecordFilter{Owned: models.Bool(true)}, []string{"owned-only", "both"}},
		{"not owned", models.RecordFilter{Owned: models.Bool(false)}, []string{"wanted-only", "neither"}},
		{"wanted", models.RecordFilter{Wanted: models.Bool(true)}, []string{"wanted-only", "both"}},
		{"owned and not wanted", models.RecordFilter{Owned: models.Bool(true), Wanted: models.Bool(false)}, []string{"owned-only"}},
		{"owned and wanted", models.RecordFilter{Owned: models.Bool(true), Wanted: models.Bool(true)}, []string{"both"}},
		{"neither", models.RecordFilter{Owned: models.Bool(false), Wanted: models.Bool(false)}, []string{"neither"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Records.FindAllByUser(ctx, user, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(got))
			for _, rec := range got {
				assert.Equal(t, user, rec.UserID)
			}
		})
	}

	none, err := s.Records.FindAllByUser(ctx, 424242, models.RecordFilter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testRandomByUser(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "random")

	got, err := s.Records.RandomByUser(ctx, user, models.RecordFilter{})
	require.NoError(t, err)
	assert.Nil(t, got)

	single, err := s.Records.Create(ctx, user, input("only-owned", true, false, "Dub"))
	require.NoError(t, err)
	_, err = s.Records.Create(ctx, user, input("only-wanted", false, true))
	require.NoError(t, err)

	owned := models.RecordFilter{Owned: models.Bool(true)}
	for i := 0; i < 5; i++ {
		got, err := s.Records.RandomByUser(ctx, user, owned)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, single.ID, got.ID)
		assert.Equal(t, []string{"dub"}, slugs(got.Tags))
	}

	for i := 0; i < 10; i++ {
		got, err := s.Records.RandomByUser(ctx, user, models.RecordFilter{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Contains(t, []string{"only-owned", "only-wanted"}, got.Title)
	}
}

func testDelete(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "deleter")

	rec, err := s.Records.Create(ctx, user, KindOfBlue())
	require.NoError(t, err)
	keep, err := s.Records.Create(ctx, user, input("Keep", true, false, "Jazz"))
	require.NoError(t, err)

	require.NoError(t, s.Records.Delete(ctx, rec.ID))

	got, err := s.Records.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.Records.Delete(ctx, rec.ID), store.ErrNotFound)

	// Tags survive for reuse.
	still, err := s.Records.FindByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz"}, slugs(still.Tags))

	tags, err := s.Tags.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func testTokenLifecycle(t *testing.T, s store.Stores) {
	ctx := context.Background()
	user := MustUser(t, s, "sharer")

	_, err := s.Tokens.FindByUser(ctx, user)
	assert.ErrorIs(t, err, store.ErrNotFound)

	tok, err := s.Tokens.Create(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, user, tok.UserID)
	assert.False(t, tok.CreatedAt.IsZero())

	_, err = s.Tokens.Create(ctx, user)
	assert.ErrorIs(t, err, store.ErrConflict)

	byToken, err := s.Tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, tok.ID, byToken.ID)
	assert.Equal(t, user, byToken.UserID)

	byUser, err := s.Tokens.FindByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, tok.Token, byUser.Token)

	unknown, err := s.Tokens.FindByToken(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	require.NoError(t, s.Tokens.Delete(ctx, tok.ID))
	assert.ErrorIs(t, s.Tokens.Delete(ctx, tok.ID), store.ErrNotFound)

	_, err = s.Tokens.FindByUser(ctx, user)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTokenRevokeOwnership(t *testing.T, s store.Stores) {
	ctx := context.Background()
	alice := MustUser(t, s, "alice")
	bob := MustUser(t, s, "bob")

	tok, err := s.Tokens.Create(ctx, alice)
	require.NoError(t, err)

	err = s.Tokens.Revoke(ctx, tok.Token, bob)
	assert.ErrorIs(t, err, store.ErrNotOwner)

	intact, err := s.Tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	require.NotNil(t, intact, "token must survive a revoke by another user")

	require.NoError(t, s.Tokens.Revoke(ctx, tok.Token, alice))

	gone, err := s.Tokens.FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, s.Tokens.Revoke(ctx, tok.Token, alice), store.ErrNotFound)
}

func testTokenDeleteAllByUser(t *testing.T, s store.Stores) {
	ctx := context.Background()
	users := make([]int64, 3)
	for i := range users {
		users[i] = MustUser(t, s, fmt.Sprintf("bulk-%d", i))
		_, err := s.Tokens.Create(ctx, users[i])
		require.NoError(t, err)
	}

	require.NoError(t, s.Tokens.DeleteAllByUser(ctx, users[1]))
	require.NoError(t, s.Tokens.DeleteAllByUser(ctx, users[1]))

	_, err := s.Tokens.FindByUser(ctx, users[1])
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, u := range []int64{users[0], users[2]} {
		_, err := s.Tokens.FindByUser(ctx, u)
		assert.NoError(t, err)
	}

	// A revoked user can be issued a new token.
	_, err = s.Tokens.Create(ctx, users[1])
	assert.NoError(t, err)
}

func testUserUniqueEmail(t *testing.T, s store.Stores) {
	ctx := context.Background()
	id := MustUser(t, s, "unique")

	_, err := s.Users.Create(ctx, models.User{Email: "unique@example.com", Username: "again", PasswordHash: "y"})
	assert.ErrorIs(t, err, store.ErrConflict)

	byEmail, err := s.Users.FindByEmail(ctx, "unique@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "x", byEmail.PasswordHash)

	byID, err := s.Users.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "unique", byID.Username)

	_, err = s.Users.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
