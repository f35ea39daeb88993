package postgres

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/types"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func postRows() *pgxmock.Rows {
	return pgxmock.NewRows(postColumns)
}

func addPost(rows *pgxmock.Rows, id int64, text string, created time.Time) *pgxmock.Rows {
	sub := "aita"
	return rows.AddRow(id, "mb-"+text, nil, text, "clawd",
		&sub, nil, nil,
		3, 1, 2, &created,
		[]string{"ai"}, nil, "moltbook", created)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()

	Convey("Given a posts table", t, func() {
		mock := newMock(t)
		store := New(mock)
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		Convey("When more rows exist than the limit", func() {
			rows := postRows()
			for i := 0; i < 3; i++ {
				addPost(rows, int64(i+1), "p"+string(rune('a'+i)), now.Add(-time.Duration(i)*time.Minute))
			}
			mock.ExpectQuery(`SELECT .* FROM posts WHERE author_name = \$1 AND submolt_name = \$2 AND moltbook_created_at < \$3 AND display_text ILIKE \$4 ORDER BY moltbook_created_at DESC NULLS LAST, created_at DESC LIMIT 3`).
				WithArgs("clawd", "aita", now, "%lobster%").
				WillReturnRows(rows)

			page, err := store.ListPosts(ctx, types.PostQuery{
				Agent: "clawd", Submolt: "aita", Before: &now, Q: " lobster ", Limit: 2,
			})

			Convey("Then the extra row only sets hasMore", func() {
				So(err, ShouldBeNil)
				So(page.Count, ShouldEqual, 2)
				So(page.HasMore, ShouldBeTrue)
				So(page.Posts[0].DisplayText, ShouldEqual, "pa")
				So(*page.Posts[0].SubmoltName, ShouldEqual, "aita")
				So(page.Posts[0].Title, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When no filters or limit are given", func() {
			mock.ExpectQuery(`SELECT .* FROM posts ORDER BY .* LIMIT 51`).WillReturnRows(postRows())
			page, err := store.ListPosts(ctx, types.PostQuery{})

			Convey("Then the default limit applies and the page is empty", func() {
				So(err, ShouldBeNil)
				So(page.Posts, ShouldNotBeNil)
				So(page.Count, ShouldEqual, 0)
				So(page.HasMore, ShouldBeFalse)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the database fails", func() {
			mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection reset"))
			_, err := store.ListPosts(ctx, types.PostQuery{Limit: 500})
			So(errors.Is(err, ErrQuery), ShouldBeTrue)
		})
	})
}

func TestClampLimit(t *testing.T) {
	Convey("Limits default to 50 and cap at 100", t, func() {
		So(ClampLimit(0), ShouldEqual, 50)
		So(ClampLimit(-3), ShouldEqual, 50)
		So(ClampLimit(10), ShouldEqual, 10)
		So(ClampLimit(1000), ShouldEqual, 100)
	})
}

func TestGetAgent(t *testing.T) {
	ctx := context.Background()

	Convey("Given an agents table", t, func() {
		mock := newMock(t)
		store := New(mock)

		Convey("A known agent is returned", func() {
			desc := "a crab"
			seen := time.Now().UTC()
			mock.ExpectQuery(`SELECT .* FROM agents WHERE name = \$1 LIMIT 1`).
				WithArgs("clawd").
				WillReturnRows(pgxmock.NewRows(agentColumns).
					AddRow("clawd", &desc, 42, 7, 3, nil, nil, false, 12, &seen, &seen))

			a, err := store.GetAgent(ctx, "clawd")
			So(err, ShouldBeNil)
			So(a.Name, ShouldEqual, "clawd")
			So(*a.Description, ShouldEqual, "a crab")
			So(a.Karma, ShouldEqual, 42)
			So(a.PostCount, ShouldEqual, 12)
		})

		Convey("An unknown agent is ErrNotFound", func() {
			mock.ExpectQuery(`SELECT .* FROM agents`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)
			_, err := store.GetAgent(ctx, "ghost")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestGraphInputs(t *testing.T) {
	Convey("Given posts and agents", t, func() {
		mock := newMock(t)
		mock.MatchExpectationsInOrder(false)
		store := New(mock)

		mock.ExpectQuery(`SELECT author_name, submolt_name FROM posts WHERE submolt_name IS NOT NULL LIMIT 5000`).
			WillReturnRows(pgxmock.NewRows([]string{"author_name", "submolt_name"}).
				AddRow("a", "x").AddRow("b", "x"))
		mock.ExpectQuery(`SELECT name, karma, follower_count, COALESCE\(description, ''\), post_count FROM agents LIMIT 1000`).
			WillReturnRows(pgxmock.NewRows([]string{"name", "karma", "follower_count", "description", "post_count"}).
				AddRow("a", 5, 1, "", 2))

		memberships, agents, err := store.GraphInputs(context.Background())
		So(err, ShouldBeNil)
		So(memberships, ShouldResemble, []types.Membership{{Author: "a", Submolt: "x"}, {Author: "b", Submolt: "x"}})
		So(agents, ShouldHaveLength, 1)
		So(agents[0].Karma, ShouldEqual, 5)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

// upsertArgs matches the 18 posts columns, pinning the conflict key,
// display text and source.
func upsertArgs(externalID, text, source string) []interface{} {
	args := []interface{}{externalID}
	for i := 0; i < 2; i++ {
		args = append(args, pgxmock.AnyArg())
	}
	args = append(args, text)
	for i := 0; i < 13; i++ {
		args = append(args, pgxmock.AnyArg())
	}
	return append(args, source)
}

func TestPersistPost(t *testing.T) {
	ctx := context.Background()

	Convey("Given an agent-network post", t, func() {
		mock := newMock(t)
		store := New(mock)
		created := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
		p := model.Post{
			Source: "moltbook", Text: "Title — body", Topics: []string{"ai"}, Confidence: 0.8,
			ExternalID: "mb1", Upvotes: 4, CreatedAt: &created,
			Community: &model.Community{AgentName: "clawd", AgentID: "ag1", SubmoltName: "aita", SubmoltDisplay: "AITA", Title: "Title", Content: "body"},
		}

		Convey("A new post bumps the agent post count and touches the submolt", func() {
			mock.ExpectQuery(`INSERT INTO posts .* ON CONFLICT \(moltbook_id\) DO UPDATE`).
				WithArgs(upsertArgs("mb1", "Title — body", "moltbook")...).
				WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))
			mock.ExpectExec(`INSERT INTO agents`).
				WithArgs("ag1", "clawd", pgxmock.AnyArg(), 1).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			mock.ExpectExec(`INSERT INTO submolts`).
				WithArgs(pgxmock.AnyArg(), "aita", "AITA", pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))

			So(store.PersistPost(ctx, p), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("A repeated post refreshes without counting again", func() {
			mock.ExpectQuery(`INSERT INTO posts`).
				WithArgs(upsertArgs("mb1", "Title — body", "moltbook")...).
				WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))
			mock.ExpectExec(`INSERT INTO agents`).
				WithArgs("ag1", "clawd", pgxmock.AnyArg(), 0).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			mock.ExpectExec(`INSERT INTO submolts`).
				WithArgs(pgxmock.AnyArg(), "aita", "AITA", pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))

			So(store.PersistPost(ctx, p), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("A failed upsert is reported", func() {
			mock.ExpectQuery(`INSERT INTO posts`).
				WithArgs(upsertArgs("mb1", "Title — body", "moltbook")...).
				WillReturnError(errors.New("boom"))
			So(errors.Is(store.PersistPost(ctx, p), ErrQuery), ShouldBeTrue)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("A post without an external id is skipped", func() {
			p.ExternalID = ""
			So(store.PersistPost(ctx, p), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestMigrations(t *testing.T) {
	Convey("The embedded migrations are goose-annotated", t, func() {
		fsys, err := MigrationFS()
		So(err, ShouldBeNil)
		raw, err := fs.ReadFile(fsys, "00001_init.sql")
		So(err, ShouldBeNil)
		sql := string(raw)
		So(strings.Contains(sql, "-- +goose Up"), ShouldBeTrue)
		So(strings.Contains(sql, "-- +goose Down"), ShouldBeTrue)
		So(strings.Contains(sql, "moltbook_id         TEXT NOT NULL UNIQUE"), ShouldBeTrue)
	})

	Convey("A missing DSN is not configured", t, func() {
		_, err := NewPool(context.Background(), "")
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
	})
}
