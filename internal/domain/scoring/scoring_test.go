package scoring_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
	delay  time.Duration
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestParseResponse(t *testing.T) {
	Convey("Given a reply wrapped in prose and a markdown fence", t, func() {
		reply := "Here you go:\n```json\n[{\"relevance\":0.9,\"sentiment\":\"Hopeful\"},{\"relevance_score\":0.2,\"sentiment\":\"angry\"}]\n```\nDone."

		Convey("When parsed for three posts", func() {
			res, err := scoring.ParseResponse(reply, 3)

			Convey("Then both spellings are accepted and the tail is padded", func() {
				So(err, ShouldBeNil)
				So(res, ShouldHaveLength, 3)
				So(*res[0].Relevance, ShouldEqual, 0.9)
				So(res[0].Sentiment, ShouldEqual, "hopeful")
				So(*res[1].Relevance, ShouldEqual, 0.2)
				So(res[2].Relevance, ShouldBeNil)
			})
		})
	})

	Convey("Given entries with non-numeric relevance", t, func() {
		res, err := scoring.ParseResponse(`[{"relevance":"high"}, null, 7, {"relevance":0}]`, 4)
		So(err, ShouldBeNil)
		So(res[0].Relevance, ShouldBeNil)
		So(res[1].Relevance, ShouldBeNil)
		So(res[2].Relevance, ShouldBeNil)
		So(*res[3].Relevance, ShouldEqual, 0)
	})

	Convey("Given a longer array than expected", t, func() {
		res, err := scoring.ParseResponse(`[{"relevance":1},{"relevance":1},{"relevance":1}]`, 2)
		So(err, ShouldBeNil)
		So(res, ShouldHaveLength, 2)
	})

	Convey("Given replies without a usable array", t, func() {
		_, err := scoring.ParseResponse("I cannot help with that.", 2)
		So(errors.Is(err, scoring.ErrNoArray), ShouldBeTrue)

		_, err = scoring.ParseResponse("[1] first [2] second", 2)
		So(errors.Is(err, scoring.ErrMalformed), ShouldBeTrue)
	})
}

func TestBuildUserPrompt(t *testing.T) {
	Convey("Posts are numbered from one", t, func() {
		So(scoring.BuildUserPrompt([]string{"alpha", "beta"}), ShouldEqual, "Posts:\n[1] alpha\n[2] beta")
		So(scoring.SystemPrompt, ShouldContainSubstring, "JSON array matching the input order")
	})
}

func TestNormalizeSentiment(t *testing.T) {
	Convey("Unknown sentiments become neutral", t, func() {
		So(scoring.NormalizeSentiment("SARCASTIC"), ShouldEqual, model.SentimentSarcastic)
		So(scoring.NormalizeSentiment("melancholy "), ShouldEqual, model.SentimentMelancholy)
		So(scoring.NormalizeSentiment("ecstatic"), ShouldEqual, model.SentimentNeutral)
		So(scoring.NormalizeSentiment(""), ShouldEqual, model.SentimentNeutral)
	})
}

func TestPolicy(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	Convey("Given the default inclusive policy", t, func() {
		p := scoring.DefaultPolicy()

		So(p.Decide(scoring.Result{Relevance: f(0.4)}), ShouldEqual, scoring.VerdictKeep)
		So(p.Decide(scoring.Result{Relevance: f(0.39)}), ShouldEqual, scoring.VerdictDiscard)
		So(p.Decide(scoring.Result{Relevance: f(1)}), ShouldEqual, scoring.VerdictKeep)
		So(p.Decide(scoring.Result{}), ShouldEqual, scoring.VerdictFallback)
	})

	Convey("Given an exclusive policy", t, func() {
		p := scoring.Policy{Threshold: 0.4}
		So(p.Keep(0.4), ShouldBeFalse)
		So(p.Keep(0.41), ShouldBeTrue)
	})

	Convey("Verdicts have names", t, func() {
		So(scoring.VerdictKeep.String(), ShouldEqual, "kept")
		So(scoring.VerdictDiscard.String(), ShouldEqual, "discarded")
		So(scoring.VerdictFallback.String(), ShouldEqual, "fallback")
	})
}

func TestLLMScorer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scorer with a working backend", t, func() {
		fc := &fakeCompleter{reply: `[{"relevance":0.8,"sentiment":"angry"}]`}
		s := scoring.NewLLMScorer(fc)

		res, err := s.Score(ctx, []string{"tariffs everywhere"})

		Convey("Then the prompt is sent and the reply parsed", func() {
			So(err, ShouldBeNil)
			So(fc.system, ShouldEqual, scoring.SystemPrompt)
			So(fc.user, ShouldEqual, "Posts:\n[1] tariffs everywhere")
			So(*res[0].Relevance, ShouldEqual, 0.8)
		})
	})

	Convey("Given a failing backend", t, func() {
		s := scoring.NewLLMScorer(&fakeCompleter{err: errors.New("503")}, scoring.WithSystemPrompt("custom"))
		_, err := s.Score(ctx, []string{"x"})
		So(errors.Is(err, scoring.ErrCompletion), ShouldBeTrue)
	})

	Convey("Given a slow backend", t, func() {
		s := scoring.NewLLMScorer(&fakeCompleter{delay: time.Second}, scoring.WithTimeout(20*time.Millisecond))
		_, err := s.Score(ctx, []string{"x"})
		So(err, ShouldNotBeNil)
		So(strings.Contains(err.Error(), "deadline"), ShouldBeTrue)
	})

	Convey("Given no texts", t, func() {
		res, err := scoring.NewLLMScorer(&fakeCompleter{}).Score(ctx, nil)
		So(err, ShouldBeNil)
		So(res, ShouldBeEmpty)
	})
}
