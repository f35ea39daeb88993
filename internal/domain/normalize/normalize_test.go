package normalize_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/okian/lobstream/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Given raw HTML text", t, func() {
		raw := "<p>Hello &amp; <b>welcome</b></p><p>to   the&nbsp;relay &#39;today&#39;</p>"

		Convey("When normalized", func() {
			res, ok := normalize.Normalize(raw, int64(1700000000000), 10)

			Convey("Then markup is stripped, entities decoded and whitespace collapsed", func() {
				So(ok, ShouldBeTrue)
				So(res.Text, ShouldEqual, "Hello & welcome to the relay 'today'")
				So(res.TimestampMs, ShouldEqual, int64(1700000000000))
			})
		})

		Convey("When the result is shorter than the minimum", func() {
			_, ok := normalize.Normalize("<b>hi</b>", nil, 10)
			So(ok, ShouldBeFalse)
		})

		Convey("When the input is only markup", func() {
			_, ok := normalize.Normalize("<br><img src=x>", nil, 0)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a very long text", t, func() {
		raw := strings.Repeat("é", normalize.MaxTextLength+50)
		res, ok := normalize.Normalize(raw, nil, 1)

		Convey("Then it is truncated to the character cap", func() {
			So(ok, ShouldBeTrue)
			So([]rune(res.Text), ShouldHaveLength, normalize.MaxTextLength)
		})
	})

	Convey("Given text that was already decoded", t, func() {
		res, ok := normalize.NormalizePlain("  wrap it in a <div>\n and a <script> tag  ", nil, 5)

		Convey("Then angle brackets are kept and whitespace collapsed", func() {
			So(ok, ShouldBeTrue)
			So(res.Text, ShouldEqual, "wrap it in a <div> and a <script> tag")
		})
	})
}

func TestStripHTML(t *testing.T) {
	Convey("Given markup variants", t, func() {
		So(normalize.StripHTML("plain text"), ShouldEqual, "plain text")
		So(normalize.StripHTML("a<br>b"), ShouldEqual, "a b")
		So(normalize.StripHTML("long<wbr>word"), ShouldEqual, "longword")
		So(normalize.StripHTML("x<script>alert(1)</script>y"), ShouldEqual, "xy")
		So(normalize.StripHTML(`<a href="#p1" class="quotelink">&gt;&gt;123456</a>`), ShouldEqual, ">>123456")
		So(normalize.DecodeEntities("&lt;tag&gt; &quot;q&quot; &#x41;"), ShouldEqual, `<tag> "q" A`)
	})
}

func TestTruncate(t *testing.T) {
	Convey("Truncate appends the suffix only when cutting", t, func() {
		So(normalize.Truncate("abcdef", 3, "..."), ShouldEqual, "abc...")
		So(normalize.Truncate("abc", 3, "..."), ShouldEqual, "abc")
		So(normalize.Truncate("abc", 0, "..."), ShouldEqual, "abc")
	})
}

func TestTimestampMs(t *testing.T) {
	Convey("Given raw timestamps", t, func() {
		now := time.UnixMilli(42)

		So(normalize.TimestampMs(int64(1000), now), ShouldEqual, int64(1000))
		So(normalize.TimestampMs(1000.9, now), ShouldEqual, int64(1000))
		So(normalize.TimestampMs(json.Number("2000"), now), ShouldEqual, int64(2000))
		So(normalize.TimestampMs("3000", now), ShouldEqual, int64(3000))
		So(normalize.TimestampMs("2024-01-01T00:00:00Z", now), ShouldEqual, int64(1704067200000))
		So(normalize.TimestampMs("not a date", now), ShouldEqual, int64(42))
		So(normalize.TimestampMs(nil, now), ShouldEqual, int64(42))
	})
}

func TestIsMostlyEnglish(t *testing.T) {
	Convey("Given texts in several scripts", t, func() {
		So(normalize.IsMostlyEnglish("The quick brown fox"), ShouldBeTrue)
		So(normalize.IsMostlyEnglish("Café résumé naïve"), ShouldBeTrue)
		So(normalize.IsMostlyEnglish("これは日本語のテキストです"), ShouldBeFalse)
		So(normalize.IsMostlyEnglish("Привет мир, hi"), ShouldBeFalse)
		So(normalize.IsMostlyEnglish("12345 !!! 🚀🚀"), ShouldBeFalse)
		So(normalize.IsMostlyEnglish(""), ShouldBeFalse)
	})

	Convey("Given text exactly at seventy percent Latin", t, func() {
		So(normalize.IsMostlyEnglish("abcdefg日本語"), ShouldBeTrue)
		So(normalize.IsMostlyEnglish("abcdef日本語"), ShouldBeFalse)
	})
}

func TestSpam(t *testing.T) {
	Convey("Given structured or machine-like payloads", t, func() {
		reason, spam := normalize.Spam(`{"a":[1,2],"b":{"c":[3]},"d":[{"e":1}]} more json payload here`)
		So(spam, ShouldBeTrue)
		So(reason, ShouldEqual, normalize.SpamBrackets)

		reason, spam = normalize.Spam("send tips to 0x52908400098527886E0F7030069857D2E4169EE7 thanks")
		So(spam, ShouldBeTrue)
		So(reason, ShouldEqual, normalize.SpamWallet)

		reason, spam = normalize.Spam("status=ok latency=12 region=us-east node=a7 build=1.2.3 mode=fast")
		So(spam, ShouldBeTrue)
		So(reason, ShouldEqual, normalize.SpamKeyValue)

		reason, spam = normalize.Spam("if (x > 0 && y < 1) $z = a | b; else $q = c & d; done;;")
		So(spam, ShouldBeTrue)
		So(reason, ShouldEqual, normalize.SpamCodeLike)
	})

	Convey("Given ordinary prose", t, func() {
		_, spam := normalize.Spam("I spent the whole weekend thinking about what it means for an agent to have a home.")
		So(spam, ShouldBeFalse)
	})
}
