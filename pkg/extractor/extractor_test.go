package extractor

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/pkg/browser"
	errs "igharvest/pkg/errors"
	"igharvest/pkg/logger"
	"igharvest/pkg/retry"
)

func init() {
	logger.SetLogger(logger.NewNopLogger())
}

func instantPacer() *retry.Pacer {
	return retry.NewPacerWith(rand.New(rand.NewSource(7)), func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	})
}

func newDOM(f *browser.Fake) *DOM {
	return New(f, instantPacer(), DefaultOptions())
}

func TestTitle(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		require.Equal(t, titleJS, js)
		require.Equal(t, []interface{}{"/alice/"}, args)
		return map[string]interface{}{
			"topDivClass":  "x1 x2",
			"aHref":        "/alice/",
			"aSrc":         nil,
			"timeDatetime": "2024-05-01T10:00:00.000Z",
			"siblingTexts": []string{"Sunset #Beach #travel", "more #beach"},
		}, nil
	}

	title, err := newDOM(fake).Title(context.Background(), fake.Main(), "/alice/")
	require.NoError(t, err)
	require.NotNil(t, title)
	assert.Equal(t, "x1 x2", title.TopDivClass)
	assert.Equal(t, "/alice/", title.AHref)
	assert.Empty(t, title.ASrc)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", title.TimeDatetime)
	assert.Equal(t, []string{"#beach", "#travel"}, title.Hashtags)
}

func TestTitleMissing(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	title, err := newDOM(fake).Title(context.Background(), fake.Main(), "/alice/")
	assert.NoError(t, err)
	assert.Nil(t, title)
}

func TestMediaCarouselThenFallback(t *testing.T) {
	tests := []struct {
		name     string
		carousel interface{}
		single   interface{}
		want     []string
	}{
		{
			name: "carousel",
			carousel: []map[string]string{
				{"src": "https://cdn/1.jpg", "alt": "one"},
				{"src": "https://cdn/2.jpg"},
			},
			want: []string{"https://cdn/1.jpg", "https://cdn/2.jpg"},
		},
		{
			name:     "single image",
			carousel: []map[string]string{},
			single:   map[string]string{"src": "https://cdn/s.jpg", "alt": "solo", "crossorigin": "anonymous"},
			want:     []string{"https://cdn/s.jpg"},
		},
		{
			name:     "no media",
			carousel: []map[string]string{},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := browser.NewFake("https://www.instagram.com/p/abc/")
			fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
				switch js {
				case carouselJS:
					return tt.carousel, nil
				case singleImageJS:
					return tt.single, nil
				}
				return nil, nil
			}

			refs, err := newDOM(fake).Media(context.Background(), fake.Main())
			require.NoError(t, err)
			var got []string
			for _, r := range refs {
				got = append(got, r.Src)
				assert.Equal(t, r.Src, r.Attributes["src"])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngagement(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		return map[string]interface{}{"likesText": "1.2k likes", "likesNumber": 1200}, nil
	}

	e, err := newDOM(fake).Engagement(context.Background(), fake.Main())
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "1.2k likes", e.LikesText)
	assert.Equal(t, 1200.0, e.LikesNumber)
}

func TestScriptFaultIsExtractionError(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		return nil, errors.New("execution context was destroyed")
	}

	_, err := newDOM(fake).Engagement(context.Background(), fake.Main())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeExtraction))
}

func TestCommentsScrollsThenParses(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	scrollTop := 0.0
	scrolls := 0
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		switch js {
		case commentContainerJS:
			assert.Equal(t, []interface{}{3}, args)
			return map[string]interface{}{"selector": "div.comments", "count": 5}, nil
		case containerMetricsJS:
			return map[string]float64{"scrollTop": scrollTop, "scrollHeight": 5000, "clientHeight": 600}, nil
		case containerScrollJS:
			scrolls++
			scrollTop += float64(args[1].(int))
			return true, nil
		case commentsJS:
			return []map[string]interface{}{
				{"handle": "bob", "date": "2d", "comment": "nice", "likes": "3 likes", "commentImgs": []string{}},
				{"handle": "eve", "date": nil, "comment": nil, "likes": nil, "commentImgs": []string{"https://cdn/g.gif"}},
			}, nil
		}
		return nil, nil
	}

	comments, err := newDOM(fake).Comments(context.Background(), fake.Main(), 5)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "bob", comments[0].Handle)
	assert.Equal(t, "nice", comments[0].Text)
	assert.Equal(t, "3 likes", comments[0].Likes)
	assert.Equal(t, []string{"https://cdn/g.gif"}, comments[1].CommentImgs)
	assert.Empty(t, comments[1].Date)

	// 5 steps jittered by 20%
	assert.GreaterOrEqual(t, scrolls, 4)
	assert.LessOrEqual(t, scrolls, 6)
}

func TestCommentsStopWhenScrollStalls(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	scrolls := 0
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		switch js {
		case commentContainerJS:
			return map[string]interface{}{"selector": "div.comments", "count": 4}, nil
		case containerMetricsJS:
			return map[string]float64{"scrollTop": 100, "scrollHeight": 5000, "clientHeight": 600}, nil
		case containerScrollJS:
			scrolls++
			return true, nil
		case commentsJS:
			return []interface{}{}, nil
		}
		return nil, nil
	}

	comments, err := newDOM(fake).Comments(context.Background(), fake.Main(), 20)
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.Equal(t, 1, scrolls)
}

func TestCommentsWithoutContainer(t *testing.T) {
	fake := browser.NewFake("https://www.instagram.com/p/abc/")
	fake.OnEval = func(h browser.Handle, url, js string, args []interface{}) (interface{}, error) {
		switch js {
		case containerScrollJS:
			t.Fatal("scrolled without a container")
		case commentsJS:
			return []map[string]interface{}{{"handle": "bob", "date": "1w", "comment": "hi"}}, nil
		}
		return nil, nil
	}

	comments, err := newDOM(fake).Comments(context.Background(), fake.Main(), 10)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hi", comments[0].Text)
}

func TestNormalizeHashtags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"no tags here", nil},
		{"#One #two #ONE", []string{"#one", "#two"}},
		{"end.#tag_1, (#Tag_1)", []string{"#tag_1"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHashtags(tt.in), tt.in)
	}
}
