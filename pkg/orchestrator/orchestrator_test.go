package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/pkg/browser"
	"igharvest/pkg/checkpoint"
	"igharvest/pkg/logger"
	"igharvest/pkg/models"
	"igharvest/pkg/retry"
)

func init() {
	logger.SetLogger(logger.NewNopLogger())
}

const mainURL = "https://www.instagram.com/alice/"

func instantPacer() *retry.Pacer {
	return retry.NewPacerWith(rand.New(rand.NewSource(3)), func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	})
}

// stubExtractor answers every step from the tab's URL
type stubExtractor struct {
	driver browser.Driver

	titleErr    error
	commentsErr error
	panicOn     string
}

func (s *stubExtractor) url(ctx context.Context, h browser.Handle) string {
	u, _ := s.driver.URL(ctx, h)
	return u
}

func (s *stubExtractor) Title(ctx context.Context, h browser.Handle, anchor string) (*models.TitleData, error) {
	if s.titleErr != nil {
		return nil, s.titleErr
	}
	return &models.TitleData{AHref: anchor, SiblingTexts: []string{"caption of " + s.url(ctx, h)}}, nil
}

func (s *stubExtractor) Media(ctx context.Context, h browser.Handle) ([]models.MediaRef, error) {
	u := s.url(ctx, h)
	if s.panicOn != "" && u == s.panicOn {
		panic("layout exploded")
	}
	return []models.MediaRef{{Src: u + "/img.jpg"}}, nil
}

func (s *stubExtractor) Engagement(ctx context.Context, h browser.Handle) (*models.Engagement, error) {
	return &models.Engagement{LikesText: "10 likes", LikesNumber: 10}, nil
}

func (s *stubExtractor) Comments(ctx context.Context, h browser.Handle, steps int) ([]models.Comment, error) {
	if s.commentsErr != nil {
		return nil, s.commentsErr
	}
	return []models.Comment{{Handle: "bob", Text: "nice"}}, nil
}

// recordingReporter captures events and runs an optional hook per item
type recordingReporter struct {
	NopReporter
	done    []int
	skipped []string
	onDone  func(index int)
}

func (r *recordingReporter) ItemDone(index int, url string) {
	r.done = append(r.done, index)
	if r.onDone != nil {
		r.onDone(index)
	}
}

func (r *recordingReporter) ItemSkipped(index int, url, reason string) {
	r.skipped = append(r.skipped, reason)
}

type harness struct {
	fake     *browser.Fake
	x        *stubExtractor
	paths    checkpoint.Paths
	reporter *recordingReporter
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	paths := checkpoint.Paths{
		Metadata: filepath.Join(dir, "metadata.jsonl"),
		Skipped:  filepath.Join(dir, "skipped.jsonl"),
		Staging:  filepath.Join(dir, "tmp.jsonl"),
	}
	fake := browser.NewFake(mainURL)
	x := &stubExtractor{driver: fake}
	rep := &recordingReporter{}
	orch := New(fake, x, checkpoint.New(paths, nil), instantPacer(), DefaultPacing(0, 0)).WithReporter(rep)
	orch.Profile = "alice"
	return &harness{fake: fake, x: x, paths: paths, reporter: rep, orch: orch}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n
}

func TestFlushCadence(t *testing.T) {
	h := newHarness(t)
	var metadataLines, stagingLines []int
	h.reporter.onDone = func(int) {
		metadataLines = append(metadataLines, countLines(t, h.paths.Metadata))
		stagingLines = append(stagingLines, countLines(t, h.paths.Staging))
	}

	items := []string{"a", "b", "c", "d", "e"}
	report, err := h.orch.ScrapeBatches(context.Background(), items, Options{BatchSize: 2, SaveEvery: 2, TabRetries: 2})
	require.NoError(t, err)

	assert.False(t, report.Aborted)
	require.Len(t, report.Succeeded, 5)
	assert.Empty(t, report.Skipped)

	// flushed after the 2nd and 4th success, then once more at the end
	assert.Equal(t, []int{0, 2, 2, 4, 4}, metadataLines)
	assert.Equal(t, []int{1, 0, 1, 0, 1}, stagingLines)
	assert.Equal(t, 5, countLines(t, h.paths.Metadata))
	assert.Equal(t, 0, countLines(t, h.paths.Staging))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, h.reporter.done)

	for i, rec := range report.Succeeded {
		assert.Equal(t, items[i], rec.PostURL)
		assert.Equal(t, "alice", rec.Profile)
		require.NotNil(t, rec.Title)
		assert.Equal(t, "/alice/", rec.Title.AHref)
	}
	assert.Equal(t, "post_3", report.Succeeded[3].PostID)
}

func TestEveryOpenedTabIsClosed(t *testing.T) {
	h := newHarness(t)
	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c"}, Options{BatchSize: 2, SaveEvery: 5, TabRetries: 1})
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 3)
	assert.Len(t, h.fake.Closed, 3)
	assert.NotContains(t, h.fake.Closed, h.fake.Main())

	handles, _ := h.fake.Handles(context.Background())
	assert.Equal(t, []browser.Handle{h.fake.Main()}, handles)
	assert.Equal(t, h.fake.Main(), h.fake.Active())
	assert.Equal(t, h.fake.Main(), h.orch.Focused())
}

func TestDebugLeavesTabsOpen(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b"}, Options{BatchSize: 2, SaveEvery: 1, TabRetries: 1, Debug: true})
	require.NoError(t, err)

	assert.Empty(t, h.fake.Closed)
	handles, _ := h.fake.Handles(context.Background())
	assert.Len(t, handles, 3)
	assert.Equal(t, h.fake.Main(), h.fake.Active())
}

func TestTabOpenFailureIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.fake.BlockOpen = func(url string) bool { return url == "b" }

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c"}, Options{BatchSize: 3, SaveEvery: 10, TabRetries: 3})
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	skip := report.Skipped[0]
	assert.Equal(t, 1, skip.Index)
	assert.Equal(t, "b", skip.PostURL)
	assert.True(t, strings.HasPrefix(skip.Reason, "failed to open tab: "), skip.Reason)
	assert.Contains(t, skip.Reason, "href=b")

	require.Len(t, report.Succeeded, 2)
	assert.Equal(t, "a", report.Succeeded[0].PostURL)
	assert.Equal(t, "c", report.Succeeded[1].PostURL)
	assert.Equal(t, 1, countLines(t, h.paths.Skipped))
}

func TestMissingHref(t *testing.T) {
	h := newHarness(t)
	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", ""}, Options{BatchSize: 2, SaveEvery: 1, TabRetries: 1})
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, ReasonMissingHref, report.Skipped[0].Reason)
	assert.Equal(t, 1, report.Skipped[0].Index)
	assert.Equal(t, []string{ReasonMissingHref}, h.reporter.skipped)
}

func TestPartialFieldsStillSucceed(t *testing.T) {
	h := newHarness(t)
	h.x.titleErr = errors.New("no caption block")
	h.x.commentsErr = errors.New("container detached")

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a"}, Options{BatchSize: 1, SaveEvery: 1, TabRetries: 1})
	require.NoError(t, err)

	require.Len(t, report.Succeeded, 1)
	rec := report.Succeeded[0]
	assert.Nil(t, rec.Title)
	assert.NotNil(t, rec.Comments)
	assert.Empty(t, rec.Comments)
	require.Len(t, rec.Images, 1)
	assert.Equal(t, "a/img.jpg", rec.Images[0].Src)
	require.NotNil(t, rec.Likes)
	assert.Equal(t, 10.0, rec.Likes.LikesNumber)
}

func TestPanicBecomesSkip(t *testing.T) {
	h := newHarness(t)
	h.x.panicOn = "b"

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c"}, Options{BatchSize: 3, SaveEvery: 1, TabRetries: 1})
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 2)
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped[0].Reason, "layout exploded")
	assert.Len(t, h.fake.Closed, 3)
}

func TestAbortWhenNoTabsRemain(t *testing.T) {
	h := newHarness(t)
	h.fake.OnClose = func(f *browser.Fake, closed browser.Handle) {
		handles, _ := f.Handles(context.Background())
		f.Drop(handles...)
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c", "d"}, Options{BatchSize: 3, SaveEvery: 10, TabRetries: 1})
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	require.Len(t, report.Succeeded, 1)
	assert.Equal(t, "a", report.Succeeded[0].PostURL)
	// the final flush still persists what was scraped
	assert.Equal(t, 1, countLines(t, h.paths.Metadata))
	assert.Equal(t, 0, countLines(t, h.paths.Staging))
}

func TestFocusFallsBackWhenMainIsGone(t *testing.T) {
	h := newHarness(t)
	main := h.fake.Main()
	h.fake.OnClose = func(f *browser.Fake, closed browser.Handle) {
		f.Drop(main)
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b"}, Options{BatchSize: 2, SaveEvery: 1, TabRetries: 1})
	require.NoError(t, err)

	// after "a" closes main is gone, so "b" takes focus and is still
	// processed; closing "b" then leaves nothing
	require.Len(t, report.Succeeded, 2)
	assert.Equal(t, "b", report.Succeeded[1].PostURL)
	assert.True(t, report.Aborted)
	assert.Equal(t, browser.Handle("tab-2"), h.fake.Active())
	assert.NotEqual(t, main, h.orch.Focused())
}

func TestCancellationStopsAndFlushes(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.reporter.onDone = func(index int) {
		if index == 0 {
			cancel()
		}
	}

	report, err := h.orch.ScrapeBatches(ctx, []string{"a", "b", "c", "d"}, Options{BatchSize: 2, SaveEvery: 10, TabRetries: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Succeeded, 1)
	assert.Equal(t, 1, countLines(t, h.paths.Metadata))

	handles, _ := h.fake.Handles(context.Background())
	assert.Equal(t, []browser.Handle{h.fake.Main()}, handles)
}

func TestFailedFlushKeepsRecordsUntilNextFlush(t *testing.T) {
	h := newHarness(t)
	// a directory where the metadata file goes fails the first flush
	require.NoError(t, os.Mkdir(h.paths.Metadata, 0755))

	var stagingAfterFailure int
	h.reporter.onDone = func(index int) {
		if index == 1 {
			stagingAfterFailure = countLines(t, h.paths.Staging)
			require.NoError(t, os.Remove(h.paths.Metadata))
		}
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c", "d"}, Options{BatchSize: 2, SaveEvery: 2, TabRetries: 1})
	require.NoError(t, err)
	require.Len(t, report.Succeeded, 4)

	assert.Equal(t, 2, stagingAfterFailure, "staging is kept while records are unflushed")

	var urls []string
	f, err := os.Open(h.paths.Metadata)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec models.PostRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		urls = append(urls, rec.PostURL)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, urls)
	assert.Equal(t, 0, countLines(t, h.paths.Staging))
}

func TestStrayTabIsClosedAndPostTabAdopted(t *testing.T) {
	h := newHarness(t)
	var stray browser.Handle
	h.fake.BlockOpen = func(url string) bool { return url == "b" }
	h.fake.OnOpen = func(f *browser.Fake, url string) {
		if url == "b" {
			// an unrelated tab shows up first, then the post
			stray = f.Spawn("https://www.instagram.com/explore/")
			f.Spawn("b")
		}
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b"}, Options{BatchSize: 2, SaveEvery: 5, TabRetries: 2})
	require.NoError(t, err)

	require.Len(t, report.Succeeded, 2)
	assert.Equal(t, "b", report.Succeeded[1].PostURL)
	require.Len(t, report.Succeeded[1].Images, 1)
	assert.Equal(t, "b/img.jpg", report.Succeeded[1].Images[0].Src, "the post tab was processed, not the stray")
	assert.Contains(t, h.fake.Closed, stray)

	handles, _ := h.fake.Handles(context.Background())
	assert.Equal(t, []browser.Handle{h.fake.Main()}, handles)
}

func TestLateTabIsClosed(t *testing.T) {
	h := newHarness(t)
	var late browser.Handle
	h.fake.BlockOpen = func(url string) bool { return url == "b" }
	h.fake.OnClose = func(f *browser.Fake, closed browser.Handle) {
		// the tab for "b" finally opens once "a" is done
		if late == "" {
			late = f.Spawn("b")
		}
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a", "b", "c"}, Options{BatchSize: 2, SaveEvery: 5, TabRetries: 2})
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b", report.Skipped[0].PostURL)
	require.Len(t, report.Succeeded, 2)
	assert.Equal(t, "c", report.Succeeded[1].PostURL)

	require.NotEmpty(t, late)
	assert.Contains(t, h.fake.Closed, late)
	handles, _ := h.fake.Handles(context.Background())
	assert.Equal(t, []browser.Handle{h.fake.Main()}, handles)
}

func TestLoadingTabIsAdoptedWhenAlone(t *testing.T) {
	h := newHarness(t)
	h.fake.BlockOpen = func(url string) bool { return url == "a" }
	h.fake.OnOpen = func(f *browser.Fake, url string) {
		f.Spawn("about:blank")
	}

	report, err := h.orch.ScrapeBatches(context.Background(), []string{"a"}, Options{BatchSize: 1, SaveEvery: 1, TabRetries: 2})
	require.NoError(t, err)

	require.Len(t, report.Succeeded, 1)
	assert.Equal(t, "a", report.Succeeded[0].PostURL)
	assert.Len(t, h.fake.Closed, 1)
}
