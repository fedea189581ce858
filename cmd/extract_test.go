package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/pipeline"
)

func TestCollectURLs(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(list, []byte(`
# weekend baking
https://www.instagram.com/p/one/
  https://www.instagram.com/p/two/

https://www.instagram.com/p/one/
`), 0o644))

	urls, err := collectURLs([]string{"https://www.instagram.com/p/zero/", "https://www.instagram.com/p/two/"}, list)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.instagram.com/p/zero/",
		"https://www.instagram.com/p/two/",
		"https://www.instagram.com/p/one/",
	}, urls)
}

func TestCollectURLs_MissingFile(t *testing.T) {
	_, err := collectURLs(nil, filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestExtractAll_KeepsOrder(t *testing.T) {
	ex := &fakeExtractor{
		results: map[string]*pipeline.Result{
			"https://a.test/1": {Recipe: sampleRecipe("One")},
			"https://a.test/3": {Recipe: sampleRecipe("Three"), Cached: true},
		},
	}

	out := extractAll(context.Background(), ex, []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}, 2)

	require.Len(t, out, 3)
	assert.Equal(t, "One", out[0].Result.Recipe.Title)
	assert.Error(t, out[1].Err)
	assert.True(t, out[2].Result.Cached)
	assert.Equal(t, 1, failedCount(out))
}

type slowExtractor struct {
	inFlight, peak atomic.Int32
}

func (s *slowExtractor) Extract(ctx context.Context, u string) (*pipeline.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return &pipeline.Result{Recipe: sampleRecipe(u)}, nil
}

func TestExtractAll_RespectsLimit(t *testing.T) {
	ex := &slowExtractor{}
	urls := []string{"a", "b", "c", "d", "e", "f"}

	out := extractAll(context.Background(), ex, urls, 2)

	assert.Len(t, out, len(urls))
	assert.LessOrEqual(t, ex.peak.Load(), int32(2))
	assert.Zero(t, failedCount(out))
}

func TestWriteOutcomes_SingleJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	err := writeOutcomes(&out, &errOut, []extractOutcome{
		{URL: postURL, Result: &pipeline.Result{Recipe: sampleRecipe("Pancakes")}},
	}, "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Pancakes", got["title"])
	assert.Empty(t, errOut.String())
}

func TestWriteOutcomes_SingleFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	err := writeOutcomes(&out, &errOut, []extractOutcome{
		{URL: postURL, Err: &pipeline.Error{Code: pipeline.CodeExtraction, Message: pipeline.MsgFetchFailed}},
	}, "json")
	require.NoError(t, err)

	assert.Empty(t, out.String())
	assert.Equal(t, "EXTRACTION_ERROR: Could not access post content\n", errOut.String())
}

func TestWriteOutcomes_BatchJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	err := writeOutcomes(&out, &errOut, []extractOutcome{
		{URL: "https://a.test/1", Result: &pipeline.Result{Recipe: sampleRecipe("One"), Cached: true}},
		{URL: "https://a.test/2", Err: &pipeline.Error{Code: pipeline.CodeExtraction, Message: pipeline.MsgNoContent}},
	}, "json")
	require.NoError(t, err)

	var items []batchItem
	require.NoError(t, json.Unmarshal(out.Bytes(), &items))
	require.Len(t, items, 2)
	assert.True(t, items[0].Cached)
	assert.Equal(t, "One", items[0].Recipe.Title)
	assert.Nil(t, items[0].Error)
	assert.Nil(t, items[1].Recipe)
	require.NotNil(t, items[1].Error)
	assert.Equal(t, "EXTRACTION_ERROR", items[1].Error.Code)
	assert.Equal(t, pipeline.MsgNoContent, items[1].Error.Error)
}

func TestWriteOutcomes_Text(t *testing.T) {
	var out, errOut bytes.Buffer
	err := writeOutcomes(&out, &errOut, []extractOutcome{
		{URL: "https://a.test/1", Result: &pipeline.Result{
			Recipe:   sampleRecipe("Pancakes"),
			StoreErr: &pipeline.Error{Code: pipeline.CodeStore, Message: pipeline.MsgStoreFailed},
		}},
		{URL: "https://a.test/2", Err: &pipeline.Error{Code: pipeline.CodeExtraction, Message: pipeline.MsgParseFailed}},
	}, "text")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Pancakes")
	assert.Contains(t, errOut.String(), "https://a.test/2: Could not parse recipe")
	assert.Contains(t, errOut.String(), "warning: "+pipeline.MsgStoreFailed)
}

func TestWritePDFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, writePDFFile(path, sampleRecipe("Pancakes")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestReadRecipeFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	data, err := json.Marshal(sampleRecipe("Pancakes"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, data, 0o644))

	rec, err := readRecipeFile(good)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", rec.Title)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title":"No steps","ingredients":[{"name":"egg"}]}`), 0o644))
	_, err = readRecipeFile(bad)
	assert.Error(t, err)

	_, err = readRecipeFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
