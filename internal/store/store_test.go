package store

import (
	"sync"
	"testing"
	"time"

	"pr-build-watcher/internal/entities"

	"github.com/stretchr/testify/require"
)

func record(id int, sha string) *entities.PullRequestRecord {
	return &entities.PullRequestRecord{ID: id, HeadSHA: sha, UpdatedAt: time.Now()}
}

func TestGetOrCreateSingleSurvivor(t *testing.T) {
	s := New()

	const workers = 32
	created := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, wasCreated := s.GetOrCreate(42, func() *entities.PullRequestRecord {
				return record(42, "abc")
			})
			created[i] = wasCreated
		}(i)
	}
	wg.Wait()

	creations := 0
	for _, c := range created {
		if c {
			creations++
		}
	}
	require.Equal(t, 1, creations)
	require.Equal(t, 1, s.Len())

	rec, ok := s.Get(42)
	require.True(t, ok)
	require.Equal(t, "abc", rec.HeadSHA)
}

func TestUpdateMutatesStoredRecord(t *testing.T) {
	s := New()
	s.GetOrCreate(7, func() *entities.PullRequestRecord { return record(7, "abc") })

	ok := s.Update(7, func(rec *entities.PullRequestRecord) {
		rec.HeadSHA = "def"
	})
	require.True(t, ok)

	rec, _ := s.Get(7)
	require.Equal(t, "def", rec.HeadSHA)

	require.False(t, s.Update(8, func(rec *entities.PullRequestRecord) {
		t.Fatal("must not be called for a missing record")
	}))
}

func TestRemoveAndKeys(t *testing.T) {
	s := New()
	s.GetOrCreate(3, func() *entities.PullRequestRecord { return record(3, "a") })
	s.GetOrCreate(1, func() *entities.PullRequestRecord { return record(1, "b") })
	s.GetOrCreate(2, func() *entities.PullRequestRecord { return record(2, "c") })

	require.Equal(t, []int{1, 2, 3}, s.Keys())

	require.True(t, s.Remove(2))
	require.False(t, s.Remove(2))
	require.Equal(t, []int{1, 3}, s.Keys())
}

func TestReplaceAndRecords(t *testing.T) {
	s := New()
	s.GetOrCreate(9, func() *entities.PullRequestRecord { return record(9, "old") })

	s.Replace([]entities.PullRequestRecord{
		{ID: 5, HeadSHA: "x"},
		{ID: 4, HeadSHA: "y"},
	})

	recs := s.Records()
	require.Len(t, recs, 2)
	require.Equal(t, 4, recs[0].ID)
	require.Equal(t, 5, recs[1].ID)

	_, ok := s.Get(9)
	require.False(t, ok)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			s.GetOrCreate(id%4, func() *entities.PullRequestRecord { return record(id%4, "sha") })
			s.Update(id%4, func(rec *entities.PullRequestRecord) { rec.Title = "t" })
		}(i)
		go func(id int) {
			defer wg.Done()
			s.Keys()
			s.Get(id % 4)
			s.Records()
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, s.Len(), 4)
}
