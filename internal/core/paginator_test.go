package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestPaginator(maxPages int) (*Paginator, *[]time.Duration) {
	p := NewPaginator(DefaultPageDelay, maxPages, nil, zap.NewNop())
	var sleeps []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return p, &sleeps
}

func TestPaginator_CollectAll(t *testing.T) {
	tests := []struct {
		n int
		k int
	}{
		{n: 0, k: 1},
		{n: 1, k: 1},
		{n: 12, k: 1},
		{n: 12, k: 3},
		{n: 10, k: 4},
		{n: 7, k: 7},
		{n: 250, k: 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d items over %d pages", tt.n, tt.k), func(t *testing.T) {
			catalog := newMockCatalog(ServiceTidal)
			catalog.setAlbumItems("album", numberedTracks(ServiceTidal, tt.n), tt.k)

			paginator, sleeps := newTestPaginator(DefaultMaxPages)
			ids, err := paginator.CollectAll(context.Background(), catalog, "album")
			if err != nil {
				t.Fatalf("CollectAll() error = %v", err)
			}

			if len(ids) != tt.n {
				t.Fatalf("CollectAll() returned %d ids, want %d", len(ids), tt.n)
			}
			for i, id := range ids {
				if want := fmt.Sprintf("t%d", i); id != want {
					t.Errorf("ids[%d] = %q, want %q", i, id, want)
				}
			}

			if catalog.pageCalls != tt.k {
				t.Errorf("page calls = %d, want %d", catalog.pageCalls, tt.k)
			}
			if len(*sleeps) != tt.k-1 {
				t.Errorf("delays = %d, want %d", len(*sleeps), tt.k-1)
			}
			for _, d := range *sleeps {
				if d != DefaultPageDelay {
					t.Errorf("delay = %v, want %v", d, DefaultPageDelay)
				}
			}
		})
	}
}

func TestPaginator_FailureAbortsWholeAlbum(t *testing.T) {
	for failAt := 0; failAt < 4; failAt++ {
		t.Run(fmt.Sprintf("failure on page %d", failAt), func(t *testing.T) {
			catalog := newMockCatalog(ServiceTidal)
			catalog.setAlbumItems("album", numberedTracks(ServiceTidal, 20), 4)
			catalog.failPage["album"] = failAt

			paginator, _ := newTestPaginator(DefaultMaxPages)
			ids, err := paginator.CollectAll(context.Background(), catalog, "album")
			if err == nil {
				t.Fatal("CollectAll() expected error")
			}
			if ids != nil {
				t.Errorf("CollectAll() returned partial ids %v", ids)
			}
			if !errors.Is(err, ErrTransport) {
				t.Errorf("CollectAll() error = %v, want transport error", err)
			}
			if catalog.pageCalls != failAt+1 {
				t.Errorf("page calls = %d, want %d", catalog.pageCalls, failAt+1)
			}
		})
	}
}

func TestPaginator_TooManyPages(t *testing.T) {
	catalog := newMockCatalog(ServiceSpotify)
	catalog.setAlbumItems("album", numberedTracks(ServiceSpotify, 9), 3)

	paginator, _ := newTestPaginator(2)
	items, err := paginator.CollectItems(context.Background(), catalog, "album")
	if !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("CollectItems() error = %v, want ErrTooManyPages", err)
	}
	if items != nil {
		t.Errorf("CollectItems() returned partial items")
	}
}

func TestPaginator_ContextCanceledDuringDelay(t *testing.T) {
	catalog := newMockCatalog(ServiceSpotify)
	catalog.setAlbumItems("album", numberedTracks(ServiceSpotify, 4), 2)

	paginator := NewPaginator(time.Hour, DefaultMaxPages, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := paginator.CollectAll(ctx, catalog, "album")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CollectAll() error = %v, want deadline exceeded", err)
	}
}

func TestPaginator_RecordsPages(t *testing.T) {
	catalog := newMockCatalog(ServiceSpotify)
	catalog.setAlbumItems("album", numberedTracks(ServiceSpotify, 6), 3)

	recorder := newMockRecorder()
	paginator := NewPaginator(0, DefaultMaxPages, recorder, zap.NewNop())

	if _, err := paginator.CollectAll(context.Background(), catalog, "album"); err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}
	if recorder.pages != 3 {
		t.Errorf("recorded pages = %d, want 3", recorder.pages)
	}
}

func TestPaginator_OneListingPerCatalog(t *testing.T) {
	catalog := newMockCatalog(ServiceTidal)
	catalog.setAlbumItems("a", numberedTracks(ServiceTidal, 6), 3)
	catalog.setAlbumItems("b", numberedTracks(ServiceTidal, 6), 3)

	paginator := NewPaginator(0, DefaultMaxPages, nil, zap.NewNop())

	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)
	paginator.sleep = func(ctx context.Context, _ time.Duration) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := paginator.CollectAll(context.Background(), catalog, id); err != nil {
				t.Errorf("CollectAll(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("concurrent listings on one catalog = %d, want 1", maxActive)
	}
}
