package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
)

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		data, found, err := s.Get(context.Background(), "55p7500_37p6200_daily_2024-01")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if found || data != nil {
			t.Errorf("Get() = %q, %v; want nil, false", data, found)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		payload := []byte(`{"latitude":55.75,"daily":{"time":["2024-01-01"],"tmax":[1.5]}}`)

		if err := s.Put(ctx, "55p7500_37p6200_daily_2024-01", payload); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, found, err := s.Get(ctx, "55p7500_37p6200_daily_2024-01")
		if err != nil || !found {
			t.Fatalf("Get() = found %v, err %v", found, err)
		}
		if string(got) != string(payload) {
			t.Errorf("Get() = %s, want %s", got, payload)
		}
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		name := "55p7500_37p6200_hourly_2024-02"

		if err := s.Put(ctx, name, []byte(`{"v":1}`)); err != nil {
			t.Fatal(err)
		}
		if err := s.Put(ctx, name, []byte(`{"v":2}`)); err != nil {
			t.Fatal(err)
		}
		got, _, err := s.Get(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `{"v":2}` {
			t.Errorf("Get() after overwrite = %s", got)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, name := range []string{"", "../escape", "a b", "x:y", "a/b", "a.json"} {
			if err := s.Put(ctx, name, []byte("{}")); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidName", name, err)
			}
			if _, _, err := s.Get(ctx, name); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Get(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, name := range []string{
			"55p7500_37p6200_daily_2024-01",
			"55p7500_37p6200_daily_2024-02",
			"55p7500_37p6200_hourly_2024-01",
			"m33p8650_151p2100_daily_2024-01",
		} {
			if err := s.Put(ctx, name, []byte("{}")); err != nil {
				t.Fatal(err)
			}
		}

		got, err := s.List(ctx, "55p7500_37p6200_daily_")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		sort.Strings(got)
		want := []string{"55p7500_37p6200_daily_2024-01", "55p7500_37p6200_daily_2024-02"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("List() = %v, want %v", got, want)
		}

		all, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 4 {
			t.Errorf("List(\"\") returned %d names, want 4", len(all))
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			if err := s.Put(ctx, fmt.Sprintf("0p0000_0p0000_daily_2024-0%d", i), []byte("{}")); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		names, err := s.List(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 0 {
			t.Errorf("List() after Clear = %v", names)
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		name := "0p0000_0p0000_hourly_2024-06"

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Put(ctx, name, []byte(fmt.Sprintf(`{"writer":%d}`, i))); err != nil {
					t.Errorf("Put() error = %v", err)
				}
				if _, _, err := s.Get(ctx, name); err != nil {
					t.Errorf("Get() error = %v", err)
				}
			}(i)
		}
		wg.Wait()

		got, found, err := s.Get(ctx, name)
		if err != nil || !found {
			t.Fatalf("Get() = found %v, err %v", found, err)
		}
		var writer int
		if _, err := fmt.Sscanf(string(got), `{"writer":%d}`, &writer); err != nil {
			t.Errorf("final value %q is not one complete write", got)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Put(ctx, "0p0000_0p0000_daily_2024-01", []byte("{}")); err == nil {
			t.Error("Put() with canceled context should fail")
		}
	})
}
