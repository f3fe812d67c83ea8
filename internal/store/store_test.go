package store

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s, err := m.Load(ctx)
	if err != nil || s != (Settings{}) {
		t.Fatalf("initial Load = %#v, %v", s, err)
	}
	want := Settings{URL: "rtsp://cam/1", Resolution: "720p"}
	if err := m.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := m.Load(ctx); got != want {
		t.Fatalf("Load = %#v; want %#v", got, want)
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	rs, err := NewRedisStore(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs.Close()

	if s, err := rs.Load(ctx); err != nil || s != (Settings{}) {
		t.Fatalf("initial Load = %#v, %v", s, err)
	}

	want := Settings{URL: "rtsp://cam/2", Resolution: "360p"}
	if err := rs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A new store sees the persisted settings.
	rs2, err := NewRedisStore(ctx, "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs2.Close()
	if got, err := rs2.Load(ctx); err != nil || got != want {
		t.Fatalf("persisted settings = %#v, %v; want %#v", got, err, want)
	}
}

func TestRedisStoreCorruptValue(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rs, err := NewRedisStore(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer rs.Close()

	if err := mr.Set(redisKey, "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := rs.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisStore(context.Background(), addr); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url    string
		addrs  int
		master string
		db     int
		tls    bool
	}{
		{"localhost:6379", 1, "", 0, false},
		{"redis://:pass@localhost:6379/1", 1, "", 1, false},
		{"rediss://host1:6379,host2:6379/0", 2, "", 0, true},
		{"redis-sentinel://localhost:26379/mymaster?db=2", 1, "mymaster", 2, false},
	}
	for _, tt := range tests {
		opts, err := parseRedisURL(tt.url)
		if err != nil {
			t.Fatalf("parseRedisURL(%q): %v", tt.url, err)
		}
		if len(opts.Addrs) != tt.addrs {
			t.Fatalf("%q addrs = %d; want %d", tt.url, len(opts.Addrs), tt.addrs)
		}
		if opts.MasterName != tt.master {
			t.Fatalf("%q master = %q; want %q", tt.url, opts.MasterName, tt.master)
		}
		if opts.DB != tt.db {
			t.Fatalf("%q db = %d; want %d", tt.url, opts.DB, tt.db)
		}
		if (opts.TLSConfig != nil) != tt.tls {
			t.Fatalf("%q tls = %v; want %v", tt.url, opts.TLSConfig != nil, tt.tls)
		}
	}

	for _, bad := range []string{"http://localhost", "redis://localhost/abc"} {
		if _, err := parseRedisURL(bad); err == nil {
			t.Fatalf("parseRedisURL(%q): expected error", bad)
		}
	}
}
