package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dcache/provider"
	"github.com/unkn0wn-root/dcache/provider/providertest"
)

func TestConformance(t *testing.T) {
	providertest.Run(t, func(t *testing.T, mr *miniredis.Miniredis) provider.Provider {
		p, err := New(Config{
			Client:      goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
			CloseClient: true,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return p
	})
}

func TestNewNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}

func TestCloseTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := New(Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	if p.IsCluster() {
		t.Fatalf("single client reported as cluster")
	}
	ctx := context.Background()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestClusterModeDetected(t *testing.T) {
	mr := miniredis.RunT(t)
	cc := goredis.NewClusterClient(&goredis.ClusterOptions{Addrs: []string{mr.Addr()}})
	p, err := New(Config{Client: cc, CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(context.Background())
	if !p.IsCluster() {
		t.Fatalf("cluster client not detected")
	}
}
