package goFlag_test

import (
	"context"
	"fmt"

	goFlag "github.com/MrEthical07/goFlag"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with Redis-backed storage.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	modules, _ := goFlag.NewStaticModuleProvider(
		goFlag.Module{ID: "sqli-1", Locator: "/labs/sqli", Flag: goFlag.StaticFlag{Value: "flag{union-select}"}},
	)

	engine, _ := goFlag.New().
		WithConfig(goFlag.MultiInstanceConfig()).
		WithRedis(rdb).
		WithModuleProvider(modules).
		Build()
	_ = engine
}

func ExampleEngine_Submit() {
	modules, _ := goFlag.NewStaticModuleProvider(
		goFlag.Module{ID: "intro", Flag: goFlag.StaticFlag{Value: "flag{hello}"}},
	)
	engine, err := goFlag.New().WithInMemoryStorage().WithModuleProvider(modules).Build()
	if err != nil {
		return
	}
	defer engine.Close()

	ctx := context.Background()
	sub, err := engine.Submit(ctx, "alice", "intro", " FLAG{HELLO} ")
	if err != nil {
		return
	}
	fmt.Println(sub.Valid)

	_, err = engine.Submit(ctx, "alice", "intro", "flag{hello}")
	fmt.Println(err)
	// Output:
	// true
	// module already solved
}

// ExampleEngine_DeriveFlag shows how a dynamic module obtains the flag it
// embeds for a user.
func ExampleEngine_DeriveFlag() {
	var engine *goFlag.Engine
	flag, err := engine.DeriveFlag(context.Background(), "alice", "xss-2")
	if err != nil {
		_ = err
	}
	_ = flag
}
