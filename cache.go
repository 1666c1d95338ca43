package main

import (
	"elfMap/elfmem"

	lru "github.com/hashicorp/golang-lru/v2"
)

// The core never memoizes; reconstruction results are cached here at the
// boundary, keyed by image identity and discovered load address so a
// re-randomized or re-mapped module never hits a stale entry.

type mapKey struct {
	objfile string
	base    uint64
}

type mapCache struct {
	lru *lru.Cache[mapKey, []*elfmem.Page]
}

func newMapCache() *mapCache {
	cache, err := lru.New[mapKey, []*elfmem.Page](64)
	if err != nil {
		panic(err)
	}
	return &mapCache{lru: cache}
}

func (c *mapCache) pages(ctx *elfmem.Context, pointer uint64, objfile string) ([]*elfmem.Page, error) {
	_, ehdr, err := ctx.LocateHeader(pointer)
	if err != nil || ehdr == nil {
		return nil, err
	}

	key := mapKey{objfile: objfile, base: ehdr.Addr}
	if pages, ok := c.lru.Get(key); ok {
		return pages, nil
	}

	pages := ctx.PagesFromHeader(ehdr, objfile)
	if pages != nil {
		c.lru.Add(key, pages)
	}
	return pages, nil
}
