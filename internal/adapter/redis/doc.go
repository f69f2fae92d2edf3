// Package redis implements the shared counter store on Redis.
//
// Every mutating operation is a single Lua script so concurrent instances never interleave
// check and act. Guard keys of one subject share a hash tag and stay on one cluster slot.
package redis
