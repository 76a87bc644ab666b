package main_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/siteclone"
	main "github.com/fwojciec/siteclone/cmd/siteclone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineFlags_ResolvePolicy(t *testing.T) {
	t.Parallel()

	t.Run("defaults without flags", func(t *testing.T) {
		t.Parallel()

		policy, err := (&main.EngineFlags{}).ResolvePolicy()

		require.NoError(t, err)
		assert.Equal(t, siteclone.DefaultPolicy().MaxPages, policy.MaxPages)
	})

	t.Run("profile then overrides", func(t *testing.T) {
		t.Parallel()
		blog := siteclone.Profiles["blog"]

		policy, err := (&main.EngineFlags{Profile: "blog", MaxDepth: 7, Concurrency: 2, RPS: 1.5}).ResolvePolicy()

		require.NoError(t, err)
		assert.Equal(t, blog.MaxPages, policy.MaxPages)
		assert.Equal(t, 7, policy.MaxDepth)
		assert.Equal(t, 2, policy.Concurrency)
		assert.InDelta(t, 1.5, policy.RequestsPerSecond, 1e-9)
	})

	t.Run("file is the base", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_pages: 12\nconcurrency: 3\n"), 0644))

		policy, err := (&main.EngineFlags{Policy: path, MaxPages: 4}).ResolvePolicy()

		require.NoError(t, err)
		assert.Equal(t, 4, policy.MaxPages)
		assert.Equal(t, 3, policy.Concurrency)
	})

	t.Run("invalid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_pagez: 12\n"), 0644))

		_, err := (&main.EngineFlags{Policy: path}).ResolvePolicy()

		assert.Equal(t, siteclone.EINVALID, siteclone.ErrorCode(err))
	})

	t.Run("unknown profile", func(t *testing.T) {
		t.Parallel()

		_, err := (&main.EngineFlags{Profile: "museum"}).ResolvePolicy()

		assert.Equal(t, siteclone.ENOTFOUND, siteclone.ErrorCode(err))
	})
}
