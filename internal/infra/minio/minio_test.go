package minio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsObjectKey(t *testing.T) {
	assert.True(t, IsObjectKey("avatars/1.png"))
	assert.False(t, IsObjectKey(""))
	assert.False(t, IsObjectKey("https://cdn.example.com/a.png"))
	assert.False(t, IsObjectKey("HTTP://cdn.example.com/a.png"))
}

func TestResolveAvatarFallsBackWithoutClient(t *testing.T) {
	r := NewAvatarResolver("avatars", time.Minute)
	ctx := context.Background()

	assert.Equal(t, "https://cdn.example.com/a.png", r.ResolveAvatar(ctx, "https://cdn.example.com/a.png"))
	assert.Equal(t, "avatars/1.png", r.ResolveAvatar(ctx, "avatars/1.png"))
}
