package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

func TestCacheRepositoryWithoutClientAlwaysMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.NoError(t, repo.Set(ctx, "courses:all", []int{1, 2}, time.Minute))

	var dest []int
	assert.ErrorIs(t, repo.Get(ctx, "courses:all", &dest), appErrors.ErrCacheMiss)
	assert.Nil(t, dest)
	assert.NoError(t, repo.DeleteByPattern(ctx, "courses:*"))
	assert.NoError(t, repo.Close())
}
