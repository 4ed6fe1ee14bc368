package eino

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProviderContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, " story_sketch ", "openai")
	assert.Equal(t, "story_sketch", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, "", "")
	assert.Equal(t, "story_sketch", WorkflowFromContext(ctx))
}
