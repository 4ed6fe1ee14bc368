package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/domain/entity"
)

func TestToArchivedStoryResponse_RewritesEmbeddedImages(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	a := &entity.ArchivedStory{
		Filename: "fox.story",
		Story: &entity.Story{
			ID: "s1",
			Scenes: []entity.Scene{
				{Text: "remote", ImageURL: "https://images.test/0.png"},
				{Text: "inline", ImageURL: "data:image/png;base64,iVBORw=="},
				{Text: "no payload", ImageURL: "https://images.test/2.png"},
			},
		},
		Images: map[int]entity.ArchiveImage{
			0: {Path: "images/scene_0.png", ContentType: "image/png", Data: png},
			1: {Path: "images/scene_1.png", ContentType: "image/png", Data: png},
		},
	}

	resp := ToArchivedStoryResponse(a)
	require.NotNil(t, resp)
	assert.Equal(t, "/v1/archives/fox.story/images/0", resp.Story.Scenes[0].ImageURL)
	assert.Equal(t, "/v1/archives/fox.story/images/1", resp.Story.Scenes[1].ImageURL)
	assert.Equal(t, "https://images.test/2.png", resp.Story.Scenes[2].ImageURL)
	assert.Equal(t, map[int]string{0: "https://images.test/0.png"}, resp.Original)

	assert.Nil(t, ToArchivedStoryResponse(nil))
}
