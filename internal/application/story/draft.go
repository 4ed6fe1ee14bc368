package story

import (
	"sync"

	"dreamteller-api/internal/domain/entity"
)

// Draft 生成中的故事快照。只有生成流程写入，读者通过 Snapshot 获取副本；
// 锁只在单次读写期间持有，不跨越 provider 调用。
type Draft struct {
	mu    sync.RWMutex
	story *entity.Story
	stage entity.Stage
}

func NewDraft() *Draft {
	return &Draft{stage: entity.StagePending}
}

// Snapshot 返回当前故事副本与阶段，尚未开始时故事为 nil
func (d *Draft) Snapshot() (*entity.Story, entity.Stage) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.story.Clone(), d.stage
}

func (d *Draft) begin(story *entity.Story) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.story = story.Clone()
}

func (d *Draft) setStage(stage entity.Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stage = stage
}

func (d *Draft) setSceneTexts(texts []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.story == nil {
		return
	}
	d.story.Scenes = make([]entity.Scene, len(texts))
	for i, t := range texts {
		d.story.Scenes[i].Text = t
	}
}

func (d *Draft) setScene(index int, scene entity.Scene) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.story == nil || index < 0 || index >= len(d.story.Scenes) {
		return
	}
	d.story.Scenes[index] = scene
}

func (d *Draft) setTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.story != nil {
		d.story.Title = title
	}
}
