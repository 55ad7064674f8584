package queue

import (
	"context"
	"log"
)

// Task types with a dedicated result shape.
const (
	TypeScene     = "scene"
	TypeCharacter = "character"
	TypeProject   = "project"
)

// CannedResolver returns fixed placeholder content for each task type.
type CannedResolver struct{}

func (CannedResolver) Resolve(_ context.Context, task Task) (map[string]interface{}, error) {
	return CannedResult(task.Type), nil
}

// CannedResult is the placeholder payload for taskType. Unknown types get a
// generic acknowledgement.
func CannedResult(taskType string) map[string]interface{} {
	switch taskType {
	case TypeScene:
		return map[string]interface{}{
			"description":          "AI 生成的場景描述",
			"characterDescription": "AI 生成的角色描述",
			"cameraMovement":       "AI 建議的鏡頭運動",
			"dialogue":             "AI 生成的對話",
			"backgroundMusic":      "AI 建議的背景音樂",
			"emotionTag":           "AI 建議的情緒標籤",
		}
	case TypeCharacter:
		return map[string]interface{}{
			"name":        "AI 建議的角色名稱",
			"description": "AI 生成的角色描述",
			"role":        "protagonist",
		}
	case TypeProject:
		return map[string]interface{}{
			"name":        "AI 建議的項目名稱",
			"description": "AI 生成的項目描述",
		}
	default:
		return map[string]interface{}{
			"type":    taskType,
			"message": "Task completed",
		}
	}
}

// SuggestFunc asks a text model for field suggestions of the given type.
type SuggestFunc func(ctx context.Context, taskType string, context map[string]interface{}) (map[string]interface{}, error)

// SuggestResolver fills scene, character and project tasks from a text model
// and falls back to canned content for other types or on error.
type SuggestResolver struct {
	Suggest SuggestFunc
}

func (r SuggestResolver) Resolve(ctx context.Context, task Task) (map[string]interface{}, error) {
	switch task.Type {
	case TypeScene, TypeCharacter, TypeProject:
	default:
		return CannedResult(task.Type), nil
	}

	result, err := r.Suggest(ctx, task.Type, task.Context)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[QUEUE] Suggestion for task %s failed, using canned result: %v", task.ID, err)
		return CannedResult(task.Type), nil
	}
	return result, nil
}
