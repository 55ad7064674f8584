package generation

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	cameraMovements  = []string{"固定鏡頭", "推軌鏡頭", "搖鏡頭", "全景鏡頭", "特寫鏡頭"}
	backgroundMusics = []string{"輕柔鋼琴曲", "浪漫小提琴", "溫馨氛圍", "快節奏流行", "悲傷鋼琴"}
	emotionTags      = []string{"浪漫", "溫馨", "緊張", "開心", "悲傷"}
)

// sceneMarker matches headers such as 【1幕】場景：咖啡廳, 【第一幕】場景：街道 or 【第２幕】場景:公園.
var sceneMarker = regexp.MustCompile(`【\s*第?\s*[0-9０-９零〇一二兩两三四五六七八九十百]+\s*幕\s*】[ \t　]*[場场]景[ \t　]*[：:]([^【\n]+)`)

// SceneDraft is a scene proposed from a script, not yet saved to a project.
type SceneDraft struct {
	ID                   string `json:"id"`
	Order                int    `json:"order"`
	Duration             int    `json:"duration"`
	Description          string `json:"description"`
	CharacterDescription string `json:"characterDescription"`
	CameraMovement       string `json:"cameraMovement"`
	Dialogue             string `json:"dialogue"`
	BackgroundMusic      string `json:"backgroundMusic"`
	EmotionTag           string `json:"emotionTag"`
}

// ParseScenes splits a script on its scene headers. Camera, music and emotion
// cycle through fixed option lists; a script without headers yields a single
// default scene.
func ParseScenes(script string) []SceneDraft {
	matches := sceneMarker.FindAllStringSubmatch(script, -1)
	if len(matches) == 0 {
		return []SceneDraft{{
			ID:                   uuid.NewString(),
			Order:                1,
			Duration:             5,
			Description:          "場景 1",
			CharacterDescription: "角色",
			CameraMovement:       "固定鏡頭",
			BackgroundMusic:      "輕柔鋼琴曲",
			EmotionTag:           "平靜",
		}}
	}

	scenes := make([]SceneDraft, 0, len(matches))
	for i, m := range matches {
		scenes = append(scenes, SceneDraft{
			ID:                   uuid.NewString(),
			Order:                i + 1,
			Duration:             5 + rand.IntN(5),
			Description:          strings.TrimSpace(m[1]),
			CharacterDescription: "主要角色登場",
			CameraMovement:       cameraMovements[i%len(cameraMovements)],
			BackgroundMusic:      backgroundMusics[i%len(backgroundMusics)],
			EmotionTag:           emotionTags[i%len(emotionTags)],
		})
	}
	return scenes
}
