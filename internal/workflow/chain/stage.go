package chain

import (
	"github.com/cloudwego/eino/components/model"

	"libra-lite/internal/infrastructure/llm"
	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/internal/workflow/node"
	workflowprompt "libra-lite/internal/workflow/prompt"
)

// ProviderRole 阶段使用哪一个提供商
type ProviderRole string

const (
	RoleText  ProviderRole = "text"
	RoleImage ProviderRole = "image"
)

// Stage 描述流水线中的一个阶段：模板、输入字段、适配器与对应的状态迁移
type Stage struct {
	Name    string
	Prompt  workflowprompt.PromptID
	Inputs  []string
	Output  string
	Role    ProviderRole
	Adapter node.TextAdapter
	Options []model.Option

	Requested wfmodel.RunState
	Received  wfmodel.RunState
	Event     wfmodel.EventKind
}

const (
	StageTitle      = "title"
	StageCharacters = "characters"
	StageStory      = "story"
	StageImage      = "image"
)

// DefaultStages 标题 -> 角色 -> 故事，按顺序执行
func DefaultStages(set workflowprompt.Set, storyMaxTokens int) []Stage {
	var storyOpts []model.Option
	if storyMaxTokens > 0 {
		storyOpts = append(storyOpts, model.WithMaxTokens(storyMaxTokens))
	}

	return []Stage{
		{
			Name:      StageTitle,
			Prompt:    set.Title,
			Inputs:    []string{wfmodel.FieldSummary},
			Output:    wfmodel.FieldTitle,
			Role:      RoleText,
			Adapter:   node.AdaptTitle,
			Requested: wfmodel.StateTitleRequested,
			Received:  wfmodel.StateTitleReceived,
			Event:     wfmodel.EventTitle,
		},
		{
			Name:      StageCharacters,
			Prompt:    set.Characters,
			Inputs:    []string{wfmodel.FieldTitle},
			Output:    wfmodel.FieldCharacters,
			Role:      RoleText,
			Adapter:   node.AdaptCharacters,
			Requested: wfmodel.StateCharactersRequested,
			Received:  wfmodel.StateCharactersReceived,
			Event:     wfmodel.EventCharacters,
		},
		{
			Name:      StageStory,
			Prompt:    set.Story,
			Inputs:    []string{wfmodel.FieldTitle, wfmodel.FieldCharacters},
			Output:    wfmodel.FieldStory,
			Role:      RoleText,
			Adapter:   node.AdaptStory,
			Options:   storyOpts,
			Requested: wfmodel.StateStoryRequested,
			Received:  wfmodel.StateStoryReceived,
			Event:     wfmodel.EventStory,
		},
	}
}

// ImageStage 以标题生成插图，结果由 node.AdaptImage 解析
func ImageStage() Stage {
	return Stage{
		Name:      StageImage,
		Prompt:    workflowprompt.PromptImageV1,
		Inputs:    []string{wfmodel.FieldTitle},
		Role:      RoleImage,
		Options:   []model.Option{llm.WithResponseModalities(llm.ModalityText, llm.ModalityImage)},
		Requested: wfmodel.StateImageRequested,
		Received:  wfmodel.StateImageReceived,
		Event:     wfmodel.EventImage,
	}
}

// inputs 只取阶段声明的字段，未声明的字段不会泄漏到模板
func (s Stage) inputs(fields wfmodel.Fields) map[string]string {
	out := make(map[string]string, len(s.Inputs))
	for _, name := range s.Inputs {
		if v, ok := fields[name]; ok {
			out[name] = v
		}
	}
	return out
}
