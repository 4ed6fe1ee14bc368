package imagegen

import (
	"fmt"

	"dreamteller-api/internal/config"
	workflowport "dreamteller-api/internal/workflow/port"
)

// New 按配置选择图像后端，并包上限流
func New(cfg *config.Config) (workflowport.ImageGenerator, error) {
	ic := cfg.Image
	var backend workflowport.ImageGenerator
	switch ic.Backend {
	case "diffusion":
		backend = NewDiffusionClient(DiffusionConfig{
			Endpoint:      ic.Endpoint,
			APIKey:        ic.APIKey,
			SafetyChecker: ic.SafetyChecker,
			Timeout:       ic.Timeout,
		}, nil)
	case "openai":
		apiKey, baseURL := ic.APIKey, ""
		if p, ok := cfg.LLM.Providers["openai"]; ok {
			if apiKey == "" {
				apiKey = p.APIKey
			}
			baseURL = p.BaseURL
		}
		backend = NewOpenAIClient(apiKey, baseURL, ic.Model)
	default:
		return nil, fmt.Errorf("unknown image backend %q", ic.Backend)
	}
	return NewLimitedGenerator(backend, ic.Backend, ic.RequestsPerSecond, ic.Burst), nil
}
