package main

import (
	"encoding/json"
	"fmt"
	"os"

	oneiros "oneiros/pkg/oneiros"
)

func loadTrainRequestFromConfig(path string) (oneiros.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return oneiros.TrainRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return oneiros.TrainRequest{}, err
	}

	var req oneiros.TrainRequest
	if v, ok := asString(raw["mode"]); ok {
		req.Mode = v
	}
	if v, ok := asString(raw["reward_model"]); ok {
		req.RewardModel = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asInt(raw["horizon"]); ok {
		req.Horizon = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asInt(raw["batch_length"]); ok {
		req.BatchLength = v
	}
	if v, ok := asInt(raw["slow_critic_update"]); ok {
		req.SlowCriticUpdate = v
	}
	if v, ok := asInt(raw["z_dim"]); ok {
		req.ZDim = v
	}
	if v, ok := asInt(raw["num_classes"]); ok {
		req.NumClasses = v
	}
	if v, ok := asInt(raw["h_dim"]); ok {
		req.HDim = v
	}
	if v, ok := asInt(raw["emb_dim"]); ok {
		req.EmbDim = v
	}
	if v, ok := asInt(raw["action_dim"]); ok {
		req.ActionDim = v
	}
	if v, ok := asInt(raw["hidden_dim"]); ok {
		req.HiddenDim = v
	}
	if v, ok := asFloat64(raw["discount"]); ok {
		req.Discount = v
	}
	if v, ok := asFloat64(raw["lambda"]); ok {
		req.Lambda = v
	}
	if v, ok := asFloat64(raw["entropy_scale"]); ok {
		req.EntropyScale = v
	}
	if v, ok := asFloat64(raw["min_std"]); ok {
		req.MinStd = v
	}
	if v, ok := asFloat64(raw["actor_lr"]); ok {
		req.ActorLR = v
	}
	if v, ok := asFloat64(raw["critic_lr"]); ok {
		req.CriticLR = v
	}
	if v, ok := asFloat64(raw["reward_lr"]); ok {
		req.RewardLR = v
	}
	if v, ok := asInt(raw["num_positives"]); ok {
		req.NumPositives = v
	}
	if v, ok := asFloat64(raw["neg_sampling_factor"]); ok {
		req.NegSamplingFactor = v
	}
	if v, ok := asInt(raw["ensemble_heads"]); ok {
		req.EnsembleHeads = v
	}
	return req, nil
}

func loadOrDefaultTrainRequest(configPath string) (oneiros.TrainRequest, error) {
	if configPath == "" {
		return oneiros.TrainRequest{}, nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return oneiros.TrainRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func overrideFromFlags(req *oneiros.TrainRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "mode":
			req.Mode = v.(string)
		case "reward":
			req.RewardModel = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "steps":
			req.Steps = v.(int)
		case "horizon":
			req.Horizon = v.(int)
		case "batch":
			req.BatchSize = v.(int)
		case "batch-length":
			req.BatchLength = v.(int)
		case "slow-critic-update":
			req.SlowCriticUpdate = v.(int)
		case "z-dim":
			req.ZDim = v.(int)
		case "num-classes":
			req.NumClasses = v.(int)
		case "h-dim":
			req.HDim = v.(int)
		case "emb-dim":
			req.EmbDim = v.(int)
		case "action-dim":
			req.ActionDim = v.(int)
		case "hidden-dim":
			req.HiddenDim = v.(int)
		case "discount":
			req.Discount = v.(float64)
		case "lambda":
			req.Lambda = v.(float64)
		case "entropy-scale":
			req.EntropyScale = v.(float64)
		case "min-std":
			req.MinStd = v.(float64)
		case "actor-lr":
			req.ActorLR = v.(float64)
		case "critic-lr":
			req.CriticLR = v.(float64)
		case "reward-lr":
			req.RewardLR = v.(float64)
		case "num-positives":
			req.NumPositives = v.(int)
		case "neg-sampling-factor":
			req.NegSamplingFactor = v.(float64)
		case "ensemble-heads":
			req.EnsembleHeads = v.(int)
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
