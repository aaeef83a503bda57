package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunRecord struct {
	VersionedRecord
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	RewardModel string `json:"reward_model"`
	Seed        int64  `json:"seed"`
	Steps       int    `json:"steps"`
	Horizon     int    `json:"horizon"`
	BatchSize   int    `json:"batch_size"`
	BatchLength int    `json:"batch_length"`
	CreatedUnix int64  `json:"created_unix"`
}

type StepMetrics struct {
	VersionedRecord
	Step       int     `json:"step"`
	ActorLoss  float64 `json:"actor_loss"`
	CriticLoss float64 `json:"critic_loss"`
	RewardLoss float64 `json:"reward_loss"`
	MeanReward float64 `json:"mean_reward"`
}
