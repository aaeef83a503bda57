package storage

import (
	"encoding/json"
	"errors"

	"oneiros/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeStepMetrics(m model.StepMetrics) ([]byte, error) {
	return json.Marshal(m)
}

func DecodeStepMetrics(data []byte) (model.StepMetrics, error) {
	var m model.StepMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return model.StepMetrics{}, err
	}
	if err := checkVersion(m.VersionedRecord); err != nil {
		return model.StepMetrics{}, err
	}
	return m, nil
}

func EncodeMetrics(metrics []model.StepMetrics) ([]byte, error) {
	return json.Marshal(metrics)
}

func DecodeMetrics(data []byte) ([]model.StepMetrics, error) {
	var metrics []model.StepMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, err
	}
	for _, m := range metrics {
		if err := checkVersion(m.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
