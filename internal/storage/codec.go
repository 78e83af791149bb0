package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"cgpde/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

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

func EncodeChromosome(c model.ChromosomeRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeChromosome(data []byte) (model.ChromosomeRecord, error) {
	var record model.ChromosomeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.ChromosomeRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.ChromosomeRecord{}, err
	}
	return record, nil
}

func EncodeFoldResults(results []model.FoldResult) ([]byte, error) {
	return json.Marshal(results)
}

func DecodeFoldResults(data []byte) ([]model.FoldResult, error) {
	var results []model.FoldResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	for i, result := range results {
		if err := checkVersion(result.VersionedRecord); err != nil {
			return nil, fmt.Errorf("fold result %d: %w", i, err)
		}
	}
	return results, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
