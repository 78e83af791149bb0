package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" csv:"-"`
	CodecVersion  int `json:"codec_version" csv:"-"`
}

// RunRecord describes one cross-validation experiment.
type RunRecord struct {
	VersionedRecord
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Dataset     string    `json:"dataset"`
	CreatedAt   time.Time `json:"created_at"`
	Repetitions int       `json:"repetitions"`
	Folds       int       `json:"folds"`
	Generations int       `json:"generations"`
	Modes       []string  `json:"modes"`
	// Config is the YAML snapshot of the experiment configuration.
	Config    string `json:"config,omitempty"`
	Completed bool   `json:"completed"`
}

// FoldResult is the test score of the chromosome one mode selected on one
// fold of one repetition.
type FoldResult struct {
	VersionedRecord
	RunID             string  `json:"run_id" csv:"run_id"`
	Mode              string  `json:"mode" csv:"mode"`
	Repetition        int     `json:"repetition" csv:"repetition"`
	Fold              int     `json:"fold" csv:"fold"`
	Seed              int64   `json:"seed" csv:"seed"`
	TestFitness       float64 `json:"test_fitness" csv:"test_fitness"`
	TrainingFitness   float64 `json:"training_fitness" csv:"training_fitness"`
	ValidationFitness float64 `json:"validation_fitness" csv:"validation_fitness"`
	ActiveNodes       int     `json:"active_nodes" csv:"active_nodes"`
	Generation        int     `json:"generation" csv:"generation"`
	ChromosomeID      string  `json:"chromosome_id" csv:"chromosome_id"`
}

// ChromosomeRecord stores a chromosome in its persisted text form.
type ChromosomeRecord struct {
	VersionedRecord
	ID                string  `json:"id"`
	RunID             string  `json:"run_id"`
	Mode              string  `json:"mode"`
	Repetition        int     `json:"repetition"`
	Fold              int     `json:"fold"`
	Fitness           float64 `json:"fitness"`
	FitnessValidation float64 `json:"fitness_validation"`
	ActiveNodes       int     `json:"active_nodes"`
	Generation        int     `json:"generation"`
	Text              string  `json:"text"`
}

// GenerationDiagnostics is one generation of one mode on one fold.
type GenerationDiagnostics struct {
	Mode                 string  `json:"mode" csv:"mode"`
	Repetition           int     `json:"repetition" csv:"repetition"`
	Fold                 int     `json:"fold" csv:"fold"`
	Generation           int     `json:"generation" csv:"generation"`
	BestFitness          float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness          float64 `json:"mean_fitness" csv:"mean_fitness"`
	WorstFitness         float64 `json:"worst_fitness" csv:"worst_fitness"`
	BestValidation       float64 `json:"best_validation" csv:"best_validation"`
	BestActiveNodes      int     `json:"best_active_nodes" csv:"best_active_nodes"`
	MeanActiveNodes      float64 `json:"mean_active_nodes" csv:"mean_active_nodes"`
	FingerprintDiversity int     `json:"fingerprint_diversity" csv:"fingerprint_diversity"`
	RefinedChildIndex    int     `json:"refined_child_index" csv:"refined_child_index"`
	RefinedChildBefore   float64 `json:"refined_child_before" csv:"refined_child_before"`
	RefinedChildAfter    float64 `json:"refined_child_after" csv:"refined_child_after"`
}
