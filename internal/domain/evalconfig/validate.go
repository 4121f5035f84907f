package evalconfig

// ValidateForSubmit checks the preconditions a snapshot must meet before it is
// dispatched for evaluation. Edits are allowed to pass through states that fail
// these checks; only submission is blocked. hasDataset reports whether the caller
// supplies its own question/answer pairs, which makes evalQuestionsCount irrelevant.
func ValidateForSubmit(cfg EvaluationConfig, hasDataset bool) error {
	errs := FieldErrors{}
	if !hasDataset && cfg.EvalQuestionsCount < 1 {
		errs[FieldEvalQuestionsCount] = "must be at least 1"
	}
	if cfg.ChunkSize < 1 {
		errs[FieldChunkSize] = "must be at least 1"
	} else if cfg.Overlap >= cfg.ChunkSize {
		errs[FieldOverlap] = "must be smaller than chunkSize"
	}
	if cfg.NumNeighbors < 1 {
		errs[FieldNumNeighbors] = "must be at least 1"
	}
	if !cfg.SplitMethod.Valid() {
		errs[FieldSplitMethod] = "is not supported"
	}
	if !cfg.EmbeddingAlgorithm.Valid() {
		errs[FieldEmbeddingAlgorithm] = "is not supported"
	}
	if !cfg.Model.Valid() {
		errs[FieldModel] = "is not supported"
	}
	if !cfg.Retriever.Valid() {
		errs[FieldRetriever] = "is not supported"
	}
	if !cfg.GradingPrompt.Valid() {
		errs[FieldGradingPrompt] = "is not supported"
	}
	if !cfg.Language.Valid() {
		errs[FieldLanguage] = "is not supported"
	}
	if len(cfg.Files) == 0 {
		errs[FieldFiles] = "at least one file is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
