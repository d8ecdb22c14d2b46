package config

// Operation names, one per generation stage of the pipeline
const (
	OperationExtract       = "extract"
	OperationEnrich        = "enrich"
	OperationGaps          = "gaps"
	OperationQuestionnaire = "questionnaire"
)

// Operations lists every operation in pipeline order
var Operations = []string{OperationExtract, OperationEnrich, OperationGaps, OperationQuestionnaire}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
}

// operation returns a copy of the raw block for an operation name
func (c *Config) operation(name string) OperationAIConfig {
	if ref := c.operationRef(name); ref != nil {
		return *ref
	}
	return OperationAIConfig{}
}

// operationRef returns a pointer to the block so prompt files can be loaded into it
func (c *Config) operationRef(name string) *OperationAIConfig {
	switch name {
	case OperationExtract:
		return &c.AI.Extract
	case OperationEnrich:
		return &c.AI.Enrich
	case OperationGaps:
		return &c.AI.Gaps
	case OperationQuestionnaire:
		return &c.AI.Questionnaire
	}
	return nil
}

// GetOperationConfig returns the AI configuration for an operation with
// fallback to the global configuration. Unknown names get the global values.
func (c *Config) GetOperationConfig(name string) OperationAIConfig {
	config := c.operation(name)
	c.applyOperationDefaults(&config)
	return config
}
