package validation

// Request bodies accepted by the gateway.
var (
	GenerateRequestSchema = MustCompile("GenerateRequest", `{
		"type": "object",
		"required": ["componentSource"],
		"properties": {
			"componentPath": {"type": "string"},
			"componentSource": {"type": "string"},
			"goals": {
				"type": "object",
				"properties": {
					"coverage": {"type": "string", "enum": ["smoke", "interactions", "comprehensive"]}
				}
			}
		}
	}`)

	AnalyzeRequestSchema = MustCompile("AnalyzeRequest", `{
		"type": "object",
		"required": ["componentSource"],
		"properties": {
			"componentPath": {"type": "string"},
			"componentSource": {"type": "string"}
		}
	}`)

	ValidateRequestSchema = MustCompile("ValidateRequest", `{
		"type": "object",
		"required": ["filePath", "source"],
		"properties": {
			"filePath": {"type": "string"},
			"source": {"type": "string"}
		}
	}`)

	StreamRequestSchema = MustCompile("StreamRequest", `{
		"type": "object",
		"required": ["component_code"],
		"properties": {
			"component_code": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`)

	FeedbackRequestSchema = MustCompile("FeedbackRequest", `{
		"type": "object",
		"required": ["componentSource", "acceptedTest"],
		"properties": {
			"componentSource": {"type": "string", "minLength": 1},
			"acceptedTest": {"type": "string", "minLength": 1},
			"context": {"type": "object"},
			"rating": {"type": "integer", "minimum": 1, "maximum": 5}
		}
	}`)
)

// Envelopes the LLM is instructed to answer with.
var (
	TestsEnvelopeSchema = MustCompile("TestsEnvelope", `{
		"type": "object",
		"required": ["tests"],
		"properties": {
			"tests": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["filename", "code"],
					"properties": {
						"filename": {"type": "string", "minLength": 1},
						"code": {"type": "string"},
						"description": {"type": "string"}
					}
				}
			}
		}
	}`)

	FixesEnvelopeSchema = MustCompile("FixesEnvelope", `{
		"type": "object",
		"required": ["fixes"],
		"properties": {
			"fixes": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["file", "patch"],
					"properties": {
						"file": {"type": "string"},
						"patch": {"type": "string"},
						"reason": {"type": "string"},
						"confidence": {"type": "number"}
					}
				}
			}
		}
	}`)
)
