package models

// Config is the service configuration loaded from config.yaml.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	OCR        OCRConfig        `yaml:"ocr"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Parser     ParserConfig     `yaml:"parser"`
	Export     ExportConfig     `yaml:"export"`
}

// OCRConfig selects and tunes the OCR backend.
type OCRConfig struct {
	// Backend is one of "openai", "gemini", "http" or "stub".
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
	// Endpoint is the URL of a generic HTTP OCR service ("http" backend).
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	// TimeoutSeconds bounds a single backend call. Default 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxAttempts bounds retries on transient backend failures. Default 3.
	MaxAttempts int `yaml:"max_attempts"`
}

// PreprocessConfig holds the image normalization options.
type PreprocessConfig struct {
	Grayscale      bool    `yaml:"grayscale"`
	ContrastFactor float64 `yaml:"contrast_factor"`
	MaxDimension   int     `yaml:"max_dimension"`
}

// RuleConfig is one declarative field-extraction rule.
type RuleConfig struct {
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern"`
}

// ParserConfig configures text-to-table parsing.
type ParserConfig struct {
	// RowStart is the pattern that opens a new record, e.g. a station number.
	RowStart string       `yaml:"row_start"`
	Rules    []RuleConfig `yaml:"rules"`
	// NumericFields lists schema fields parsed as decimals.
	NumericFields []string `yaml:"numeric_fields"`
	// KeepUnmatched appends unmatched lines to the current record's notes
	// field instead of dropping them.
	KeepUnmatched bool `yaml:"keep_unmatched"`
	// DropRows removes rows whose first cell matches one of these substrings
	// (case-insensitive), e.g. header echoes repeated inside the table body.
	DropRows []string `yaml:"drop_rows"`
}

// ExportConfig selects the default export format.
type ExportConfig struct {
	Format string `yaml:"format"`
}
