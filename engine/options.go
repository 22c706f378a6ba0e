package engine

// LanguageAuto asks the engine to detect the language.
const LanguageAuto = "auto"

// Languages lists the accepted language codes.
var Languages = []string{LanguageAuto, "zh", "en", "ja", "ko", "fr", "de", "es", "ru"}

// Options are the decoding parameters shared by every engine. Engines ignore
// the ones they do not support.
type Options struct {
	Model                     string  `mapstructure:"model_name" json:"model_name" validate:"required"`
	Language                  string  `mapstructure:"language" json:"language" validate:"oneof=auto zh en ja ko fr de es ru"`
	BeamSize                  int     `mapstructure:"beam_size" json:"beam_size" validate:"gte=1,lte=10"`
	Temperature               float64 `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=1"`
	NoSpeechThreshold         float64 `mapstructure:"no_speech_threshold" json:"no_speech_threshold" validate:"gte=0,lte=1"`
	CompressionRatioThreshold float64 `mapstructure:"compression_ratio_threshold" json:"compression_ratio_threshold" validate:"gt=0"`
	LogprobThreshold          float64 `mapstructure:"logprob_threshold" json:"logprob_threshold" validate:"lte=0"`
	ConditionOnPreviousText   bool    `mapstructure:"condition_on_previous_text" json:"condition_on_previous_text"`
	WordTimestamps            bool    `mapstructure:"word_timestamps" json:"word_timestamps"`

	// WorkDir is the job's private directory. Engines put helper files
	// there so they are removed with the job.
	WorkDir string `mapstructure:"-" json:"-"`
}

// DefaultOptions returns the whisper decoding defaults.
func DefaultOptions() Options {
	return Options{
		Model:                     "base",
		Language:                  LanguageAuto,
		BeamSize:                  5,
		Temperature:               0,
		NoSpeechThreshold:         0.6,
		CompressionRatioThreshold: 2.4,
		LogprobThreshold:          -1.0,
		ConditionOnPreviousText:   true,
	}
}

// LanguageHint returns the language to pass to an engine, or "" for auto.
func (o Options) LanguageHint() string {
	if o.Language == LanguageAuto {
		return ""
	}
	return o.Language
}
