package media

// Quality selects the sample rate of extracted audio.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// DefaultSampleRate is used by the defaults and lossy extraction attempts.
const DefaultSampleRate = 16000

// Qualities lists the recognized tiers.
var Qualities = []string{string(QualityLow), string(QualityMedium), string(QualityHigh)}

// SampleRate maps the tier to Hz. Unknown tiers use medium.
func (q Quality) SampleRate() int {
	switch q {
	case QualityLow:
		return 8000
	case QualityHigh:
		return 44100
	default:
		return DefaultSampleRate
	}
}
