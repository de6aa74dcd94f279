package doclens

// Option configures an Engine.
type Option func(*Engine)

// WithKeepDataURIs configures whether to keep full data URIs in output
// (default: false, which truncates them to data:mime/type;base64...).
func WithKeepDataURIs(keep bool) Option {
	return func(e *Engine) {
		e.keepDataURIs = keep
	}
}

// WithDescriber sets the image captioning backend. Without one, images are
// rendered from metadata only and embedded figures are left undescribed.
func WithDescriber(d Describer) Option {
	return func(e *Engine) {
		e.describer = d
	}
}

// WithTranscriber sets the audio transcription backend.
func WithTranscriber(t Transcriber) Option {
	return func(e *Engine) {
		e.transcriber = t
	}
}

// WithFigureLabel sets the label used for enriched figure captions,
// e.g. "Abbildung" for German documents. Default is "Figure".
func WithFigureLabel(label string) Option {
	return func(e *Engine) {
		if label != "" {
			e.figureLabel = label
		}
	}
}
