package encoder

import "github.com/go-ctap/hybridmoc/pkg/hmoctypes"

// Preprocessor prepares enrolled sub-templates on the host for library
// variants that do not preprocess on the card. maxMinutiae is the capacity
// of the variant's matcher.
type Preprocessor interface {
	Preprocess(magic hmoctypes.Magic, sub []byte, maxMinutiae int) ([]byte, error)
}

type PreprocessorFunc func(magic hmoctypes.Magic, sub []byte, maxMinutiae int) ([]byte, error)

func (f PreprocessorFunc) Preprocess(magic hmoctypes.Magic, sub []byte, maxMinutiae int) ([]byte, error) {
	return f(magic, sub, maxMinutiae)
}

// Passthrough returns sub-templates unchanged.
var Passthrough Preprocessor = PreprocessorFunc(func(_ hmoctypes.Magic, sub []byte, _ int) ([]byte, error) {
	return sub, nil
})
