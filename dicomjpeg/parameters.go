package dicomjpeg

import (
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
)

// Ensure Parameters implements codec.Parameters
var _ codec.Parameters = (*Parameters)(nil)

// Parameters contains the decoding parameters of the JPEG codec.
type Parameters struct {
	// Concurrency is the number of goroutines used for the inverse DCT and
	// color conversion of each frame. 0 and 1 decode on the calling goroutine.
	Concurrency int

	// AutoRotate applies the EXIF orientation of each frame. Frames whose
	// width and height swap fail the dimension check.
	AutoRotate bool

	// internal storage for compatibility with generic parameter interface
	params map[string]interface{}
}

// NewParameters creates a new Parameters with default values
func NewParameters() *Parameters {
	return &Parameters{
		params: make(map[string]interface{}),
	}
}

// GetParameter retrieves a parameter by name (implements codec.Parameters)
func (p *Parameters) GetParameter(name string) interface{} {
	switch name {
	case "concurrency":
		return p.Concurrency
	case "autoRotate":
		return p.AutoRotate
	default:
		// Check custom parameters
		return p.params[name]
	}
}

// SetParameter sets a parameter value (implements codec.Parameters)
func (p *Parameters) SetParameter(name string, value interface{}) {
	switch name {
	case "concurrency":
		if v, ok := value.(int); ok {
			p.Concurrency = v
		}
	case "autoRotate":
		if v, ok := value.(bool); ok {
			p.AutoRotate = v
		}
	default:
		// Store as custom parameter
		if p.params == nil {
			p.params = make(map[string]interface{})
		}
		p.params[name] = value
	}
}

// Validate checks if the parameters are valid and adjusts them if needed
func (p *Parameters) Validate() error {
	if p.Concurrency < 0 {
		p.Concurrency = 0
	}

	return nil
}

// WithConcurrency sets the concurrency and returns the parameters for chaining
func (p *Parameters) WithConcurrency(n int) *Parameters {
	p.Concurrency = n
	return p
}
