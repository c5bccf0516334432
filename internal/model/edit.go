package model

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"go-image-playground/pkg/apierror"
)

// Defaults applied when the form omits a field.
const (
	DefaultSize    = "1024x1024"
	DefaultQuality = "high"
	DefaultModel   = "gpt-image-1.5"
)

const (
	MinCount = 1
	MaxCount = 10
)

// Option values the playground form offers. Anything outside these sets is
// rejected before an outbound call is made; remaining fields pass through
// untouched and the upstream API is trusted to reject them.
var (
	allowedSizes         = stringSet("1024x1024", "1024x1536", "1536x1024")
	allowedQuality       = stringSet("low", "medium", "high")
	allowedOutputFormat  = stringSet("png", "jpeg")
	allowedInputFidelity = stringSet("low", "medium", "high")
)

// FilePart is an uploaded file held in memory for the duration of one request.
type FilePart struct {
	Name string
	Data []byte
}

// EditRequest is the normalized set of parameters for one image edit call.
type EditRequest struct {
	Image             FilePart
	Mask              *FilePart
	Prompt            string
	Model             string
	Size              string
	Quality           string
	Count             int
	User              string
	InputFidelity     string
	OutputFormat      string
	OutputCompression string
	Background        string
	Stream            bool
	PartialImages     string
}

// Validate rejects the first violated constraint with a field-specific
// message suitable for a 400 response.
func (r *EditRequest) Validate() error {
	if len(r.Image.Data) == 0 {
		return apierror.New("BAD_REQUEST", "image is required", "image", http.StatusBadRequest)
	}
	if !allowedSizes[r.Size] {
		return apierror.New("BAD_REQUEST", "invalid size", "size", http.StatusBadRequest)
	}
	if !allowedQuality[r.Quality] {
		return apierror.New("BAD_REQUEST", "invalid quality", "quality", http.StatusBadRequest)
	}
	if r.OutputFormat != "" && !allowedOutputFormat[r.OutputFormat] {
		return apierror.New("BAD_REQUEST", "invalid output_format", "output_format", http.StatusBadRequest)
	}
	if r.InputFidelity != "" && !allowedInputFidelity[r.InputFidelity] {
		return apierror.New("BAD_REQUEST", "invalid input_fidelity", "input_fidelity", http.StatusBadRequest)
	}

	return nil
}

// ParseCount converts the raw "n" form value into a count in [MinCount,
// MaxCount]. Unparsable input falls back to 1; an empty string parses to 0
// and clamps up to 1.
func ParseCount(raw string) int {
	raw = strings.TrimSpace(raw)

	value := 0.0
	if raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
			parsed = 1
		}
		value = parsed
	}

	clamped := math.Min(math.Max(value, MinCount), MaxCount)
	return int(clamped)
}

func stringSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}
