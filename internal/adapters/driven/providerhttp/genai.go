package providerhttp

import (
	"errors"

	"google.golang.org/genai"
)

// GenAIStatus extracts the HTTP status carried by a Gemini SDK error, or 0.
func GenAIStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
