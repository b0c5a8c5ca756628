package kernel

import (
	"fmt"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/tidwall/gjson"
)

// DecodeResponse reads a handler response document.
// It accepts the tagged shape {type, code?, message?} and the older
// {result, error} shape, where a non-empty error means failure.
func DecodeResponse(data []byte) (domain.ExecutionResponse, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: response is not JSON", domain.ErrUnknownResponse)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: response is not an object", domain.ErrUnknownResponse)
	}

	if t := doc.Get("type"); t.Exists() {
		return domain.RawExecutionResponse{
			Type:    t.String(),
			Code:    doc.Get("code").String(),
			Message: doc.Get("message").String(),
		}.Decode(), nil
	}

	if e := doc.Get("error"); e.Exists() && e.String() != "" {
		return domain.FailureResponse{Type: "error", Message: e.String()}, nil
	}
	if r := doc.Get("result"); r.Exists() {
		// objects and arrays come back as their raw JSON text
		return domain.SuccessResponse{Message: r.String()}, nil
	}

	return nil, fmt.Errorf("%w: response has neither type nor result", domain.ErrUnknownResponse)
}
