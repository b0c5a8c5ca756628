package kernel_test

import (
	"testing"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    domain.ExecutionResponse
		wantErr bool
	}{
		{"success", `{"type":"success","message":"ok"}`, domain.SuccessResponse{Message: "ok"}, false},
		{"success without message", `{"type":"success"}`, domain.SuccessResponse{}, false},
		{"failure tag", `{"type":"error","message":"bad"}`, domain.FailureResponse{Type: "error", Message: "bad"}, false},
		{"legacy result", `{"result":"42"}`, domain.SuccessResponse{Message: "42"}, false},
		{"legacy structured result", `{"result":{"v":1}}`, domain.SuccessResponse{Message: `{"v":1}`}, false},
		{"legacy error", `{"result":null,"error":"no such function"}`, domain.FailureResponse{Type: "error", Message: "no such function"}, false},
		{"legacy empty error", `{"result":"ok","error":""}`, domain.SuccessResponse{Message: "ok"}, false},
		{"not json", `<html>`, nil, true},
		{"array", `[1,2]`, nil, true},
		{"unrecognised object", `{"foo":1}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := kernel.DecodeResponse([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnknownResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
