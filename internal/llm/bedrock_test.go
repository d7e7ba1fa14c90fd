package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/lookout/internal/domain"
)

func TestClassifyInvokeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{
			name: "throttling maps to rate limited",
			err:  fmt.Errorf("operation error: %w", &types.ThrottlingException{}),
			want: domain.KindRateLimited,
		},
		{
			name: "missing model maps to data unavailable",
			err:  fmt.Errorf("operation error: %w", &types.ResourceNotFoundException{}),
			want: domain.KindDataUnavailable,
		},
		{
			name: "service unavailable maps to transient network",
			err:  fmt.Errorf("operation error: %w", &types.ServiceUnavailableException{}),
			want: domain.KindTransientNetwork,
		},
		{
			name: "anything else stays unknown",
			err:  errors.New("validation error"),
			want: domain.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Classify(classifyInvokeError(tt.err)))
		})
	}
}
