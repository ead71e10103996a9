package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/redline/internal/runtime"
	"github.com/aretw0/redline/pkg/domain"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    domain.TaskStatus
		event   runtime.LifecycleEvent
		want    domain.TaskStatus
		allowed bool
	}{
		{domain.StatusRunning, runtime.LifecycleSuspend, domain.StatusAwaitingApproval, true},
		{domain.StatusRunning, runtime.LifecycleFinish, domain.StatusCompleted, true},
		{domain.StatusAwaitingApproval, runtime.LifecycleClaim, domain.StatusResuming, true},
		{domain.StatusResuming, runtime.LifecycleResume, domain.StatusRunning, true},
		{domain.StatusResuming, runtime.LifecycleRelease, domain.StatusAwaitingApproval, true},
		{domain.StatusAwaitingApproval, runtime.LifecycleResume, domain.StatusAwaitingApproval, false},
		{domain.StatusResuming, runtime.LifecycleClaim, domain.StatusResuming, false},
		{domain.StatusCompleted, runtime.LifecycleClaim, domain.StatusCompleted, false},
		{domain.StatusRunning, runtime.LifecycleClaim, domain.StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := runtime.Transition("t1", tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var invalid *runtime.InvalidTransitionError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}
