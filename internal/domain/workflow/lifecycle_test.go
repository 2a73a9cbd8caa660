package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func TestAdvanceRecord(t *testing.T) {
	tests := []struct {
		name    string
		from    entity.ApprovalStatus
		trigger Trigger
		want    entity.ApprovalStatus
		wantErr error
	}{
		{"pending approve", entity.ApprovalStatusPending, TriggerApprove, entity.ApprovalStatusApproved, nil},
		{"pending reject", entity.ApprovalStatusPending, TriggerReject, entity.ApprovalStatusRejected, nil},
		{"pending escalate", entity.ApprovalStatusPending, TriggerEscalate, entity.ApprovalStatusEscalated, nil},
		{"pending expire", entity.ApprovalStatusPending, TriggerExpire, entity.ApprovalStatusExpired, nil},
		{"escalated expire", entity.ApprovalStatusEscalated, TriggerExpire, entity.ApprovalStatusExpired, nil},
		{"escalated approve", entity.ApprovalStatusEscalated, TriggerApprove, entity.ApprovalStatusEscalated, ErrInvalidTransition},
		{"approved reject", entity.ApprovalStatusApproved, TriggerReject, entity.ApprovalStatusApproved, ErrInvalidTransition},
		{"expired escalate", entity.ApprovalStatusExpired, TriggerEscalate, entity.ApprovalStatusExpired, ErrInvalidTransition},
		{"unknown status", entity.ApprovalStatus("draft"), TriggerApprove, entity.ApprovalStatus("draft"), ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdvanceRecord(context.Background(), tt.from, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("AdvanceRecord() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("AdvanceRecord() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AdvanceRecord() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdvanceEscalation(t *testing.T) {
	got, err := AdvanceEscalation(context.Background(), entity.EscalationStatusPending, TriggerResolve)
	if err != nil || got != entity.EscalationStatusResolved {
		t.Errorf("resolve: got %v, %v", got, err)
	}

	got, err = AdvanceEscalation(context.Background(), entity.EscalationStatusPending, TriggerTimeOut)
	if err != nil || got != entity.EscalationStatusTimeout {
		t.Errorf("time out: got %v, %v", got, err)
	}

	for _, from := range []entity.EscalationStatus{entity.EscalationStatusResolved, entity.EscalationStatusTimeout} {
		if _, err := AdvanceEscalation(context.Background(), from, TriggerResolve); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("from %s: error = %v, want ErrInvalidTransition", from, err)
		}
	}
}
