package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"radportal/internal/entity"

	"github.com/google/uuid"
)

func newAccessRequestService(h *harness) *AccessRequestService {
	return NewAccessRequestService(h.requests, h.logs, h.geo, h.clock, quietLogger())
}

func TestSubmitAccessRequest(t *testing.T) {
	h := newHarness()
	svc := newAccessRequestService(h)
	ctx := context.Background()
	ip := "8.8.8.8"

	id, err := svc.Submit(ctx, AccessRequestInput{
		Email:      " Jane.Doe@Gmail.com ",
		FullName:   "Jane Doe",
		Department: "Radiology",
		IPAddress:  &ip,
		UserAgent:  "ua",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stored, _ := h.requests.FindByID(ctx, id)
	if stored == nil {
		t.Fatal("request not stored")
	}
	if stored.Email != "jane.doe@gmail.com" || stored.Status != entity.AccessRequestPending {
		t.Fatalf("unexpected request %+v", stored)
	}
	if stored.LocationCountry == nil || *stored.LocationCountry != "United States" {
		t.Fatal("request should carry geolocation")
	}
	var snapshot map[string]any
	if err := json.Unmarshal(stored.GeoData, &snapshot); err != nil || snapshot["city"] != "Mountain View" {
		t.Fatalf("geo snapshot = %s (%v)", stored.GeoData, err)
	}
	if h.logs.count(entity.AccessRequestSubmitted) != 1 {
		t.Fatal("submission should be audited")
	}

	if _, err := svc.Submit(ctx, AccessRequestInput{Email: "jane.doe@gmail.com", FullName: "Jane"}); !errors.Is(err, ErrAccessRequestPending) {
		t.Fatalf("duplicate err = %v, want ErrAccessRequestPending", err)
	}
}

func TestSubmitRejectsApprovedAndInvalid(t *testing.T) {
	h := newHarness()
	svc := newAccessRequestService(h)
	ctx := context.Background()
	h.requests.Create(ctx, &entity.AccessRequest{Email: "done@gmail.com", Status: entity.AccessRequestApproved})

	if _, err := svc.Submit(ctx, AccessRequestInput{Email: "done@gmail.com", FullName: "Done"}); !errors.Is(err, ErrAccessAlreadyApproved) {
		t.Fatalf("err = %v, want ErrAccessAlreadyApproved", err)
	}
	if _, err := svc.Submit(ctx, AccessRequestInput{Email: "missing-name@gmail.com"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Submit(ctx, AccessRequestInput{Email: "no-at-sign", FullName: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReviewAccessRequest(t *testing.T) {
	h := newHarness()
	svc := newAccessRequestService(h)
	ctx := context.Background()
	reviewer := uuid.New()

	id, err := svc.Submit(ctx, AccessRequestInput{Email: "guest@gmail.com", FullName: "Guest"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending, _ := svc.ListPending(ctx, 0, 0)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}

	reviewed, err := svc.Review(ctx, id, true, reviewer)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.Status != entity.AccessRequestApproved || reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != reviewer {
		t.Fatalf("unexpected review %+v", reviewed)
	}
	if _, err := svc.Review(ctx, id, false, reviewer); !errors.Is(err, ErrAccessRequestReviewed) {
		t.Fatalf("err = %v, want ErrAccessRequestReviewed", err)
	}
	if _, err := svc.Review(ctx, uuid.New(), true, reviewer); !errors.Is(err, ErrAccessRequestNotFound) {
		t.Fatalf("err = %v, want ErrAccessRequestNotFound", err)
	}

	got := h.validation.IsEmailAllowedToAuthenticate(ctx, "guest@gmail.com")
	if !got.Allowed || got.Method != MethodAccessRequest {
		t.Fatalf("approved request should allow sign-in, got %+v", got)
	}
}
