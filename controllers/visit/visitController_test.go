package visit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	visitModel "visitor-gate/models/visit"
	"visitor-gate/services/pass"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"
	visitTypes "visitor-gate/types/visit"

	"github.com/gofiber/fiber/v2"
)

func performError(t *testing.T, err error) (int, types.ApiResponse) {
	t.Helper()

	app := fiber.New()
	app.Get("/visit", func(c *fiber.Ctx) error {
		return respondError(c, err)
	})

	resp, testErr := app.Test(httptest.NewRequest("GET", "/visit", nil))
	if testErr != nil {
		t.Fatalf("app.Test: %v", testErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		t.Fatalf("read body: %v", readErr)
	}

	var ar types.ApiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatalf("unmarshal body %s: %v", body, err)
	}
	return resp.StatusCode, ar
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not found", visitflow.ErrNotFound, fiber.StatusNotFound, kindNotFound},
		{"visitor not found", visitflow.ErrVisitorNotFound, fiber.StatusNotFound, kindNotFound},
		{"forbidden", visitflow.ErrForbidden, fiber.StatusForbidden, kindForbidden},
		{"blacklisted", visitflow.ErrBlacklisted, fiber.StatusBadRequest, kindBlacklistedVisitor},
		{"malformed token", pass.ErrMalformed, fiber.StatusBadRequest, kindInvalidToken},
		{"expired token", pass.ErrExpired, fiber.StatusBadRequest, kindInvalidToken},
		{"token mismatch", visitflow.ErrTokenVisitMismatch, fiber.StatusBadRequest, kindTokenVisitMismatch},
		{"extension range", visitflow.ErrExtensionOutOfRange, fiber.StatusBadRequest, kindExtensionOutOfRange},
		{"store conflict", visitflow.ErrStoreConflict, fiber.StatusConflict, kindStoreConflict},
		{"guest manifest", visitTypes.ErrGuestManifestInvalid, fiber.StatusBadRequest, kindGuestManifestError},
		{
			"invalid transition",
			&visitflow.InvalidTransitionError{Current: visitModel.StatusApproved, Event: visitflow.EventApprove},
			fiber.StatusBadRequest, kindInvalidTransition,
		},
		// Infrastructure failures must surface as 500, never dressed up as
		// a domain error the client would act on.
		{"unrecognized database error", errors.New("dial tcp 10.0.0.5:5432: connection refused"), fiber.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, ar := performError(t, tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if ar.Error != tc.wantKind {
				t.Errorf("kind = %q, want %q", ar.Error, tc.wantKind)
			}
		})
	}
}

func TestRespondErrorInvalidTransitionCarriesCurrentStatus(t *testing.T) {
	_, ar := performError(t, &visitflow.InvalidTransitionError{
		Current: visitModel.StatusCheckedOut,
		Event:   visitflow.EventCheckIn,
	})

	data, ok := ar.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object with current_status", ar.Data)
	}
	if got := data["current_status"]; got != string(visitModel.StatusCheckedOut) {
		t.Errorf("current_status = %v, want %s", got, visitModel.StatusCheckedOut)
	}
}
